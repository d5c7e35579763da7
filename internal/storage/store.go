package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"stagehand/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory" (or empty): process-lifetime map, nothing survives restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the task repository and the ledger.
// Payloads are opaque JSON blobs.
type Store interface {
	GetModule(ctx context.Context, module string) ([]byte, bool, error)
	PutModule(ctx context.Context, module string, data []byte) error

	GetCharacter(ctx context.Context, charID, module string) ([]byte, bool, error)
	PutCharacter(ctx context.Context, charID, module string, data []byte) error
	DeleteCharacter(ctx context.Context, charID string) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
