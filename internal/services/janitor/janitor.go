// Package janitor runs periodic housekeeping sweeps (cooldown eviction,
// ledger cap enforcement) on a fixed cadence.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Enabled    bool
	SweepEvery time.Duration
}

type sweep struct {
	name string
	fn   func(now time.Time)
}

type Service struct {
	mu  sync.Mutex
	log *slog.Logger
	cfg Config

	c      *cron.Cron
	sweeps []sweep
}

func New(cfg Config, log *slog.Logger) *Service {
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 30 * time.Second
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Add registers a sweep. Must be called before Start.
func (s *Service) Add(name string, fn func(now time.Time)) {
	s.mu.Lock()
	s.sweeps = append(s.sweeps, sweep{name: name, fn: fn})
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}

	s.c = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.SweepEvery)
	if _, err := s.c.AddFunc(spec, s.runAll); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("janitor started",
		slog.Duration("every", s.cfg.SweepEvery),
		slog.Int("sweeps", len(s.sweeps)))

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("janitor stopped")
}

func (s *Service) runAll() {
	now := time.Now()
	s.mu.Lock()
	sweeps := append([]sweep(nil), s.sweeps...)
	s.mu.Unlock()

	for _, sw := range sweeps {
		start := time.Now()
		sw.fn(now)
		s.log.Debug("sweep done",
			slog.String("sweep", sw.name),
			slog.Duration("took", time.Since(start)))
	}
}
