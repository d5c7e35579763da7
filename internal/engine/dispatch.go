package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stagehand/internal/kit"
)

// dispatcher serializes task command execution through the host executor
// and owns the re-entrancy flags. The flags stay set for a settle delay
// after a command returns, so chat mutations caused by the command's own
// side effects are still suppressed from re-triggering the engine.
type dispatcher struct {
	log    *slog.Logger
	exec   kit.CommandExecutor
	settle time.Duration

	mu               sync.Mutex
	executing        bool
	commandGenerated bool
	settleTimer      *time.Timer
}

func newDispatcher(exec kit.CommandExecutor, settle time.Duration, log *slog.Logger) *dispatcher {
	return &dispatcher{log: log, exec: exec, settle: settle}
}

// busy reports whether a task is executing or its side effects have not
// settled yet. Inbound message events are not trigger opportunities while
// busy.
func (d *dispatcher) busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executing || d.commandGenerated
}

// run forwards commands verbatim to the executor and awaits the result.
// Empty or whitespace-only command strings are a silent no-op. The
// re-entrancy flags are cleared after the settle delay regardless of
// success or failure. There is deliberately no timeout here; see the
// package doc.
func (d *dispatcher) run(ctx context.Context, commands, taskName string) error {
	if strings.TrimSpace(commands) == "" {
		return nil
	}

	d.mu.Lock()
	if d.settleTimer != nil {
		d.settleTimer.Stop()
		d.settleTimer = nil
	}
	d.executing = true
	d.commandGenerated = true
	d.mu.Unlock()

	start := time.Now()
	_, err := d.exec.Execute(ctx, commands)

	d.mu.Lock()
	if d.settleTimer != nil {
		d.settleTimer.Stop()
	}
	d.settleTimer = time.AfterFunc(d.settle, d.clearFlags)
	d.mu.Unlock()

	if err != nil {
		d.log.Warn("task command failed",
			slog.String("task", taskName),
			slog.Duration("took", time.Since(start)),
			slog.String("err", err.Error()))
		return err
	}
	d.log.Debug("task command ok",
		slog.String("task", taskName),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (d *dispatcher) clearFlags() {
	d.mu.Lock()
	d.executing = false
	d.commandGenerated = false
	d.settleTimer = nil
	d.mu.Unlock()
}

// reset drops the flags immediately. Used on chat change, where pending
// side effects belong to a chat that no longer exists.
func (d *dispatcher) reset() {
	d.mu.Lock()
	if d.settleTimer != nil {
		d.settleTimer.Stop()
		d.settleTimer = nil
	}
	d.executing = false
	d.commandGenerated = false
	d.mu.Unlock()
}
