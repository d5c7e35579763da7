package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"stagehand/internal/tasks"
)

// The command surface returns plain result strings, error cases prefixed
// with "Error:", matching the host's text-command convention. Nothing here
// panics or returns an error past the boundary.

// ExecuteTaskByName runs a named task immediately if it exists, is enabled
// and is not in cooldown. Manual execution ignores Interval, so interval=0
// ("manual only") tasks are runnable here.
func (e *Engine) ExecuteTaskByName(ctx context.Context, name string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("manual task execution panicked", slog.String("task", name), slog.Any("panic", r))
			result = fmt.Sprintf("Error: task %q failed unexpectedly", name)
		}
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return "Error: task name is required"
	}

	t, _, ok := e.repo.FindByName(name)
	if !ok {
		return fmt.Sprintf("Error: task %q not found", name)
	}
	if t.Disabled {
		return fmt.Sprintf("Error: task %q is disabled", t.Name)
	}

	now := time.Now()
	key := t.KeyName()
	e.mu.Lock()
	if e.cooldowns.firedWithin(key, e.cfg.CooldownWindow, now) {
		left := e.cooldowns.remaining(key, e.cfg.CooldownWindow, now)
		e.mu.Unlock()
		return fmt.Sprintf("Error: task %q is in cooldown (%s remaining)", t.Name, left.Round(time.Millisecond))
	}
	e.cooldowns.markFired(key, now)
	e.mu.Unlock()

	if strings.TrimSpace(t.Commands) == "" {
		// Silent no-op, not an error.
		return fmt.Sprintf("Task %q has no commands; nothing to do.", t.Name)
	}
	if err := e.disp.run(ctx, t.Commands, t.Name); err != nil {
		return fmt.Sprintf("Error: task %q failed: %v", t.Name, err)
	}
	return fmt.Sprintf("Task %q executed.", t.Name)
}

// SetTaskInterval updates a task's interval from its textual form,
// searching the global scope before the character scope.
func (e *Engine) SetTaskInterval(ctx context.Context, name, rawInterval string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("set interval panicked", slog.String("task", name), slog.Any("panic", r))
			result = fmt.Sprintf("Error: could not update task %q", name)
		}
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return "Error: task name is required"
	}

	n, err := strconv.Atoi(strings.TrimSpace(rawInterval))
	if err != nil || n < 0 || n > tasks.MaxInterval {
		return fmt.Sprintf("Error: invalid interval %q (expected 0-%d)", rawInterval, tasks.MaxInterval)
	}

	t, scope, ok := e.repo.FindByName(name)
	if !ok {
		return fmt.Sprintf("Error: task %q not found", name)
	}
	t.Interval = n
	if err := e.repo.Update(scope, t); err != nil {
		return fmt.Sprintf("Error: could not update task %q: %v", t.Name, err)
	}
	if n == 0 {
		return fmt.Sprintf("Task %q set to manual activation only.", t.Name)
	}
	return fmt.Sprintf("Task %q interval set to %d.", t.Name, n)
}

// CooldownStatus reports the remaining cooldown per task name. Diagnostic
// only; no side effects.
func (e *Engine) CooldownStatus() map[string]time.Duration {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]time.Duration, len(e.cooldowns.fired))
	for name := range e.cooldowns.fired {
		if left := e.cooldowns.remaining(name, e.cfg.CooldownWindow, now); left > 0 {
			out[name] = left
		}
	}
	return out
}
