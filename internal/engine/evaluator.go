package engine

import (
	"context"
	"log/slog"
	"time"

	"stagehand/internal/tasks"
)

// evaluate runs one selection pass for the given trigger context and
// executes the due tasks sequentially, in task-list order (global tasks
// before character tasks). Selection and state updates happen under the
// engine lock; dispatch does not.
func (e *Engine) evaluate(ctx context.Context, timing tasks.Timing) {
	merged := e.repo.Merged()
	now := time.Now()

	e.mu.Lock()
	msgs := e.chats.Messages(e.chatID)
	turns := turnCount(msgs)

	var due []tasks.Task
	for _, t := range merged {
		if t.Disabled || t.Interval <= 0 {
			continue
		}
		key := t.KeyName()
		if e.cooldowns.firedWithin(key, e.cfg.CooldownWindow, now) {
			continue
		}

		if t.Timing == tasks.TimingPerTurn {
			// Per-turn tasks are only ever evaluated on the after-AI pass:
			// a turn completes when the assistant answers.
			if timing != tasks.TimingAfterAI {
				continue
			}
			if turns > e.lastTurnCount && turns%t.Interval == 0 {
				e.cooldowns.markFired(key, now)
				due = append(due, t)
			}
			continue
		}

		if t.Timing != timing {
			continue
		}
		floor := floorCount(msgs, t.FloorType)
		if floor == 0 {
			continue
		}
		// Running floor delta, not floor%interval: a task can never
		// permanently miss its window because floor values skipped past a
		// multiple.
		if floor-e.cooldowns.lastFiredFloor(key) >= t.Interval {
			e.cooldowns.markFired(key, now)
			e.cooldowns.setFiredFloor(key, floor, now)
			due = append(due, t)
		}
	}

	if timing == tasks.TimingAfterAI {
		// Future turn deltas are measured from this pass, whether or not
		// any per-turn task fired.
		e.lastTurnCount = turns
	}
	e.mu.Unlock()

	for _, t := range due {
		// Failures are logged by the dispatcher and do not block the
		// remaining tasks in the pass.
		_ = e.disp.run(ctx, t.Commands, t.Name)
	}
	if len(due) > 0 {
		e.log.Info("trigger pass executed",
			slog.String("timing", string(timing)),
			slog.Int("fired", len(due)))
	}
}
