package engine

import (
	"context"
	"strings"
	"testing"

	"stagehand/internal/tasks"
)

func TestExecuteTaskByName(t *testing.T) {
	cfg := testConfig()
	chats := newFakeChats()
	exec := &fakeExec{}
	e, repo := newTestEngine(t, cfg, chats, exec)
	ctx := context.Background()

	repo.Add(tasks.ScopeGlobal, tasks.Task{Name: "Greet", Commands: "/echo hi"})
	repo.Add(tasks.ScopeGlobal, tasks.Task{Name: "off", Commands: "/x", Disabled: true})
	repo.Add(tasks.ScopeGlobal, tasks.Task{Name: "empty"})

	if res := e.ExecuteTaskByName(ctx, "greet"); res != `Task "Greet" executed.` {
		t.Fatalf("execute: %q", res)
	}
	if exec.count() != 1 {
		t.Fatalf("executor calls = %d", exec.count())
	}

	// Second run inside the cooldown window is refused.
	res := e.ExecuteTaskByName(ctx, "greet")
	if !strings.Contains(res, "cooldown") || !strings.Contains(res, "Greet") {
		t.Fatalf("cooldown refusal: %q", res)
	}
	if exec.count() != 1 {
		t.Fatalf("cooldown did not block execution")
	}

	if res := e.ExecuteTaskByName(ctx, "ghost"); res != `Error: task "ghost" not found` {
		t.Fatalf("not found: %q", res)
	}
	if res := e.ExecuteTaskByName(ctx, "off"); res != `Error: task "off" is disabled` {
		t.Fatalf("disabled: %q", res)
	}
	if res := e.ExecuteTaskByName(ctx, "empty"); strings.HasPrefix(res, "Error") {
		t.Fatalf("empty commands must be a quiet no-op: %q", res)
	}
	if res := e.ExecuteTaskByName(ctx, "   "); res != "Error: task name is required" {
		t.Fatalf("blank name: %q", res)
	}
}

func TestSetTaskInterval(t *testing.T) {
	cfg := testConfig()
	chats := newFakeChats()
	exec := &fakeExec{}
	e, repo := newTestEngine(t, cfg, chats, exec)
	ctx := context.Background()

	repo.Add(tasks.ScopeGlobal, tasks.Task{Name: "greet", Commands: "/x", Interval: 1})

	if res := e.SetTaskInterval(ctx, "greet", "5"); res != `Task "greet" interval set to 5.` {
		t.Fatalf("set: %q", res)
	}
	if got, _, _ := repo.FindByName("greet"); got.Interval != 5 {
		t.Fatalf("interval not persisted: %d", got.Interval)
	}

	if res := e.SetTaskInterval(ctx, "greet", "0"); !strings.Contains(res, "manual activation only") {
		t.Fatalf("set to manual: %q", res)
	}

	for _, raw := range []string{"abc", "-1", "100000", "1.5", ""} {
		if res := e.SetTaskInterval(ctx, "greet", raw); !strings.Contains(res, "invalid interval") {
			t.Fatalf("interval %q accepted: %q", raw, res)
		}
	}

	if res := e.SetTaskInterval(ctx, "ghost", "5"); res != `Error: task "ghost" not found` {
		t.Fatalf("not found: %q", res)
	}
}

func TestSetTaskIntervalDecreaseKeepsBaseline(t *testing.T) {
	// Lowering an interval below the accumulated floor delta lets the task
	// fire on the next pass. The baseline is not rewritten on update.
	cfg := testConfig()
	chats := newFakeChats()
	exec := &fakeExec{}
	e, repo := newTestEngine(t, cfg, chats, exec)
	ctx := context.Background()

	repo.Add(tasks.ScopeGlobal, tasks.Task{
		Name: "slow", Commands: "/x", Interval: 50,
		FloorType: tasks.FloorAll, Timing: tasks.TimingAfterAI,
	})

	chats.set("c", aiMsgs(6))
	e.HandleEvent(ctx, kitEvent("c", 5))
	if exec.count() != 0 {
		t.Fatalf("fired below interval")
	}

	if res := e.SetTaskInterval(ctx, "slow", "2"); strings.HasPrefix(res, "Error") {
		t.Fatalf("set: %q", res)
	}
	chats.set("c", aiMsgs(7))
	e.HandleEvent(ctx, kitEvent("c", 6))
	if exec.count() != 1 {
		t.Fatalf("accumulated delta discarded on interval decrease")
	}
}

func TestCooldownStatus(t *testing.T) {
	cfg := testConfig()
	chats := newFakeChats()
	exec := &fakeExec{}
	e, repo := newTestEngine(t, cfg, chats, exec)
	ctx := context.Background()

	repo.Add(tasks.ScopeGlobal, tasks.Task{Name: "greet", Commands: "/x"})

	if got := e.CooldownStatus(); len(got) != 0 {
		t.Fatalf("fresh engine has cooldowns: %v", got)
	}
	e.ExecuteTaskByName(ctx, "greet")
	got := e.CooldownStatus()
	left, ok := got["greet"]
	if !ok || left <= 0 || left > cfg.CooldownWindow {
		t.Fatalf("cooldown status = %v", got)
	}
}
