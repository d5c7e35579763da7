package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"stagehand/internal/storage"
)

func testRepo(t *testing.T) (*Repository, storage.Store) {
	t.Helper()
	store := storage.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepository(store, time.Hour, log), store
}

func TestFindByNameGlobalWins(t *testing.T) {
	r, _ := testRepo(t)
	r.Add(ScopeGlobal, Task{Name: "greet", Commands: "/global"})
	r.Add(ScopeCharacter, Task{Name: "Greet", Commands: "/char"})

	got, scope, ok := r.FindByName("GREET")
	if !ok {
		t.Fatalf("task not found")
	}
	if scope != ScopeGlobal || got.Commands != "/global" {
		t.Fatalf("shadowed wrong way: scope=%q commands=%q", scope, got.Commands)
	}
}

func TestMergedOrder(t *testing.T) {
	r, _ := testRepo(t)
	r.Add(ScopeGlobal, Task{Name: "a"})
	r.Add(ScopeGlobal, Task{Name: "b"})
	r.Add(ScopeCharacter, Task{Name: "c"})

	merged := r.Merged()
	if len(merged) != 3 {
		t.Fatalf("merged len = %d", len(merged))
	}
	if merged[0].Name != "a" || merged[1].Name != "b" || merged[2].Name != "c" {
		t.Fatalf("wrong order: %q %q %q", merged[0].Name, merged[1].Name, merged[2].Name)
	}

	// Merged hands out copies; mutating the result must not leak back.
	merged[0].Name = "mutated"
	if got, _, _ := r.FindByName("a"); got.Name != "a" {
		t.Fatalf("merged list aliases repository state")
	}
}

func TestUpdateAndRemove(t *testing.T) {
	r, _ := testRepo(t)
	r.Add(ScopeGlobal, Task{ID: "t1", Name: "greet", Interval: 1})

	upd := Task{ID: "t1", Name: "greet", Interval: 7}
	if err := r.Update(ScopeGlobal, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ := r.FindByName("greet")
	if got.Interval != 7 {
		t.Fatalf("interval = %d after update", got.Interval)
	}

	if err := r.Update(ScopeGlobal, Task{ID: "missing"}); err != ErrNotFound {
		t.Fatalf("update missing: err = %v", err)
	}
	if err := r.Remove(ScopeGlobal, "t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, ok := r.FindByName("greet"); ok {
		t.Fatalf("task still present after remove")
	}
	if err := r.Remove(ScopeGlobal, "t1"); err != ErrNotFound {
		t.Fatalf("double remove: err = %v", err)
	}
}

func TestFlushAndReload(t *testing.T) {
	r, store := testRepo(t)
	ctx := context.Background()

	r.Add(ScopeGlobal, Task{Name: "greet", Commands: "/cmd", Interval: 1})
	if err := r.SetCharacter(ctx, "alice"); err != nil {
		t.Fatalf("set character: %v", err)
	}
	r.Add(ScopeCharacter, Task{Name: "solo", Commands: "/solo"})
	r.Flush(ctx)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fresh := NewRepository(store, time.Hour, log)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := fresh.SetCharacter(ctx, "alice"); err != nil {
		t.Fatalf("set character: %v", err)
	}

	if _, scope, ok := fresh.FindByName("greet"); !ok || scope != ScopeGlobal {
		t.Fatalf("global task lost across reload")
	}
	if _, scope, ok := fresh.FindByName("solo"); !ok || scope != ScopeCharacter {
		t.Fatalf("character task lost across reload")
	}
}

func TestSetCharacterSwitchesList(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	if err := r.SetCharacter(ctx, "alice"); err != nil {
		t.Fatalf("set character: %v", err)
	}
	r.Add(ScopeCharacter, Task{Name: "alice-task"})
	r.Flush(ctx)

	if err := r.SetCharacter(ctx, "bob"); err != nil {
		t.Fatalf("switch character: %v", err)
	}
	if r.CharacterID() != "bob" {
		t.Fatalf("character id = %q", r.CharacterID())
	}
	if _, _, ok := r.FindByName("alice-task"); ok {
		t.Fatalf("previous character's tasks leaked into new scope")
	}

	// Switching back reloads the persisted list.
	if err := r.SetCharacter(ctx, "alice"); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	if _, _, ok := r.FindByName("alice-task"); !ok {
		t.Fatalf("character task not reloaded")
	}
}

func TestDropCharacter(t *testing.T) {
	r, store := testRepo(t)
	ctx := context.Background()

	if err := r.SetCharacter(ctx, "alice"); err != nil {
		t.Fatalf("set character: %v", err)
	}
	r.Add(ScopeCharacter, Task{Name: "doomed"})
	r.Flush(ctx)

	if err := r.DropCharacter(ctx, "alice"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if r.CharacterID() != "" {
		t.Fatalf("character scope still active")
	}
	if _, ok, _ := store.GetCharacter(ctx, "alice", StoreModule); ok {
		t.Fatalf("character record survived deletion")
	}
}
