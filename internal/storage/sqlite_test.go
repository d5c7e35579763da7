package storage

import (
	"context"
	"path/filepath"
	"testing"

	"stagehand/pkg/logx"
)

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	cfg := Config{Driver: driver}
	if driver == "sqlite" {
		cfg.Path = filepath.Join(t.TempDir(), "state.db")
	}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open %s store: %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testStoreRoundtrip(t *testing.T, st Store) {
	ctx := context.Background()

	if _, ok, err := st.GetModule(ctx, "tasks"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := st.PutModule(ctx, "tasks", []byte(`[{"name":"greet"}]`)); err != nil {
		t.Fatalf("put module: %v", err)
	}
	b, ok, err := st.GetModule(ctx, "tasks")
	if err != nil || !ok || string(b) != `[{"name":"greet"}]` {
		t.Fatalf("get module: b=%q ok=%v err=%v", b, ok, err)
	}

	// Upsert replaces.
	if err := st.PutModule(ctx, "tasks", []byte(`[]`)); err != nil {
		t.Fatalf("put module again: %v", err)
	}
	if b, _, _ := st.GetModule(ctx, "tasks"); string(b) != `[]` {
		t.Fatalf("upsert did not replace: %q", b)
	}

	if err := st.PutCharacter(ctx, "alice", "tasks", []byte(`["a"]`)); err != nil {
		t.Fatalf("put character: %v", err)
	}
	if err := st.PutCharacter(ctx, "alice", "notes", []byte(`["n"]`)); err != nil {
		t.Fatalf("put character second module: %v", err)
	}
	b, ok, err = st.GetCharacter(ctx, "alice", "tasks")
	if err != nil || !ok || string(b) != `["a"]` {
		t.Fatalf("get character: b=%q ok=%v err=%v", b, ok, err)
	}
	if _, ok, _ := st.GetCharacter(ctx, "bob", "tasks"); ok {
		t.Fatalf("unknown character returned data")
	}

	// DeleteCharacter removes every module for that character.
	if err := st.DeleteCharacter(ctx, "alice"); err != nil {
		t.Fatalf("delete character: %v", err)
	}
	if _, ok, _ := st.GetCharacter(ctx, "alice", "tasks"); ok {
		t.Fatalf("character data survived delete")
	}
	if _, ok, _ := st.GetCharacter(ctx, "alice", "notes"); ok {
		t.Fatalf("second module survived delete")
	}

	// Module settings are untouched by character deletes.
	if _, ok, _ := st.GetModule(ctx, "tasks"); !ok {
		t.Fatalf("module settings lost")
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreRoundtrip(t, openTestStore(t, "memory"))
}

func TestSQLiteStore(t *testing.T) {
	testStoreRoundtrip(t, openTestStore(t, "sqlite"))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.PutModule(ctx, "ledger", []byte(`["k"]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	b, ok, err := st.GetModule(ctx, "ledger")
	if err != nil || !ok || string(b) != `["k"]` {
		t.Fatalf("data lost across reopen: b=%q ok=%v err=%v", b, ok, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}
