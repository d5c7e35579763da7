package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  assistant_user_ids: [42]
  poll_timeout: 10s
logging:
  level: debug
  console: true
engine:
  cooldown_window: 5s
  ledger_max: 150
janitor:
  enabled: true
  sweep_every: 30s
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AssistantUserIDs) != 1 || cfg.Telegram.AssistantUserIDs[0] != 42 {
		t.Fatalf("assistant ids = %v", cfg.Telegram.AssistantUserIDs)
	}
	if cfg.Engine.LedgerMax != 150 {
		t.Fatalf("ledger_max = %d", cfg.Engine.LedgerMax)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get() did not return the committed config")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
engine:
  cooldwon_window: 5s
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("misspelled key accepted")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("missing token accepted: %v", err)
	}

	cfg.Telegram.Token = "123:abc"
	if err := Validate(cfg); err != nil {
		t.Fatalf("minimal config rejected: %v", err)
	}

	cfg.Engine.CooldownWindow = "not-a-duration"
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "engine.cooldown_window") {
		t.Fatalf("bad duration accepted: %v", err)
	}

	cfg.Engine.CooldownWindow = "-5s"
	if err := Validate(cfg); err == nil {
		t.Fatalf("negative duration accepted")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 30*time.Second)
	if err != nil || d != 30*time.Second {
		t.Fatalf("empty: d=%v err=%v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "2m", 30*time.Second)
	if err != nil || d != 2*time.Minute {
		t.Fatalf("explicit: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", time.Second); err == nil {
		t.Fatalf("garbage accepted")
	}
}
