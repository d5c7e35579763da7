package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram Telegram `json:"telegram"`
	Logging  Logging  `json:"logging"`
	Storage  Storage  `json:"storage"`
	Engine   Engine   `json:"engine"`
	Janitor  Janitor  `json:"janitor"`
}

type Telegram struct {
	Token string `json:"token"`
	// AssistantUserIDs lists senders whose messages count as assistant
	// ("llm") entries in the transcript. The bot's own messages always do.
	AssistantUserIDs []int64 `json:"assistant_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type Logging struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat mirrors warnings and errors into the active chat, rate
// limited so a failing trigger cannot flood the conversation.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type Storage struct {
	// Driver is "sqlite" or "memory". Empty means "memory".
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout"`
}

// Engine tunes the trigger engine. All durations are Go duration strings;
// zero values fall back to built-in defaults.
type Engine struct {
	// CooldownWindow is the anti-double-fire guard per task name.
	CooldownWindow string `json:"cooldown_window"`
	// TransitionWindow inhibits evaluation after a chat switch.
	TransitionWindow string `json:"transition_window"`
	// SettleDelay keeps re-entrancy flags set after a dispatch returns.
	SettleDelay string `json:"settle_delay"`
	// PersistDebounce coalesces ledger/task writes.
	PersistDebounce string `json:"persist_debounce"`
	CooldownMax     int    `json:"cooldown_max"`
	LedgerMax       int    `json:"ledger_max"`
}

type Janitor struct {
	Enabled bool `json:"enabled"`
	// SweepEvery is a Go duration string; default 30s.
	SweepEvery string `json:"sweep_every"`
}

// UnmarshalJSON disallows unknown fields so stale keys are caught during
// config reload rather than silently ignored.
func (c *Config) UnmarshalJSON(b []byte) error {
	type alias Config
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var a alias
	if err := dec.Decode(&a); err != nil {
		return err
	}
	*c = Config(a)
	return nil
}
