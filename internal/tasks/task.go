package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxInterval is the largest accepted trigger interval.
const MaxInterval = 99999

// FloorType selects which message-count stream an interval is measured
// against for floor-based triggering.
type FloorType string

const (
	FloorAll  FloorType = "all"
	FloorUser FloorType = "user"
	FloorLLM  FloorType = "llm"
)

// Timing is the class of chat event a task listens for.
type Timing string

const (
	TimingBeforeUser Timing = "before_user"
	TimingAfterAI    Timing = "after_ai"
	TimingPerTurn    Timing = "per_turn"
)

// Scope identifies which task list a task lives in.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeCharacter Scope = "character"
)

// Task is a user-authored automation unit. Commands is an opaque command
// string forwarded verbatim to the host's command executor; the engine
// never interprets it.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Commands  string    `json:"commands"`
	Interval  int       `json:"interval"`
	FloorType FloorType `json:"floor_type"`
	Timing    Timing    `json:"trigger_timing"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Normalize applies defaults and clamps at load time, so the rest of the
// engine can rely on every field being well-formed.
func (t *Task) Normalize() {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	switch t.FloorType {
	case FloorAll, FloorUser, FloorLLM:
	default:
		t.FloorType = FloorAll
	}
	switch t.Timing {
	case TimingBeforeUser, TimingAfterAI, TimingPerTurn:
	default:
		t.Timing = TimingAfterAI
	}
	if t.Interval < 0 {
		t.Interval = 0
	}
	if t.Interval > MaxInterval {
		t.Interval = MaxInterval
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
}

// NameMatches reports whether the task answers to name. Lookup is
// case-insensitive; names are stored as entered.
func (t *Task) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(name))
}

// KeyName is the canonical cooldown/baseline key for the task.
func (t *Task) KeyName() string {
	return strings.ToLower(strings.TrimSpace(t.Name))
}
