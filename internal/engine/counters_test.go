package engine

import (
	"testing"

	"stagehand/internal/kit"
	"stagehand/internal/tasks"
)

func msgUser() kit.Message   { return kit.Message{IsUser: true} }
func msgAI() kit.Message     { return kit.Message{} }
func msgSystem() kit.Message { return kit.Message{IsSystem: true} }

func TestFloorCount(t *testing.T) {
	msgs := []kit.Message{msgAI(), msgUser(), msgAI(), msgSystem(), msgUser()}

	cases := []struct {
		ft   tasks.FloorType
		want int
	}{
		{tasks.FloorAll, 4},  // 5 entries, minus the one being evaluated
		{tasks.FloorUser, 1}, // 2 user entries
		{tasks.FloorLLM, 1},  // 2 assistant entries (system excluded)
	}
	for _, c := range cases {
		if got := floorCount(msgs, c.ft); got != c.want {
			t.Fatalf("floorCount(%s) = %d, want %d", c.ft, got, c.want)
		}
	}
}

func TestFloorCountEmpty(t *testing.T) {
	for _, ft := range []tasks.FloorType{tasks.FloorAll, tasks.FloorUser, tasks.FloorLLM} {
		if got := floorCount(nil, ft); got != 0 {
			t.Fatalf("floorCount(nil, %s) = %d, want 0", ft, got)
		}
		if got := floorCount([]kit.Message{}, ft); got != 0 {
			t.Fatalf("floorCount(empty, %s) = %d, want 0", ft, got)
		}
	}
}

func TestFloorCountNeverNegative(t *testing.T) {
	// A transcript with only system entries has no user floor to count.
	msgs := []kit.Message{msgSystem()}
	if got := floorCount(msgs, tasks.FloorUser); got != 0 {
		t.Fatalf("floorCount = %d, want 0", got)
	}
}

func TestTurnCount(t *testing.T) {
	cases := []struct {
		name string
		msgs []kit.Message
		want int
	}{
		{"empty", nil, 0},
		{"only user", []kit.Message{msgUser(), msgUser()}, 0},
		{"only ai", []kit.Message{msgAI()}, 0},
		{"one turn", []kit.Message{msgUser(), msgAI()}, 1},
		{"uneven", []kit.Message{msgUser(), msgAI(), msgUser()}, 1},
		{"two turns", []kit.Message{msgUser(), msgAI(), msgUser(), msgAI()}, 2},
		{"system ignored", []kit.Message{msgSystem(), msgUser(), msgAI()}, 1},
	}
	for _, c := range cases {
		if got := turnCount(c.msgs); got != c.want {
			t.Fatalf("%s: turnCount = %d, want %d", c.name, got, c.want)
		}
	}
}
