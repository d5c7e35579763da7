package tasks

import "testing"

func TestNormalizeDefaults(t *testing.T) {
	task := Task{Name: "x", Commands: "/cmd", Interval: 5}
	task.Normalize()

	if task.ID == "" {
		t.Fatalf("id not assigned")
	}
	if task.FloorType != FloorAll {
		t.Fatalf("floor type default = %q, want %q", task.FloorType, FloorAll)
	}
	if task.Timing != TimingAfterAI {
		t.Fatalf("timing default = %q, want %q", task.Timing, TimingAfterAI)
	}
	if task.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestNormalizeClampsInterval(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-7, 0},
		{0, 0},
		{42, 42},
		{MaxInterval, MaxInterval},
		{MaxInterval + 1, MaxInterval},
	}
	for _, tc := range cases {
		task := Task{Interval: tc.in}
		task.Normalize()
		if task.Interval != tc.want {
			t.Errorf("interval %d normalized to %d, want %d", tc.in, task.Interval, tc.want)
		}
	}
}

func TestNormalizeKeepsValidFields(t *testing.T) {
	task := Task{ID: "fixed", FloorType: FloorUser, Timing: TimingPerTurn, Interval: 3}
	task.Normalize()
	if task.ID != "fixed" || task.FloorType != FloorUser || task.Timing != TimingPerTurn {
		t.Fatalf("valid fields rewritten: %+v", task)
	}
}

func TestNameMatches(t *testing.T) {
	task := Task{Name: "Greet Friend"}
	if !task.NameMatches("greet friend") {
		t.Fatalf("case-insensitive match failed")
	}
	if !task.NameMatches("GREET FRIEND") {
		t.Fatalf("upper-case match failed")
	}
	if task.NameMatches("greet") {
		t.Fatalf("prefix must not match")
	}
}

func TestKeyName(t *testing.T) {
	task := Task{Name: "Greet Friend"}
	if got := task.KeyName(); got != "greet friend" {
		t.Fatalf("KeyName() = %q", got)
	}
}
