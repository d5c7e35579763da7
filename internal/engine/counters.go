package engine

import (
	"stagehand/internal/kit"
	"stagehand/internal/tasks"
)

// floorCount derives the positional "floor" counter from a transcript:
// the number of entries matching the floor type filter, minus one so the
// entry currently being evaluated does not count toward its own trigger.
// Never negative; an empty transcript yields 0.
func floorCount(msgs []kit.Message, ft tasks.FloorType) int {
	n := 0
	for _, m := range msgs {
		if m.IsSystem && ft != tasks.FloorAll {
			continue
		}
		switch ft {
		case tasks.FloorUser:
			if m.IsUser {
				n++
			}
		case tasks.FloorLLM:
			if !m.IsUser {
				n++
			}
		default:
			n++
		}
	}
	if n <= 0 {
		return 0
	}
	return n - 1
}

// turnCount counts completed exchanges: a turn exists only once both sides
// have spoken, so it is the minimum of the two non-system message counts.
func turnCount(msgs []kit.Message) int {
	user, llm := 0, 0
	for _, m := range msgs {
		if m.IsSystem {
			continue
		}
		if m.IsUser {
			user++
		} else {
			llm++
		}
	}
	if user < llm {
		return user
	}
	return llm
}
