package engine

// Snapshot is a lightweight diagnostic view of the engine's memory use and
// session position. Read-only; no side effects.
type Snapshot struct {
	ChatID        string
	NewChat       bool
	LastTurnCount int

	LedgerSize int
	LedgerMax  int

	CooldownEntries int
	FloorBaselines  int
	CooldownMax     int

	Dispatching bool
}

// MemoryUsage returns the current bounded-state sizes.
func (e *Engine) MemoryUsage() Snapshot {
	e.mu.Lock()
	fired, floors := e.cooldowns.size()
	s := Snapshot{
		ChatID:          e.chatID,
		NewChat:         e.isNewChat,
		LastTurnCount:   e.lastTurnCount,
		LedgerSize:      e.led.size(),
		LedgerMax:       e.cfg.LedgerMax,
		CooldownEntries: fired,
		FloorBaselines:  floors,
		CooldownMax:     e.cfg.CooldownMax,
	}
	e.mu.Unlock()
	s.Dispatching = e.disp.busy()
	return s
}
