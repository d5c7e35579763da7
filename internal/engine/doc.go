// Package engine implements the scheduled-command trigger engine: it
// watches chat activity events and decides which user-defined tasks are
// due, with exactly-once firing per message, wall-clock cooldowns, and
// bounded in-memory state across arbitrarily long sessions.
//
// The engine is an explicit service object (New/Start/Stop); it keeps no
// package-level state. Event handling is serialized through one mutex, but
// command dispatch awaits the host executor outside that lock, so the host
// may deliver further events mid-dispatch. Safety under such interleaving
// comes from the processed-message ledger and the per-task cooldown guard,
// not from exclusion.
//
// Known limit: a dispatch has no timeout of its own. A host executor call
// that never settles keeps the re-entrancy flags set; only process
// shutdown (context cancellation) unblocks it.
package engine
