package engine

import (
	"fmt"
	"testing"
)

func TestLedgerRecordAndSeen(t *testing.T) {
	l := newLedger(10)
	key := messageKey("chat1", 3)
	if l.seen(key) {
		t.Fatalf("unseen key reported as seen")
	}
	l.record(key)
	if !l.seen(key) {
		t.Fatalf("recorded key not seen")
	}
	l.record(key)
	if l.size() != 1 {
		t.Fatalf("duplicate record grew ledger: size=%d", l.size())
	}
}

func TestLedgerTruncatesToRecentHalf(t *testing.T) {
	l := newLedger(10)
	for i := 0; i < 11; i++ {
		l.record(messageKey("c", i))
	}
	if l.size() != 5 {
		t.Fatalf("size = %d, want 5 after truncation", l.size())
	}
	// Oldest gone, newest kept.
	if l.seen(messageKey("c", 0)) {
		t.Fatalf("oldest key survived truncation")
	}
	if !l.seen(messageKey("c", 10)) {
		t.Fatalf("newest key lost in truncation")
	}
}

func TestLedgerBoundedUnderLoad(t *testing.T) {
	l := newLedger(20)
	for i := 0; i < 1000; i++ {
		l.record(messageKey("c", i))
	}
	if l.size() > 20 {
		t.Fatalf("ledger exceeded cap: %d", l.size())
	}
}

func TestLedgerPruneChat(t *testing.T) {
	l := newLedger(100)
	l.record(messageKey("a", 0))
	l.record(messageKey("a", 5))
	l.record(userKey("a", 1))
	l.record(userKey("a", 4))
	l.record(messageKey("b", 9))

	// Chat "a" shrank to 3 messages, user floor 1.
	l.pruneChat("a", 3, 1)

	if !l.seen(messageKey("a", 0)) {
		t.Fatalf("valid message key dropped")
	}
	if l.seen(messageKey("a", 5)) {
		t.Fatalf("stale message key kept after deletion")
	}
	if !l.seen(userKey("a", 1)) {
		t.Fatalf("valid user key dropped")
	}
	if l.seen(userKey("a", 4)) {
		t.Fatalf("stale user key kept")
	}
	if !l.seen(messageKey("b", 9)) {
		t.Fatalf("other chat's key must be untouched")
	}
}

func TestLedgerDrop(t *testing.T) {
	l := newLedger(10)
	key := messageKey("c", 2)
	l.record(key)
	l.drop(key)
	if l.seen(key) {
		t.Fatalf("dropped key still seen")
	}
	// Can be recorded again (swipe regenerates the same index).
	l.record(key)
	if !l.seen(key) {
		t.Fatalf("re-record after drop failed")
	}
}

func TestLedgerRestoreAppliesCap(t *testing.T) {
	l := newLedger(10)
	keys := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		keys = append(keys, fmt.Sprintf("c:%d", i))
	}
	keys = append(keys, keys[0]) // duplicate must not panic or double-count
	l.restore(keys)
	if l.size() > 10 {
		t.Fatalf("restore ignored cap: %d", l.size())
	}
}
