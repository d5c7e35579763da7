package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ledger is the bounded, insertion-ordered record of message keys already
// evaluated for trigger purposes. Checking and recording are done under
// the engine lock in one step, so a re-entrant duplicate event within the
// same tick cannot evaluate twice.
type ledger struct {
	keys  []string
	index map[string]struct{}
	max   int
}

func newLedger(max int) *ledger {
	return &ledger{index: map[string]struct{}{}, max: max}
}

// messageKey identifies "this chat + this message index".
func messageKey(chatID string, index int) string {
	return fmt.Sprintf("%s:%d", chatID, index)
}

// userKey identifies "this chat + the n-th user floor", for user-rendered
// events that carry no message index.
func userKey(chatID string, userFloor int) string {
	return fmt.Sprintf("%s:user:%d", chatID, userFloor)
}

func (l *ledger) seen(key string) bool {
	_, ok := l.index[key]
	return ok
}

// record adds key and enforces the cap: above max, the ledger is truncated
// to its most recent half, preserving recency over completeness.
func (l *ledger) record(key string) {
	if l.seen(key) {
		return
	}
	l.keys = append(l.keys, key)
	l.index[key] = struct{}{}
	l.enforceCap()
}

func (l *ledger) enforceCap() {
	if l.max <= 0 || len(l.keys) <= l.max {
		return
	}
	keep := l.max / 2
	drop := l.keys[:len(l.keys)-keep]
	for _, k := range drop {
		delete(l.index, k)
	}
	l.keys = append([]string(nil), l.keys[len(l.keys)-keep:]...)
}

// pruneChat keeps only the keys of chatID that are still derivable from
// the current transcript shape (message indexes below length, user floors
// at or below the current user floor). Keys of other chats are untouched.
func (l *ledger) pruneChat(chatID string, transcriptLen, userFloor int) {
	msgPrefix := chatID + ":"
	userPrefix := chatID + ":user:"

	kept := l.keys[:0]
	for _, k := range l.keys {
		if rest, ok := strings.CutPrefix(k, userPrefix); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				if n <= userFloor {
					kept = append(kept, k)
				} else {
					delete(l.index, k)
				}
				continue
			}
		}
		if rest, ok := strings.CutPrefix(k, msgPrefix); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				if n < transcriptLen {
					kept = append(kept, k)
				} else {
					delete(l.index, k)
				}
				continue
			}
		}
		// Not a key of this chat.
		kept = append(kept, k)
	}
	l.keys = kept
}

// drop removes a single key, e.g. when a message is swiped and will be
// re-rendered under the same index.
func (l *ledger) drop(key string) {
	if !l.seen(key) {
		return
	}
	delete(l.index, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
}

func (l *ledger) size() int { return len(l.keys) }

// snapshot returns a copy of the keys for persistence.
func (l *ledger) snapshot() []string {
	return append([]string(nil), l.keys...)
}

// restore replaces the ledger contents, applying the cap.
func (l *ledger) restore(keys []string) {
	l.keys = l.keys[:0]
	l.index = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := l.index[k]; dup {
			continue
		}
		l.keys = append(l.keys, k)
		l.index[k] = struct{}{}
	}
	l.enforceCap()
}
