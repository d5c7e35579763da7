package kit

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus fans chat events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full drops the event rather than blocking the
// adapter's poll loop.
type Bus struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs []chan Event

	dropped atomic.Uint64
}

// Dropped reports how many events were discarded because a subscriber was
// slower than the adapter.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe func. Unsubscribing closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == ch {
				last := len(b.subs) - 1
				b.subs[i] = b.subs[last]
				b.subs[last] = nil
				b.subs = b.subs[:last]
				close(ch)
				return
			}
		}
	}
	return ch, unsub
}

// Publish delivers e to every subscriber. Full subscribers are skipped.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			if b.log != nil {
				b.log.Warn("event dropped (subscriber slow)",
					slog.String("kind", e.Kind.String()),
					slog.String("chat", e.ChatID))
			}
		}
	}
}
