package engine

import (
	"sort"
	"time"
)

// cooldownTracker remembers, per task name, when the task last fired
// (wall-clock anti-double-fire guard) and at which floor a floor-based task
// last fired (baseline for running-delta arithmetic). The two concerns are
// kept in separate maps but share one lifecycle: both are cleared on chat
// change and bounded by the janitor sweep.
type cooldownTracker struct {
	fired  map[string]time.Time
	floors map[string]floorBaseline
}

type floorBaseline struct {
	floor   int
	touched time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{
		fired:  map[string]time.Time{},
		floors: map[string]floorBaseline{},
	}
}

// firedWithin reports whether name fired less than window ago.
func (c *cooldownTracker) firedWithin(name string, window time.Duration, now time.Time) bool {
	t, ok := c.fired[name]
	if !ok {
		return false
	}
	return now.Sub(t) < window
}

func (c *cooldownTracker) markFired(name string, now time.Time) {
	c.fired[name] = now
}

// lastFiredFloor defaults to 0 for tasks that never fired.
func (c *cooldownTracker) lastFiredFloor(name string) int {
	return c.floors[name].floor
}

func (c *cooldownTracker) setFiredFloor(name string, floor int, now time.Time) {
	c.floors[name] = floorBaseline{floor: floor, touched: now}
}

// remaining reports how much of the cooldown window is left for name.
func (c *cooldownTracker) remaining(name string, window time.Duration, now time.Time) time.Duration {
	t, ok := c.fired[name]
	if !ok {
		return 0
	}
	left := window - now.Sub(t)
	if left < 0 {
		return 0
	}
	return left
}

// clear wipes both maps. A chat switch invalidates every baseline.
func (c *cooldownTracker) clear() {
	c.fired = map[string]time.Time{}
	c.floors = map[string]floorBaseline{}
}

// sweep is the lazy eviction pass. Wall-clock entries expire logically
// after window but are only removed here, once twice the window has passed
// with no update; that tolerates bursts of near-simultaneous events. If a
// map still exceeds max, only the most-recently-touched entries survive.
func (c *cooldownTracker) sweep(now time.Time, window time.Duration, max int) {
	for name, t := range c.fired {
		if now.Sub(t) > 2*window {
			delete(c.fired, name)
		}
	}
	trimOldest(c.fired, max, func(t time.Time) time.Time { return t })
	trimOldest(c.floors, max, func(b floorBaseline) time.Time { return b.touched })
}

func (c *cooldownTracker) size() (fired, floors int) {
	return len(c.fired), len(c.floors)
}

func trimOldest[V any](m map[string]V, max int, at func(V) time.Time) {
	if max <= 0 || len(m) <= max {
		return
	}
	type kv struct {
		key string
		t   time.Time
	}
	items := make([]kv, 0, len(m))
	for k, v := range m {
		items = append(items, kv{key: k, t: at(v)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].t.Before(items[j].t) })
	excess := len(m) - max
	for i := 0; i < excess; i++ {
		delete(m, items[i].key)
	}
}
