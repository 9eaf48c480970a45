package focus

import "time"

// timerState tracks one debounced-transition timer. Start, stop and fire
// are the only operations; each is idempotent. The generation counter
// guards against a stale fire racing a cancellation: a callback scheduled
// before Stop observes a generation mismatch and does nothing.
type timerState struct {
	active    bool
	startTime time.Time
	handle    *time.Timer
	gen       uint64
}

// start arms the timer if it is not already active. Starting while active
// is a no-op. fire runs on the timer goroutine and receives the
// generation current at scheduling time.
func (t *timerState) start(d time.Duration, now time.Time, fire func(gen uint64)) {
	if t.active {
		return
	}
	t.active = true
	t.startTime = now
	t.gen++
	gen := t.gen
	t.handle = time.AfterFunc(d, func() { fire(gen) })
}

// stop cancels a pending fire. Safe to call when inactive.
func (t *timerState) stop() {
	if !t.active {
		return
	}
	t.active = false
	t.gen++
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
}

// consume marks the timer fired if gen still matches the armed generation.
// Returns false when the fire is stale (cancelled or re-armed since).
func (t *timerState) consume(gen uint64) bool {
	if !t.active || t.gen != gen {
		return false
	}
	t.active = false
	t.handle = nil
	return true
}
