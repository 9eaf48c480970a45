package monitor

import (
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/event"
)

// Deduper flags near-identical repeat events. Two events of the same
// type within the window and with confidence within epsilon are
// duplicates; the later one is flagged rather than dropped so the audit
// trail stays complete and consumers can filter.
type Deduper struct {
	window  time.Duration
	epsilon float64

	mu   sync.Mutex
	last map[event.Type]dedupeEntry

	flagged int64
	now     func() time.Time
}

type dedupeEntry struct {
	at         time.Time
	confidence float64
}

// DedupeOption configures a Deduper.
type DedupeOption func(*Deduper)

// WithWindow sets the duplicate time window.
func WithWindow(d time.Duration) DedupeOption {
	return func(dd *Deduper) { dd.window = d }
}

// WithEpsilon sets the confidence similarity bound.
func WithEpsilon(e float64) DedupeOption {
	return func(dd *Deduper) { dd.epsilon = e }
}

// NewDeduper creates a deduper with the default 2s window and 0.05
// confidence epsilon.
func NewDeduper(opts ...DedupeOption) *Deduper {
	d := &Deduper{
		window:  2 * time.Second,
		epsilon: 0.05,
		last:    make(map[event.Type]dedupeEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check records e and sets its Duplicate flag when it repeats the
// previous event of its type. Returns the flag value.
func (d *Deduper) Check(e *event.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	prev, seen := d.last[e.Type]
	d.last[e.Type] = dedupeEntry{at: now, confidence: e.Confidence}

	if !seen || now.Sub(prev.at) > d.window {
		return false
	}
	if diff := e.Confidence - prev.confidence; diff > d.epsilon || diff < -d.epsilon {
		return false
	}
	e.Duplicate = true
	d.flagged++
	return true
}

// Flagged returns how many events have been flagged as duplicates.
func (d *Deduper) Flagged() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flagged
}

// Reset clears the seen history and counters.
func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = make(map[event.Type]dedupeEntry)
	d.flagged = 0
}
