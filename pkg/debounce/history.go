// Package debounce stabilizes noisy per-frame discrete signals. Raw
// classifier output flickers (0/1/2 faces frame to frame); a short
// mode-voted window converts the flicker into a stable decision without
// adding much latency. Downstream state machines must compare the stable
// value, never the raw one, against their thresholds.
package debounce

// DefaultFrameBuffer is the default rolling-window capacity.
const DefaultFrameBuffer = 7

// History is a fixed-capacity FIFO of raw counts with mode voting.
// The zero value is not usable; construct with NewHistory.
type History struct {
	recent []int // ring buffer storage
	head   int   // next write position
	size   int   // number of valid samples
	stable int   // current mode of the buffer
}

// NewHistory creates a history with the given window capacity.
// Capacities below 1 fall back to DefaultFrameBuffer.
func NewHistory(frameBuffer int) *History {
	if frameBuffer < 1 {
		frameBuffer = DefaultFrameBuffer
	}
	return &History{recent: make([]int, frameBuffer)}
}

// Update pushes rawCount into the window, evicting the oldest sample on
// overflow, and returns the new stable count: the statistical mode of the
// window, with ties broken in favor of the current raw count and then the
// most recently inserted value reaching that frequency.
func (h *History) Update(rawCount int) int {
	h.recent[h.head] = rawCount
	h.head = (h.head + 1) % len(h.recent)
	if h.size < len(h.recent) {
		h.size++
	}

	h.stable = h.mode(rawCount)
	return h.stable
}

// Stable returns the current debounced count without inserting a sample.
func (h *History) Stable() int {
	return h.stable
}

// Len returns how many samples the window currently holds.
func (h *History) Len() int {
	return h.size
}

// Reset discards all samples and the stable value.
func (h *History) Reset() {
	h.head = 0
	h.size = 0
	h.stable = 0
}

// mode computes the most frequent value in the window. Iteration runs from
// the newest sample backwards so that among equally frequent values the
// most recent one wins; the current raw count takes absolute precedence on
// ties since it is the newest sample of all.
func (h *History) mode(rawCount int) int {
	counts := make(map[int]int, h.size)
	best := rawCount
	bestFreq := 0

	for i := 0; i < h.size; i++ {
		// Newest first: head-1 is the most recent insertion.
		idx := (h.head - 1 - i + 2*len(h.recent)) % len(h.recent)
		v := h.recent[idx]
		counts[v]++
		if counts[v] > bestFreq || (counts[v] == bestFreq && v == rawCount) {
			best = v
			bestFreq = counts[v]
		}
	}
	return best
}
