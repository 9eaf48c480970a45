package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/event"
)

// TypeSummary is the compact per-type report entry built from
// non-duplicate events.
type TypeSummary struct {
	Type           event.Type    `json:"type"`
	Count          int           `json:"count"`
	TotalDuration  time.Duration `json:"total_duration"`
	First          time.Time     `json:"first"`
	Last           time.Time     `json:"last"`
	MeanConfidence float64       `json:"mean_confidence"`
}

// summarizer accumulates per-type aggregates.
type summarizer struct {
	mu      sync.Mutex
	byType  map[event.Type]*TypeSummary
	confSum map[event.Type]float64
}

func newSummarizer() *summarizer {
	return &summarizer{
		byType:  make(map[event.Type]*TypeSummary),
		confSum: make(map[event.Type]float64),
	}
}

// record folds one non-duplicate event into the aggregates. Duplicates
// are skipped by the caller.
func (s *summarizer) record(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.byType[e.Type]
	if !ok {
		ts = &TypeSummary{Type: e.Type, First: e.Timestamp}
		s.byType[e.Type] = ts
	}
	ts.Count++
	ts.TotalDuration += e.Duration
	ts.Last = e.Timestamp
	s.confSum[e.Type] += e.Confidence
	ts.MeanConfidence = s.confSum[e.Type] / float64(ts.Count)
}

// snapshot returns the aggregates sorted by type name.
func (s *summarizer) snapshot() []TypeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TypeSummary, 0, len(s.byType))
	for _, ts := range s.byType {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (s *summarizer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byType = make(map[event.Type]*TypeSummary)
	s.confSum = make(map[event.Type]float64)
}
