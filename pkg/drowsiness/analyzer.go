// Package drowsiness tracks eye closure via the eye aspect ratio,
// maintains a rolling blink history, and scores candidate drowsiness.
package drowsiness

import (
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/geometry"
)

// Config holds the drowsiness analyzer parameters.
type Config struct {
	// EARThreshold: an average EAR below this counts as closed eyes.
	EARThreshold float64

	// Window is the trailing period blink records are retained for.
	Window time.Duration

	// LongBlink is the duration above which a blink counts as long and a
	// running closure triggers an eye-closure event.
	LongBlink time.Duration

	// BlinkRateHigh is the blinks-per-minute level contributing to the
	// drowsiness score; excessive-blinking fires above 1.5x this rate.
	BlinkRateHigh float64

	// AvgDurationHigh is the average blink duration contributing to the
	// drowsiness score.
	AvgDurationHigh time.Duration

	// LongBlinkCountHigh is the long-blink count contributing to the
	// drowsiness score.
	LongBlinkCountHigh int

	// AwakeThreshold: scores at or above this mean not awake.
	AwakeThreshold float64

	// EventSpacing is the minimum interval between two emissions of the
	// same event type, so a sustained condition cannot storm the stream.
	EventSpacing time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		EARThreshold:       0.21,
		Window:             60 * time.Second,
		LongBlink:          300 * time.Millisecond,
		BlinkRateHigh:      25,
		AvgDurationHigh:    250 * time.Millisecond,
		LongBlinkCountHigh: 3,
		AwakeThreshold:     0.6,
		EventSpacing:       10 * time.Second,
	}
}

// BlinkRecord is one completed blink. Records older than the analysis
// window are evicted.
type BlinkRecord struct {
	Timestamp time.Time
	Duration  time.Duration
}

// Stats is the rolling counters snapshot exposed for telemetry.
type Stats struct {
	TotalBlinks        int     `json:"total_blinks"`
	BlinkRate          float64 `json:"blink_rate"` // per minute, trailing window
	AvgDrowsinessScore float64 `json:"avg_drowsiness_score"`
}

// Analyzer is the drowsiness detector. Not safe for concurrent use from
// multiple frame sources; a single frame pipeline feeds it.
type Analyzer struct {
	cfg Config

	mu           sync.Mutex
	blinks       []BlinkRecord
	closureStart time.Time // zero when eyes are open
	lastEmit     map[event.Type]time.Time

	totalBlinks int
	scoreSum    float64
	scoreCount  int

	now func() time.Time
}

// NewAnalyzer creates a drowsiness analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.EARThreshold <= 0 {
		cfg.EARThreshold = def.EARThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LongBlink <= 0 {
		cfg.LongBlink = def.LongBlink
	}
	if cfg.BlinkRateHigh <= 0 {
		cfg.BlinkRateHigh = def.BlinkRateHigh
	}
	if cfg.AvgDurationHigh <= 0 {
		cfg.AvgDurationHigh = def.AvgDurationHigh
	}
	if cfg.LongBlinkCountHigh <= 0 {
		cfg.LongBlinkCountHigh = def.LongBlinkCountHigh
	}
	if cfg.AwakeThreshold <= 0 {
		cfg.AwakeThreshold = def.AwakeThreshold
	}
	return &Analyzer{
		cfg:      cfg,
		lastEmit: make(map[event.Type]time.Time),
		now:      time.Now,
	}
}

// AnalyzeEyes computes the eye metrics for one frame's landmarks. Sparse
// landmark sets (no eye contours) read as open eyes: missing data must
// never register as a closure.
func (a *Analyzer) AnalyzeEyes(landmarks []geometry.Point) event.EyeMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzeEyesLocked(landmarks, a.now())
}

func (a *Analyzer) analyzeEyesLocked(landmarks []geometry.Point, now time.Time) event.EyeMetrics {
	leftEAR := geometry.OpenEyeEAR
	rightEAR := geometry.OpenEyeEAR

	if left, ok := geometry.ExtractEye(landmarks, geometry.LeftEyeIndices); ok {
		leftEAR = geometry.EyeAspectRatio(left)
	}
	if right, ok := geometry.ExtractEye(landmarks, geometry.RightEyeIndices); ok {
		rightEAR = geometry.EyeAspectRatio(right)
	}

	avg := (leftEAR + rightEAR) / 2
	closed := avg < a.cfg.EARThreshold

	metrics := event.EyeMetrics{
		LeftEAR:      leftEAR,
		RightEAR:     rightEAR,
		AverageEAR:   avg,
		IsEyesClosed: closed,
	}

	switch {
	case closed && a.closureStart.IsZero():
		// Open -> closed: mark the closure start.
		a.closureStart = now
	case closed:
		// Still closed: report the running duration without finalizing.
		metrics.ClosureDuration = now.Sub(a.closureStart)
	case !a.closureStart.IsZero():
		// Closed -> open: finalize the blink.
		duration := now.Sub(a.closureStart)
		a.blinks = append(a.blinks, BlinkRecord{Timestamp: now, Duration: duration})
		a.totalBlinks++
		a.closureStart = time.Time{}
		metrics.ClosureDuration = duration
	}

	a.evictLocked(now)
	return metrics
}

// evictLocked drops blink records older than the analysis window.
func (a *Analyzer) evictLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.Window)
	i := 0
	for ; i < len(a.blinks); i++ {
		if a.blinks[i].Timestamp.After(cutoff) {
			break
		}
	}
	if i > 0 {
		a.blinks = append(a.blinks[:0], a.blinks[i:]...)
	}
}

// Metrics computes the trailing-window drowsiness metrics.
func (a *Analyzer) Metrics() event.DrowsinessMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metricsLocked(a.now())
}

func (a *Analyzer) metricsLocked(now time.Time) event.DrowsinessMetrics {
	a.evictLocked(now)

	windowMinutes := a.cfg.Window.Minutes()
	blinkRate := float64(len(a.blinks)) / windowMinutes

	var totalDur time.Duration
	longCount := 0
	for _, b := range a.blinks {
		totalDur += b.Duration
		if b.Duration > a.cfg.LongBlink {
			longCount++
		}
	}
	var avgDur time.Duration
	if len(a.blinks) > 0 {
		avgDur = totalDur / time.Duration(len(a.blinks))
	}

	// Additive score from three independent factors, clamped to [0,1].
	score := 0.0
	if blinkRate > a.cfg.BlinkRateHigh {
		score += 0.3
	}
	if avgDur > a.cfg.AvgDurationHigh {
		score += 0.4
	}
	if longCount >= a.cfg.LongBlinkCountHigh {
		score += 0.3
	}
	score = geometry.Clamp(score, 0, 1)

	a.scoreSum += score
	a.scoreCount++

	return event.DrowsinessMetrics{
		BlinkRate:            blinkRate,
		AverageBlinkDuration: avgDur,
		LongBlinkCount:       longCount,
		DrowsinessScore:      score,
		IsAwake:              score < a.cfg.AwakeThreshold,
	}
}

// ProcessFrame analyzes one frame's landmarks and returns at most one
// event, or nil when no trigger condition holds. Trigger priority:
// not-awake, then prolonged running closure, then excessive blink rate.
func (a *Analyzer) ProcessFrame(landmarks []geometry.Point) *event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	eye := a.analyzeEyesLocked(landmarks, now)
	metrics := a.metricsLocked(now)

	confidence := 1 - metrics.DrowsinessScore
	md := &event.DrowsinessMetadata{Eye: eye, Drowsiness: metrics}

	switch {
	case !metrics.IsAwake:
		return a.emitLocked(event.TypeDrowsiness, confidence, md, 0, now)
	case eye.IsEyesClosed && eye.ClosureDuration > a.cfg.LongBlink:
		return a.emitLocked(event.TypeEyeClosure, confidence, md, eye.ClosureDuration, now)
	case metrics.BlinkRate > a.cfg.BlinkRateHigh*1.5:
		return a.emitLocked(event.TypeExcessiveBlinking, confidence, md, 0, now)
	}
	return nil
}

// emitLocked builds the event if the per-type spacing allows it.
func (a *Analyzer) emitLocked(t event.Type, confidence float64, md *event.DrowsinessMetadata, d time.Duration, now time.Time) *event.Event {
	if a.cfg.EventSpacing > 0 {
		if last, ok := a.lastEmit[t]; ok && now.Sub(last) < a.cfg.EventSpacing {
			return nil
		}
	}
	e, err := event.New(t, confidence, md)
	if err != nil {
		return nil
	}
	if d > 0 {
		e = e.WithDuration(d)
	}
	a.lastEmit[t] = now
	return &e
}

// Stats returns the rolling counters snapshot.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evictLocked(a.now())
	s := Stats{
		TotalBlinks: a.totalBlinks,
		BlinkRate:   float64(len(a.blinks)) / a.cfg.Window.Minutes(),
	}
	if a.scoreCount > 0 {
		s.AvgDrowsinessScore = a.scoreSum / float64(a.scoreCount)
	}
	return s
}

// Reset clears all accumulated state: blink history, closure marker,
// counters and spacing gates.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blinks = nil
	a.closureStart = time.Time{}
	a.lastEmit = make(map[event.Type]time.Time)
	a.totalBlinks = 0
	a.scoreSum = 0
	a.scoreCount = 0
}
