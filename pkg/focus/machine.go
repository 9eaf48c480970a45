// Package focus maintains the focus/presence/multi-face state machine.
// It consumes per-frame face detections, debounces the face count, and
// emits focus-loss, focus-restored, absence, face-visible and
// multiple-faces events with warmup, hysteresis and cooldown gating.
package focus

import (
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/debounce"
	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/gaze"
)

// Machine resolves three dimensions of state from the debounced face
// count, in fixed priority order each frame: absence (count 0), multiple
// faces (count > 1), then single-face gaze. The dimensions are mutually
// exclusive at the face-count level so the ordering is total.
type Machine struct {
	cfg     Config
	tracker *gaze.Tracker

	mu      sync.Mutex
	history *debounce.History
	prev    gaze.Status

	frameCount    int // total frames seen, drives warmup
	absenceFrames int // consecutive debounced zero-face frames
	multiFrames   int // consecutive debounced multi-face frames
	singleFrames  int // consecutive debounced single-face frames

	absenceTriggered   bool
	multiTriggered     bool
	unfocusedConfirmed bool // focus-loss fired and focus not yet restored

	awayTimer timerState

	lastEventType event.Type
	lastEventTime time.Time

	active  bool
	handler event.Handler

	now func() time.Time // injectable for tests
}

// NewMachine creates a focus state machine. handler may be nil; events
// are then dropped.
func NewMachine(cfg Config, gazeCfg gaze.Config, handler event.Handler) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:     cfg,
		tracker: gaze.NewTracker(gazeCfg),
		history: debounce.NewHistory(cfg.FrameBuffer),
		handler: handler,
		active:  true,
		now:     time.Now,
	}, nil
}

// Status returns a read-only snapshot of the last confirmed frame status.
func (m *Machine) Status() gaze.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prev
}

// ProcessFrame feeds one frame's detections through the state machine.
// It returns the frame's debounced status. Calling after Cleanup is a
// guarded no-op returning the last status rather than an error: a missed
// frame is cheaper than killing the detection loop.
func (m *Machine) ProcessFrame(result detect.FrameResult) gaze.Status {
	m.mu.Lock()

	if !m.active {
		status := m.prev
		m.mu.Unlock()
		return status
	}

	var g gaze.Vector
	if primary := detect.SelectPrimary(result.Faces); primary != nil {
		g = m.tracker.Track(primary.Landmarks)
	}

	stable := m.history.Update(len(result.Faces))
	status := gaze.CheckFocus(g, stable)

	m.frameCount++
	if m.frameCount <= m.cfg.WarmupFrames {
		// Warmup: keep feeding the debouncer, trigger nothing.
		m.prev = status
		m.mu.Unlock()
		return status
	}

	var pending []event.Event
	switch {
	case stable == 0:
		pending = m.stepAbsent()
	case stable > 1:
		pending = m.stepMultiple(status)
	default:
		pending = m.stepSingle(status)
	}

	m.prev = status
	handler := m.handler
	m.mu.Unlock()

	emitAll(handler, pending)
	return status
}

// stepAbsent handles the debounced zero-face dimension.
// Callers hold m.mu.
func (m *Machine) stepAbsent() []event.Event {
	// Presence and multi-face counters must not interfere while absent.
	// A multi-face episode ends as soon as the count leaves >1, so the
	// flag clears here as well as on single-face recovery.
	m.multiFrames = 0
	m.multiTriggered = false
	m.singleFrames = 0
	m.awayTimer.stop()

	m.absenceFrames++
	if m.absenceFrames < m.cfg.AbsenceFrames || m.absenceTriggered {
		return nil
	}

	// One emission per sustained episode, cooldown or not.
	m.absenceTriggered = true
	if !m.cooldownAllows(event.TypeAbsence) {
		return nil
	}
	e, err := event.New(event.TypeAbsence, m.cfg.AbsenceConfidence, &event.PresenceMetadata{
		FaceCount:    0,
		StableFrames: m.absenceFrames,
	})
	if err != nil {
		return nil
	}
	m.recordEmission(e.Type)
	return []event.Event{e}
}

// stepMultiple handles the debounced multi-face dimension.
// Callers hold m.mu.
func (m *Machine) stepMultiple(status gaze.Status) []event.Event {
	m.absenceFrames = 0
	m.singleFrames = 0
	m.awayTimer.stop()

	m.multiFrames++
	if m.multiFrames < m.cfg.MultipleFaceFrames || m.multiTriggered {
		return nil
	}

	m.multiTriggered = true
	if !m.cooldownAllows(event.TypeMultipleFaces) {
		return nil
	}
	e, err := event.New(event.TypeMultipleFaces, status.Confidence, &event.PresenceMetadata{
		FaceCount:    status.FaceCount,
		StableFrames: m.multiFrames,
	})
	if err != nil {
		return nil
	}
	m.recordEmission(e.Type)
	return []event.Event{e}
}

// stepSingle handles the single-face dimension: recovery hysteresis first,
// then the gaze timer. Callers hold m.mu.
func (m *Machine) stepSingle(status gaze.Status) []event.Event {
	m.absenceFrames = 0
	m.multiFrames = 0
	m.singleFrames++

	var pending []event.Event

	if (m.absenceTriggered || m.multiTriggered) && m.singleFrames >= m.cfg.RecoveryFrames {
		// Episode over either way; clearing the flags lets the cycle
		// repeat even when cooldown swallows the recovery event.
		m.absenceTriggered = false
		m.multiTriggered = false
		if m.cooldownAllows(event.TypeFaceVisible) {
			if e, err := event.New(event.TypeFaceVisible, status.Confidence, &event.PresenceMetadata{
				FaceCount:    1,
				StableFrames: m.singleFrames,
			}); err == nil {
				m.recordEmission(e.Type)
				pending = append(pending, e)
			}
		}
	}

	if status.IsFocused {
		m.awayTimer.stop()
		// focus-restored fires only after a confirmed focus-loss, not
		// after every cancelled timer.
		if m.unfocusedConfirmed {
			m.unfocusedConfirmed = false
			if e, err := event.New(event.TypeFocusRestored, status.Confidence, &event.GazeMetadata{
				GazeX:             status.Gaze.X,
				GazeY:             status.Gaze.Y,
				IsLookingAtScreen: true,
				FaceCount:         status.FaceCount,
			}); err == nil {
				pending = append(pending, e)
			}
		}
	} else {
		m.awayTimer.start(m.cfg.LookingAwayThreshold, m.now(), m.onAwayTimerFire)
	}

	return pending
}

// onAwayTimerFire runs on the timer goroutine when the looking-away
// threshold elapses without the timer being cancelled.
func (m *Machine) onAwayTimerFire(gen uint64) {
	m.mu.Lock()

	if !m.active || !m.awayTimer.consume(gen) {
		m.mu.Unlock()
		return
	}

	m.unfocusedConfirmed = true
	status := m.prev
	handler := m.handler

	e, err := event.New(event.TypeFocusLoss, status.Confidence, &event.GazeMetadata{
		GazeX:             status.Gaze.X,
		GazeY:             status.Gaze.Y,
		IsLookingAtScreen: false,
		FaceCount:         status.FaceCount,
	})
	m.mu.Unlock()

	if err != nil {
		return
	}
	emitAll(handler, []event.Event{e.WithDuration(m.cfg.LookingAwayThreshold)})
}

// cooldownAllows reports whether an event of type t may be emitted given
// the last presence-cluster emission. Same-type re-emission and the paired
// opposite (absence/multiple-faces vs face-visible) are both suppressed
// within the window. Callers hold m.mu.
func (m *Machine) cooldownAllows(t event.Type) bool {
	if m.lastEventType == "" {
		return true
	}
	if m.now().Sub(m.lastEventTime) >= m.cfg.Cooldown {
		return true
	}
	if t == m.lastEventType {
		return false
	}
	return !paired(t, m.lastEventType)
}

// paired reports whether a and b are opposite presence events whose rapid
// alternation would indicate flapping at a detection boundary.
func paired(a, b event.Type) bool {
	opposite := func(x, y event.Type) bool {
		return (x == event.TypeAbsence || x == event.TypeMultipleFaces) && y == event.TypeFaceVisible
	}
	return opposite(a, b) || opposite(b, a)
}

// recordEmission notes the last presence-cluster emission for cooldown
// tracking. Callers hold m.mu.
func (m *Machine) recordEmission(t event.Type) {
	m.lastEventType = t
	m.lastEventTime = m.now()
}

// Reset returns the machine to its initial state: timers cancelled,
// counters zeroed, warmup restarted. The handler is kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.awayTimer.stop()
	m.history.Reset()
	m.prev = gaze.Status{}
	m.frameCount = 0
	m.absenceFrames = 0
	m.multiFrames = 0
	m.singleFrames = 0
	m.absenceTriggered = false
	m.multiTriggered = false
	m.unfocusedConfirmed = false
	m.lastEventType = ""
	m.lastEventTime = time.Time{}
	m.active = true
}

// Cleanup cancels all timers and deactivates the machine. Idempotent;
// a timer callback already scheduled observes the inactive flag and
// emits nothing.
func (m *Machine) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.awayTimer.stop()
	m.absenceTriggered = false
	m.multiTriggered = false
	m.unfocusedConfirmed = false
	m.active = false
}

// emitAll invokes the handler outside the machine lock.
func emitAll(h event.Handler, events []event.Event) {
	if h == nil {
		return
	}
	for _, e := range events {
		h(e)
	}
}
