// Package monitor is the engine's fan-in layer: it owns the per-signal
// analyzers, stamps their events with session identity, flags
// duplicates, aggregates per-type summaries and forwards everything to
// one registered handler.
package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/invigilab/go-invigil/internal/log"
	"github.com/invigilab/go-invigil/pkg/audio"
	"github.com/invigilab/go-invigil/pkg/audioio"
	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/drowsiness"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/focus"
	"github.com/invigilab/go-invigil/pkg/gaze"
	"github.com/invigilab/go-invigil/pkg/metrics"
	"github.com/invigilab/go-invigil/pkg/objects"
)

var (
	// ErrNotInitialized is returned when Start is called before Initialize.
	ErrNotInitialized = errors.New("monitor: not initialized")
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("monitor: already running")
	// ErrNotRunning is returned when Stop is called while idle.
	ErrNotRunning = errors.New("monitor: not running")
)

// recentCap bounds the in-memory ring of recent events served to the
// dashboard.
const recentCap = 256

// Config aggregates the per-analyzer configurations.
type Config struct {
	Focus      focus.Config
	Gaze       gaze.Config
	Drowsiness drowsiness.Config
	Objects    objects.Config
	Audio      audio.Config
}

// DefaultConfig returns the tuned defaults for every analyzer.
func DefaultConfig() Config {
	return Config{
		Focus:      focus.DefaultConfig(),
		Gaze:       gaze.DefaultConfig(),
		Drowsiness: drowsiness.DefaultConfig(),
		Objects:    objects.DefaultConfig(),
		Audio:      audio.DefaultConfig(),
	}
}

// Stats is the control-surface snapshot exposed for display and
// telemetry.
type Stats struct {
	MonitoringActive bool      `json:"monitoring_active"`
	SessionID        string    `json:"session_id,omitempty"`
	CandidateID      string    `json:"candidate_id,omitempty"`
	StartedAt        time.Time `json:"started_at,omitempty"`

	TotalBlinks        int     `json:"total_blinks"`
	BlinkRate          float64 `json:"blink_rate"`
	AvgDrowsinessScore float64 `json:"avg_drowsiness_score"`

	BaselineNoise      float64 `json:"baseline_noise"`
	SpeechSegmentCount int     `json:"speech_segment_count"`
	AverageVolume      float64 `json:"average_volume"`

	EventsEmitted     int64 `json:"events_emitted"`
	DuplicatesFlagged int64 `json:"duplicates_flagged"`
}

// Monitor owns the analyzers and the outbound event stream.
type Monitor struct {
	cfg     Config
	metrics *metrics.Manager

	mu          sync.Mutex
	initialized bool
	active      bool
	sessionID   string
	candidateID string
	startedAt   time.Time

	focus   *focus.Machine
	drowsy  *drowsiness.Analyzer
	objects *objects.Analyzer
	audio   *audio.Analyzer

	dedupe  *Deduper
	summary *summarizer
	recent  []event.Event
	emitted int64
	handler event.Handler
}

// New creates a monitor. Call Initialize before Start.
func New(cfg Config) *Monitor {
	return &Monitor{
		cfg:     cfg,
		metrics: metrics.Default(),
		dedupe:  NewDeduper(),
		summary: newSummarizer(),
	}
}

// OnEvent registers the single outbound handler. Passing nil unregisters
// it; emission is a no-op while unset.
func (m *Monitor) OnEvent(h event.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Initialize builds the analyzers. Safe to call more than once.
func (m *Monitor) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	machine, err := focus.NewMachine(m.cfg.Focus, m.cfg.Gaze, m.dispatch)
	if err != nil {
		return err
	}
	m.focus = machine
	m.drowsy = drowsiness.NewAnalyzer(m.cfg.Drowsiness)
	m.objects = objects.NewAnalyzer(m.cfg.Objects)
	m.audio = audio.NewAnalyzer(m.cfg.Audio)
	m.initialized = true

	log.Info("monitor initialized")
	return nil
}

// Start begins a monitoring session for the given candidate. All
// analyzer state is reset so nothing leaks across sessions.
func (m *Monitor) Start(sessionID, candidateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if m.active {
		return ErrAlreadyRunning
	}

	m.sessionID = sessionID
	m.candidateID = candidateID
	m.startedAt = time.Now()
	m.resetLocked()
	m.active = true

	log.Info("monitoring started", "session_id", sessionID, "candidate_id", candidateID)
	return nil
}

// Stop ends the session. Analyzer state is kept so Summary and GetStats
// remain meaningful until the next Start or Reset.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNotRunning
	}
	m.active = false
	m.focus.Cleanup()

	log.Info("monitoring stopped", "session_id", m.sessionID)
	return nil
}

// Reset clears all analyzer and aggregation state without ending the
// session.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Monitor) resetLocked() {
	if m.focus != nil {
		m.focus.Reset()
	}
	if m.drowsy != nil {
		m.drowsy.Reset()
	}
	if m.objects != nil {
		m.objects.Reset()
	}
	if m.audio != nil {
		m.audio.Reset()
	}
	m.dedupe.Reset()
	m.summary.reset()
	m.recent = nil
	m.emitted = 0
}

// Cleanup tears the monitor down: timers cancelled, analyzers released.
// Idempotent; Initialize must be called again before reuse.
func (m *Monitor) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return
	}
	m.active = false
	if m.focus != nil {
		m.focus.Cleanup()
	}
	m.focus = nil
	m.drowsy = nil
	m.objects = nil
	m.audio = nil
	m.initialized = false

	log.Info("monitor cleaned up")
}

// ProcessVideoFrame routes one frame's face detections through the
// presence and drowsiness analyzers. Frames arriving while the monitor
// is idle are ignored.
func (m *Monitor) ProcessVideoFrame(result detect.FrameResult) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	machine, drowsy := m.focus, m.drowsy
	m.mu.Unlock()

	status := machine.ProcessFrame(result)
	m.metrics.FrameProcessed(status.FaceCount)

	// Drowsiness only reads the candidate's own face.
	if primary := detect.SelectPrimary(result.Faces); primary != nil && status.FaceCount == 1 {
		if e := drowsy.ProcessFrame(primary.Landmarks); e != nil {
			m.dispatch(*e)
		}
	}
}

// ProcessObjects routes one tick of object detections through the
// unauthorized-item analyzer.
func (m *Monitor) ProcessObjects(detections []detect.Object) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	analyzer := m.objects
	m.mu.Unlock()

	for _, e := range analyzer.ProcessTick(detections) {
		m.dispatch(e)
	}
}

// ProcessAudio routes one spectral frame through the audio anomaly
// analyzer.
func (m *Monitor) ProcessAudio(sp audioio.Spectrum) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	analyzer := m.audio
	m.mu.Unlock()

	m.metrics.AudioTick()
	for _, e := range analyzer.ProcessTick(sp) {
		m.dispatch(e)
	}
}

// FlagManual injects a proctor-originated event directly into the
// stream, bypassing the analyzers.
func (m *Monitor) FlagManual(description string, severity event.Severity, flaggedBy string) (event.Event, error) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if !active {
		return event.Event{}, ErrNotRunning
	}

	e, err := event.New(event.TypeManualFlag, 1.0, &event.ManualMetadata{
		Description: description,
		Severity:    severity,
		FlaggedBy:   flaggedBy,
	})
	if err != nil {
		return event.Event{}, err
	}
	m.metrics.ManualFlag()
	m.dispatch(e)
	return e, nil
}

// dispatch stamps, dedup-flags, records and forwards one event. It is
// the single funnel every analyzer emission passes through.
func (m *Monitor) dispatch(e event.Event) {
	m.mu.Lock()
	if !m.active {
		// A timer may fire between Stop and its cancellation; swallow
		// post-teardown emissions.
		m.mu.Unlock()
		return
	}
	e.SessionID = m.sessionID
	e.CandidateID = m.candidateID

	duplicate := m.dedupe.Check(&e)
	if !duplicate {
		m.summary.record(e)
	}
	m.recent = append(m.recent, e)
	if len(m.recent) > recentCap {
		m.recent = m.recent[1:]
	}
	m.emitted++
	handler := m.handler
	m.mu.Unlock()

	m.metrics.EventEmitted(string(e.Type), duplicate)
	log.Debug("event emitted",
		"type", e.Type,
		"confidence", e.Confidence,
		"duplicate", duplicate,
	)
	if handler != nil {
		handler(e)
	}
}

// GetStats returns the control-surface snapshot.
func (m *Monitor) GetStats() Stats {
	m.mu.Lock()
	s := Stats{
		MonitoringActive:  m.active,
		SessionID:         m.sessionID,
		CandidateID:       m.candidateID,
		StartedAt:         m.startedAt,
		EventsEmitted:     m.emitted,
		DuplicatesFlagged: m.dedupe.Flagged(),
	}
	drowsy, aud := m.drowsy, m.audio
	m.mu.Unlock()

	if drowsy != nil {
		ds := drowsy.Stats()
		s.TotalBlinks = ds.TotalBlinks
		s.BlinkRate = ds.BlinkRate
		s.AvgDrowsinessScore = ds.AvgDrowsinessScore
	}
	if aud != nil {
		as := aud.Stats()
		s.BaselineNoise = as.BaselineNoise
		s.SpeechSegmentCount = as.SegmentCount
		s.AverageVolume = as.AverageVolume
	}
	return s
}

// Summary returns the per-type aggregation of non-duplicate events.
func (m *Monitor) Summary() []TypeSummary {
	return m.summary.snapshot()
}

// Recent returns up to n most recent events, newest last.
func (m *Monitor) Recent(n int) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}
	out := make([]event.Event, n)
	copy(out, m.recent[len(m.recent)-n:])
	return out
}
