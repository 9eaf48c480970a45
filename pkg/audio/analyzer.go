// Package audio detects acoustic anomalies in the candidate's
// environment: background voices, overlapping speakers and sustained
// noise above the calibrated room baseline. Input is the byte-valued
// spectral frame stream produced by audioio.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/audioio"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/geometry"
)

// Config holds the anomaly analyzer parameters.
type Config struct {
	// VoiceBandLow/VoiceBandHigh bound the human-voice band in Hz.
	VoiceBandLow  float64
	VoiceBandHigh float64

	// VADThreshold is the voice-activity ratio above which a tick is
	// treated as speech.
	VADThreshold float64

	// MinSegment is the shortest run of speech ticks that counts as a
	// speech segment.
	MinSegment time.Duration

	// EventSpacing is the minimum interval between two emissions of the
	// same event type.
	EventSpacing time.Duration

	// MultiVoiceWindow is how far apart a candidate and a non-candidate
	// segment may close and still count as overlapping voices.
	MultiVoiceWindow time.Duration

	// CalibrationSamples is the number of initial ticks averaged into
	// the noise baseline before it freezes.
	CalibrationSamples int

	// NoiseMargin is how far above the baseline the sub-voice-band
	// level must rise to count as excessive noise (byte-bin units).
	NoiseMargin float64

	// VolumeHistory is the rolling window length, in ticks, for the
	// average-volume reference used to classify segments.
	VolumeHistory int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		VoiceBandLow:       85,
		VoiceBandHigh:      255,
		VADThreshold:       0.4,
		MinSegment:         500 * time.Millisecond,
		EventSpacing:       2000 * time.Millisecond,
		MultiVoiceWindow:   5 * time.Second,
		CalibrationSamples: 50,
		NoiseMargin:        25.0,
		VolumeHistory:      50,
	}
}

// Metrics is one tick's spectral measurement.
type Metrics struct {
	Volume            float64 // RMS over all bins, normalized 0..1
	DominantFrequency float64 // Hz
	VoiceActivity     float64 // voice-band energy / total energy
	BackgroundNoise   float64 // sub-voice-band RMS, byte-bin units
}

// Segment is one closed run of speech ticks.
type Segment struct {
	Start          time.Time
	End            time.Time
	MeanVolume     float64
	MeanActivity   float64
	CandidateVoice bool
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

// Stats is the rolling counters snapshot exposed for telemetry.
type Stats struct {
	BaselineNoise  float64 `json:"baseline_noise"`
	Calibrated     bool    `json:"calibrated"`
	SegmentCount   int     `json:"segment_count"`
	AverageVolume  float64 `json:"average_volume"`
	TicksProcessed int     `json:"ticks_processed"`
}

// openSegment accumulates the speech run currently in progress.
type openSegment struct {
	start       time.Time
	last        time.Time
	volumeSum   float64
	activitySum float64
	ticks       int
}

// Analyzer is the audio anomaly detector. One spectral frame stream
// feeds it; it is not meant for concurrent producers.
type Analyzer struct {
	cfg Config

	mu       sync.Mutex
	volumes  []float64 // rolling window, newest last
	current  *openSegment
	closed   []Segment // recent closed segments, pruned to the overlap window
	lastEmit map[event.Type]time.Time

	baseline   float64
	calibCount int

	segmentCount int
	volumeSum    float64
	ticks        int

	now func() time.Time
}

// NewAnalyzer creates an audio anomaly analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.VoiceBandHigh <= cfg.VoiceBandLow {
		cfg.VoiceBandLow = def.VoiceBandLow
		cfg.VoiceBandHigh = def.VoiceBandHigh
	}
	if cfg.VADThreshold <= 0 {
		cfg.VADThreshold = def.VADThreshold
	}
	if cfg.MinSegment <= 0 {
		cfg.MinSegment = def.MinSegment
	}
	if cfg.EventSpacing <= 0 {
		cfg.EventSpacing = def.EventSpacing
	}
	if cfg.MultiVoiceWindow <= 0 {
		cfg.MultiVoiceWindow = def.MultiVoiceWindow
	}
	if cfg.CalibrationSamples <= 0 {
		cfg.CalibrationSamples = def.CalibrationSamples
	}
	if cfg.NoiseMargin <= 0 {
		cfg.NoiseMargin = def.NoiseMargin
	}
	if cfg.VolumeHistory <= 0 {
		cfg.VolumeHistory = def.VolumeHistory
	}
	return &Analyzer{
		cfg:      cfg,
		lastEmit: make(map[event.Type]time.Time),
		now:      time.Now,
	}
}

// Measure computes one tick's metrics from a spectral frame. An empty
// frame reads as silence.
func (a *Analyzer) Measure(sp audioio.Spectrum) Metrics {
	var m Metrics
	if len(sp.Bins) == 0 {
		return m
	}

	lo, hi := sp.BinRange(a.cfg.VoiceBandLow, a.cfg.VoiceBandHigh)

	var total, voice, sub float64
	subBins := 0
	peak := 0
	for i, b := range sp.Bins {
		e := float64(b) * float64(b)
		total += e
		if i >= lo && i < hi {
			voice += e
		}
		if i < lo {
			sub += e
			subBins++
		}
		if b > sp.Bins[peak] {
			peak = i
		}
	}

	m.Volume = rms(total, len(sp.Bins)) / 255
	m.DominantFrequency = sp.BinFrequency(peak)
	if total > 0 {
		m.VoiceActivity = voice / total
	}
	if subBins > 0 {
		m.BackgroundNoise = rms(sub, subBins)
	}
	return m
}

func rms(energySum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Sqrt(energySum / float64(n))
}

// ProcessTick consumes one spectral frame and returns any events that
// became due on this tick.
func (a *Analyzer) ProcessTick(sp audioio.Spectrum) []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	m := a.Measure(sp)

	a.ticks++
	a.volumeSum += m.Volume
	a.volumes = append(a.volumes, m.Volume)
	if len(a.volumes) > a.cfg.VolumeHistory {
		a.volumes = a.volumes[1:]
	}

	// Baseline calibration: average the first K ticks, then freeze.
	if a.calibCount < a.cfg.CalibrationSamples {
		a.baseline = (a.baseline*float64(a.calibCount) + m.BackgroundNoise) / float64(a.calibCount+1)
		a.calibCount++
	}

	var events []event.Event

	if m.VoiceActivity >= a.cfg.VADThreshold {
		if a.current == nil {
			a.current = &openSegment{start: now}
		}
		a.current.last = now
		a.current.volumeSum += m.Volume
		a.current.activitySum += m.VoiceActivity
		a.current.ticks++
	} else if a.current != nil {
		events = append(events, a.closeSegmentLocked(m, now)...)
	}

	// Noise check only once the baseline is frozen.
	if a.calibCount >= a.cfg.CalibrationSamples &&
		m.BackgroundNoise > a.baseline+a.cfg.NoiseMargin {
		conf := geometry.Clamp((m.BackgroundNoise-a.baseline)/(2*a.cfg.NoiseMargin), 0, 1)
		if e := a.emitLocked(event.TypeExcessiveNoise, conf, a.metadataLocked(m, 0), now); e != nil {
			events = append(events, *e)
		}
	}

	return events
}

// closeSegmentLocked finalizes the in-progress speech run and returns
// the events it produces.
func (a *Analyzer) closeSegmentLocked(m Metrics, now time.Time) []event.Event {
	seg := a.current
	a.current = nil

	duration := now.Sub(seg.start)
	if duration < a.cfg.MinSegment {
		return nil
	}

	meanVolume := seg.volumeSum / float64(seg.ticks)
	closed := Segment{
		Start:        seg.start,
		End:          now,
		MeanVolume:   meanVolume,
		MeanActivity: seg.activitySum / float64(seg.ticks),
		// Louder than the rolling room average reads as the candidate
		// speaking; quieter speech is someone in the background.
		CandidateVoice: meanVolume > a.rollingVolumeLocked(),
	}
	a.closed = append(a.closed, closed)
	a.segmentCount++
	a.pruneSegmentsLocked(now)

	var events []event.Event
	if !closed.CandidateVoice {
		conf := geometry.Clamp(closed.MeanActivity, 0, 1)
		if e := a.emitLocked(event.TypeBackgroundVoice, conf, a.metadataLocked(m, duration), now); e != nil {
			events = append(events, *e)
		}
	}
	if a.hasOverlapLocked() {
		conf := geometry.Clamp(closed.MeanActivity, 0, 1)
		if e := a.emitLocked(event.TypeMultipleVoices, conf, a.metadataLocked(m, duration), now); e != nil {
			events = append(events, *e)
		}
	}
	return events
}

// hasOverlapLocked reports whether the retained window holds both a
// candidate and a non-candidate segment.
func (a *Analyzer) hasOverlapLocked() bool {
	var candidate, other bool
	for _, s := range a.closed {
		if s.CandidateVoice {
			candidate = true
		} else {
			other = true
		}
	}
	return candidate && other
}

func (a *Analyzer) pruneSegmentsLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.MultiVoiceWindow)
	i := 0
	for ; i < len(a.closed); i++ {
		if a.closed[i].End.After(cutoff) {
			break
		}
	}
	if i > 0 {
		a.closed = append(a.closed[:0], a.closed[i:]...)
	}
}

func (a *Analyzer) rollingVolumeLocked() float64 {
	if len(a.volumes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.volumes {
		sum += v
	}
	return sum / float64(len(a.volumes))
}

func (a *Analyzer) metadataLocked(m Metrics, segDuration time.Duration) *event.AudioMetadata {
	return &event.AudioMetadata{
		Audio: event.AudioMetrics{
			Volume:            m.Volume,
			DominantFrequency: m.DominantFrequency,
			VoiceActivity:     m.VoiceActivity,
			BackgroundNoise:   m.BackgroundNoise,
			BaselineNoise:     a.baseline,
		},
		SegmentDuration: segDuration,
	}
}

// emitLocked builds the event if the per-type spacing allows it.
func (a *Analyzer) emitLocked(t event.Type, confidence float64, md *event.AudioMetadata, now time.Time) *event.Event {
	if last, ok := a.lastEmit[t]; ok && now.Sub(last) < a.cfg.EventSpacing {
		return nil
	}
	e, err := event.New(t, confidence, md)
	if err != nil {
		return nil
	}
	if md.SegmentDuration > 0 {
		e = e.WithDuration(md.SegmentDuration)
	}
	a.lastEmit[t] = now
	return &e
}

// Stats returns the rolling counters snapshot.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		BaselineNoise:  a.baseline,
		Calibrated:     a.calibCount >= a.cfg.CalibrationSamples,
		SegmentCount:   a.segmentCount,
		TicksProcessed: a.ticks,
	}
	if a.ticks > 0 {
		s.AverageVolume = a.volumeSum / float64(a.ticks)
	}
	return s
}

// Reset clears all accumulated state, including the frozen baseline, so
// calibration runs again on the next session.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.volumes = nil
	a.current = nil
	a.closed = nil
	a.lastEmit = make(map[event.Type]time.Time)
	a.baseline = 0
	a.calibCount = 0
	a.segmentCount = 0
	a.volumeSum = 0
	a.ticks = 0
}
