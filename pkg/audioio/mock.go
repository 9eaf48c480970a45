package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Tone is one sine component of the mock signal.
type Tone struct {
	Frequency float64 // Hz
	Amplitude float64 // 0..1
}

// MockSource generates synthetic audio: silence by default, or a mix of
// sine tones. Tones can be swapped mid-stream to script a session
// (speech burst, background hum, silence).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	tones    []Tone
	phase    float64

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	dropped     atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithTones sets the initial tone mix.
func WithTones(tones ...Tone) MockSourceOption {
	return func(m *MockSource) { m.tones = tones }
}

// NewMockSource creates a synthetic audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTones replaces the tone mix for subsequent chunks. An empty call
// switches the source to silence.
func (m *MockSource) SetTones(tones ...Tone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tones = tones
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 10)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"tones", len(m.tones),
	)
	return nil
}

// generateLoop owns out: it is the only sender and closes it on exit, so
// Stop never races a send on a closed channel.
func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}, out chan AudioChunk) {
	defer close(out)

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			select {
			case <-stopCh:
				return
			case out <- chunk:
				m.chunksRead.Add(1)
				m.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				m.dropped.Add(1)
			}
		}
	}
}

func (m *MockSource) generateChunk() AudioChunk {
	m.mu.Lock()
	tones := append([]Tone(nil), m.tones...)
	phase := m.phase
	m.mu.Unlock()

	bufferSize := m.cfg.BufferSize()
	samples := make([]int16, bufferSize*m.cfg.Channels)

	if len(tones) > 0 {
		rate := float64(m.cfg.SampleRate)
		for i := 0; i < bufferSize; i++ {
			var v float64
			for _, tone := range tones {
				v += tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*phase/rate)
			}
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			s := int16(v * 32767)
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = s
			}
			phase++
		}
	} else {
		phase += float64(bufferSize)
	}

	m.mu.Lock()
	m.phase = phase
	m.mu.Unlock()

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Stop halts generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	// The stream channel is closed by the generate loop once it winds down.
	close(m.stopCh)

	m.logger.Info("mock audio source stopped")
	return nil
}

// Read returns the next generated chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-m.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel.
func (m *MockSource) Stream() <-chan AudioChunk {
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns source counters.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Dropped:     m.dropped.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)
