// Package audioio is the audio ingress boundary: PCM chunk and spectrum
// types, the sources that produce them, and the DFT binning that turns
// raw samples into the byte-valued spectral frames the anomaly analyzer
// consumes.
//
// Audio reaches the engine either as Opus packets relayed from the
// candidate's browser session or from a mock generator in tests; there
// is no local device capture.
package audioio

import (
	"fmt"
	"time"
)

// Backend selects the audio source implementation.
type Backend string

const (
	// BackendAuto picks the default backend (mock until a session
	// attaches an Opus stream).
	BackendAuto Backend = "auto"
	// BackendOpus decodes Opus packets relayed over the session socket.
	BackendOpus Backend = "opus"
	// BackendMock generates synthetic audio for tests and dry runs.
	BackendMock Backend = "mock"
)

const (
	// DefaultSampleRate matches the Opus decode rate (48kHz mono).
	DefaultSampleRate = 48000

	// DefaultWindowSize is the DFT window in samples. At 48kHz this is
	// ~21ms per frame with a bin width of ~46.9Hz.
	DefaultWindowSize = 1024

	// SpectrumBins is the number of magnitude bins per frame, covering
	// DC up to the Nyquist frequency.
	SpectrumBins = DefaultWindowSize / 2
)

// Config holds audio ingress configuration.
type Config struct {
	// Backend selects the source implementation.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture rate in Hz. Sources at other rates are
	// resampled before spectral analysis.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the channel count. Stereo is folded to mono before
	// analysis.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of one capture buffer.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// WindowSize is the DFT window in samples.
	WindowSize int `yaml:"window_size" json:"window_size"`
}

// DefaultConfig returns a Config with the engine defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     DefaultSampleRate,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		WindowSize:     DefaultWindowSize,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.WindowSize <= 0 || c.WindowSize%2 != 0 {
		return fmt.Errorf("window_size must be positive and even, got %d", c.WindowSize)
	}
	return nil
}

// BufferSize returns the number of samples per capture buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
