package audioio

import (
	"context"
	"io"
)

// AudioChunk is one block of PCM16 audio.
type AudioChunk struct {
	// Samples contains PCM16 samples, interleaved when stereo.
	Samples []int16

	// SampleRate is the rate this chunk was captured at.
	SampleRate int

	// Channels is the channel count of this chunk.
	Channels int
}

// Bytes returns the chunk as little-endian PCM16 bytes.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from little-endian PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns this chunk's play time in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source delivers the candidate's audio stream as PCM chunks.
type Source interface {
	// Start begins delivery. After Start, chunks are available via Read
	// or Stream.
	Start(ctx context.Context) error

	// Stop halts delivery. Safe to call multiple times.
	Stop() error

	// Read returns the next chunk, blocking until one is available.
	// Returns io.EOF when the source is stopped or exhausted.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns the chunk channel. It is closed when the source
	// stops.
	Stream() <-chan AudioChunk

	// Config returns the source's audio configuration.
	Config() Config

	// Name returns the backend name ("opus", "mock").
	Name() string

	// Close releases all resources. A closed source cannot restart.
	io.Closer
}

// SourceStats are rolling ingress counters for telemetry.
type SourceStats struct {
	// ChunksRead is the total number of chunks delivered.
	ChunksRead int64 `json:"chunks_read"`

	// SamplesRead is the total number of samples delivered.
	SamplesRead int64 `json:"samples_read"`

	// Dropped counts chunks discarded because the consumer lagged.
	Dropped int64 `json:"dropped"`

	// Running reports whether the source is delivering.
	Running bool `json:"running"`

	// Backend is the source backend name.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with counters.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
