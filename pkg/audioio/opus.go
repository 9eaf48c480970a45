package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is the largest decodable Opus frame: 120ms at 48kHz mono.
const maxOpusFrame = 5760

// PacketReader hands out encoded Opus packets, one per call. The session
// socket implements this over its binary audio messages.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// OpusSource decodes a relayed Opus stream into PCM chunks. Decode
// errors on single packets are skipped; only the reader's error ends the
// stream.
type OpusSource struct {
	cfg     Config
	logger  *slog.Logger
	reader  PacketReader
	decoder *opus.Decoder

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	dropped     atomic.Int64
}

// NewOpusSource creates a source decoding 48kHz mono Opus from reader.
func NewOpusSource(cfg Config, reader PacketReader, logger *slog.Logger) (*OpusSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	decoder, err := opus.NewDecoder(DefaultSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	cfg.SampleRate = DefaultSampleRate
	cfg.Channels = 1
	return &OpusSource{
		cfg:      cfg,
		logger:   logger,
		reader:   reader,
		decoder:  decoder,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the decode loop.
func (s *OpusSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)

	go s.decodeLoop(ctx, s.stopCh, s.streamCh)

	s.logger.Info("opus audio source started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// decodeLoop owns out: it is the only sender and closes it on exit, so
// Stop never races a send on a closed channel.
func (s *OpusSource) decodeLoop(ctx context.Context, stopCh chan struct{}, out chan AudioChunk) {
	defer close(out)

	frameBuf := make([]int16, maxOpusFrame)
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stopCh:
			return
		default:
		}

		packet, err := s.reader.ReadPacket()
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("opus packet read failed", "error", err)
			}
			s.Stop()
			return
		}

		n, err := s.decoder.Decode(packet, frameBuf)
		if err != nil {
			// A corrupt packet costs one frame of audio, not the stream.
			s.logger.Debug("opus decode failed, skipping packet", "error", err)
			continue
		}

		chunk := AudioChunk{
			Samples:    append([]int16(nil), frameBuf[:n]...),
			SampleRate: DefaultSampleRate,
			Channels:   1,
		}
		select {
		case <-stopCh:
			return
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(n))
		default:
			s.dropped.Add(1)
		}
	}
}

// Stop halts decoding. The stream channel is closed by the decode loop
// once it winds down.
func (s *OpusSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	s.logger.Info("opus audio source stopped")
	return nil
}

// Read returns the next decoded chunk.
func (s *OpusSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the decoded chunk channel.
func (s *OpusSource) Stream() <-chan AudioChunk {
	return s.streamCh
}

// Config returns the audio configuration.
func (s *OpusSource) Config() Config {
	return s.cfg
}

// Name returns "opus".
func (s *OpusSource) Name() string {
	return "opus"
}

// Close releases the decoder and the packet reader when it is closable.
func (s *OpusSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	if c, ok := s.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns ingress counters.
func (s *OpusSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Dropped:     s.dropped.Load(),
		Running:     running,
		Backend:     "opus",
	}
}

var _ SourceWithStats = (*OpusSource)(nil)
