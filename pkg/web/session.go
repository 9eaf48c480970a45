package web

import (
	"context"
	"io"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/invigilab/go-invigil/internal/log"
	"github.com/invigilab/go-invigil/pkg/audioio"
	"github.com/invigilab/go-invigil/pkg/protocol"
)

// packetQueue buffers Opus packets between the session socket read loop
// and the decoder. When the decoder falls behind, the oldest packet is
// dropped; stale audio is worthless for live analysis.
type packetQueue struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newPacketQueue(size int) *packetQueue {
	return &packetQueue{
		ch:   make(chan []byte, size),
		done: make(chan struct{}),
	}
}

func (q *packetQueue) Push(p []byte) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- p:
	default:
		select {
		case <-q.ch:
		default:
		}
		select {
		case q.ch <- p:
		default:
		}
	}
}

// ReadPacket implements audioio.PacketReader.
func (q *packetQueue) ReadPacket() ([]byte, error) {
	select {
	case p := <-q.ch:
		return p, nil
	case <-q.done:
		return nil, io.EOF
	}
}

func (q *packetQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// session tracks the state of one connected candidate feed.
type session struct {
	srv    *Server
	conn   *websocket.Conn
	id     string
	opened bool

	// Audio pipeline, built on hello and torn down on close
	queue  *packetQueue
	source *audioio.OpusSource
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// sessionHandler returns the fiber handler for the candidate feed socket.
func sessionHandler(s *Server) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sess := &session{srv: s, conn: c}
		defer sess.teardown()
		sess.readLoop()
	})
}

// readLoop processes messages until the client disconnects or ends the
// session. Only this goroutine writes to the connection.
func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Debug("unparseable session message", "error", err)
			s.reply(protocol.NewErrorMessage("", "unparseable message"))
			continue
		}

		switch msg.Type {
		case protocol.TypeHello:
			s.handleHello(msg)

		case protocol.TypeFrame:
			s.handleFrame(msg)

		case protocol.TypeAudio:
			s.handleAudio(msg)

		case protocol.TypeStop:
			s.reply(protocol.NewAckMessage(protocol.TypeStop, s.id))
			return

		case protocol.TypePing:
			s.reply(protocol.NewPongMessage(msg.Timestamp))

		default:
			s.reply(protocol.NewErrorMessage(msg.Type, "unexpected message type"))
		}
	}
}

func (s *session) handleHello(msg *protocol.Message) {
	if s.opened {
		s.reply(protocol.NewErrorMessage(protocol.TypeHello, "session already open"))
		return
	}

	var hello protocol.HelloData
	if err := msg.ParseData(&hello); err != nil {
		s.reply(protocol.NewErrorMessage(protocol.TypeHello, "bad hello payload"))
		return
	}
	if hello.SessionID == "" {
		hello.SessionID = uuid.NewString()
	}

	if err := s.srv.mon.Initialize(); err != nil {
		log.Error("monitor initialization failed", "error", err)
		s.reply(protocol.NewErrorMessage(protocol.TypeHello, "engine unavailable"))
		return
	}
	if err := s.srv.mon.Start(hello.SessionID, hello.CandidateID); err != nil {
		s.reply(protocol.NewErrorMessage(protocol.TypeHello, err.Error()))
		return
	}

	if err := s.startAudio(); err != nil {
		log.Error("audio pipeline failed to start", "error", err)
		s.srv.mon.Stop()
		s.reply(protocol.NewErrorMessage(protocol.TypeHello, "audio pipeline unavailable"))
		return
	}

	s.id = hello.SessionID
	s.opened = true
	log.Info("candidate session opened",
		"session_id", hello.SessionID, "candidate_id", hello.CandidateID)
	s.reply(protocol.NewAckMessage(protocol.TypeHello, hello.SessionID))
}

func (s *session) handleFrame(msg *protocol.Message) {
	if !s.opened || s.srv.analyze == nil {
		return
	}

	var frame protocol.FrameData
	if err := msg.ParseData(&frame); err != nil {
		s.reply(protocol.NewErrorMessage(protocol.TypeFrame, "bad frame payload"))
		return
	}

	result, objects, err := s.srv.analyze(frame)
	if err != nil {
		// One undecodable frame is not worth failing the session over.
		log.Debug("frame analysis failed", "session_id", s.id, "error", err)
		return
	}

	s.srv.mon.ProcessVideoFrame(result)
	if len(objects) > 0 {
		s.srv.mon.ProcessObjects(objects)
	}
}

func (s *session) handleAudio(msg *protocol.Message) {
	if !s.opened {
		return
	}

	var audio protocol.AudioData
	if err := msg.ParseData(&audio); err != nil {
		s.reply(protocol.NewErrorMessage(protocol.TypeAudio, "bad audio payload"))
		return
	}
	if audio.Format != "opus" {
		s.reply(protocol.NewErrorMessage(protocol.TypeAudio, "unsupported audio format"))
		return
	}

	packet, err := audio.DecodePayload()
	if err != nil {
		s.reply(protocol.NewErrorMessage(protocol.TypeAudio, "bad audio payload"))
		return
	}
	s.queue.Push(packet)
}

// startAudio builds the per-session decode pipeline: socket packets flow
// through the queue into the Opus source, and spectral frames from the
// reader feed the monitor.
func (s *session) startAudio() error {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendOpus

	s.queue = newPacketQueue(64)
	source, err := audioio.NewOpusSource(cfg, s.queue, log.L())
	if err != nil {
		s.queue.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := source.Start(ctx); err != nil {
		cancel()
		s.queue.Close()
		return err
	}
	s.source = source
	s.cancel = cancel

	reader := audioio.NewSpectralReader(source)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			sp, err := reader.Next(ctx)
			if err != nil {
				return
			}
			s.srv.mon.ProcessAudio(sp)
		}
	}()
	return nil
}

func (s *session) teardown() {
	if s.opened {
		s.srv.mon.Stop()
		log.Info("candidate session closed", "session_id", s.id)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.queue != nil {
		s.queue.Close()
	}
	if s.source != nil {
		s.source.Close()
	}
	s.wg.Wait()
}

func (s *session) reply(msg *protocol.Message, err error) {
	if err != nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	if werr := s.conn.WriteMessage(websocket.TextMessage, data); werr != nil {
		log.Debug("session reply failed", "session_id", s.id, "error", werr)
	}
}
