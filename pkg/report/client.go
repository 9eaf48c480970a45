// Package report ships emitted detection events to the collector
// service over a websocket, with automatic reconnect and a bounded
// drop-oldest send buffer so a dead collector can never stall the
// detection path.
package report

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/invigilab/go-invigil/internal/log"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/metrics"
)

// Envelope is the wire frame sent to the collector.
type Envelope struct {
	Type  string       `json:"type"`
	Event *event.Event `json:"event,omitempty"`
	Sent  time.Time    `json:"sent"`
}

const (
	envelopeHello = "hello"
	envelopeEvent = "detection-event"
)

// Config holds the collector client settings.
type Config struct {
	// URL is the collector websocket endpoint.
	URL string `yaml:"url" json:"url"`

	// BufferSize bounds the send queue; the oldest event is dropped
	// when it overflows.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// PingInterval is the keepalive ping spacing.
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`

	// ReconnectMin/ReconnectMax bound the exponential backoff between
	// reconnect attempts.
	ReconnectMin time.Duration `yaml:"reconnect_min" json:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max" json:"reconnect_max"`
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectMin:     time.Second,
		ReconnectMax:     30 * time.Second,
	}
}

// Client is the collector reporting client.
type Client struct {
	cfg     Config
	metrics *metrics.Manager

	sendCh    chan event.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient creates a collector client. Zero config fields fall back to
// defaults.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = def.ReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = def.ReconnectMax
	}
	return &Client{
		cfg:     cfg,
		metrics: metrics.Default(),
		sendCh:  make(chan event.Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

// Start launches the connection loop. It returns immediately; dialing
// and all retries happen in the background until ctx ends or Close is
// called.
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Report enqueues an event for delivery. When the buffer is full the
// oldest queued event is dropped to make room; the detection path never
// blocks here.
func (c *Client) Report(e event.Event) {
	select {
	case c.sendCh <- e:
		return
	default:
	}
	select {
	case <-c.sendCh:
		c.metrics.CollectorDropped()
	default:
	}
	select {
	case c.sendCh <- e:
	default:
		c.metrics.CollectorDropped()
	}
}

// Close stops the client. Queued events that were not yet written are
// discarded.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.cfg.ReconnectMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn("collector dial failed",
				"url", c.cfg.URL,
				"retry_in", backoff,
				"error", err,
			)
			c.metrics.CollectorReconnect()
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		backoff = c.cfg.ReconnectMin
		log.Info("collector connected", "url", c.cfg.URL)
		c.serve(ctx, conn)
		conn.Close()
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	if err := c.write(conn, Envelope{Type: envelopeHello, Sent: time.Now()}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// serve pumps queued events over one live connection until it breaks.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	// Reader goroutine: the collector sends nothing we act on, but
	// reading is what surfaces closure and keeps pong frames flowing.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case err := <-readErr:
			log.Warn("collector connection lost", "error", err)
			return
		case <-ping.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case e := <-c.sendCh:
			if err := c.write(conn, Envelope{Type: envelopeEvent, Event: &e, Sent: time.Now()}); err != nil {
				log.Warn("collector write failed, requeueing", "error", err)
				c.Report(e)
				return
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
