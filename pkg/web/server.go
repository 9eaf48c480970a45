// Package web serves the invigilator dashboard and the candidate session
// feed. It exposes a REST API over the monitoring engine, a websocket hub
// that streams live detection events to dashboard clients, and an ingest
// websocket that receives video frames and Opus audio from the candidate's
// browser.
package web

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/invigilab/go-invigil/internal/log"
	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/hub"
	"github.com/invigilab/go-invigil/pkg/metrics"
	"github.com/invigilab/go-invigil/pkg/monitor"
	"github.com/invigilab/go-invigil/pkg/protocol"
)

// AnalyzeFrame turns a pushed video frame into face and object detections.
// The engine wires this to its gocv detection pipeline; tests substitute a
// scripted function.
type AnalyzeFrame func(frame protocol.FrameData) (detect.FrameResult, []detect.Object, error)

// Config holds the dashboard server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// StaticDir optionally serves dashboard assets from disk.
	StaticDir string

	// RecentEvents caps the /api/events response.
	RecentEvents int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		RecentEvents: 100,
	}
}

// Server is the dashboard and session-feed server.
type Server struct {
	app     *fiber.App
	cfg     Config
	mon     *monitor.Monitor
	analyze AnalyzeFrame

	// Hub for live event broadcast to dashboard clients
	events *hub.Hub
}

// NewServer creates the dashboard server over a monitor.
func NewServer(cfg Config, mon *monitor.Monitor, analyze AnalyzeFrame) *Server {
	if cfg.RecentEvents <= 0 {
		cfg.RecentEvents = DefaultConfig().RecentEvents
	}

	s := &Server{
		cfg:     cfg,
		mon:     mon,
		analyze: analyze,
		events:  hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Invigil Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/events", s.handleEvents)
	api.Get("/summary", s.handleSummary)
	api.Post("/flag", s.handleFlag)

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/session", sessionHandler(s))

	s.app = app
	return s
}

// Start runs the hub and listens on the configured address. It blocks
// until the server shuts down.
func (s *Server) Start() error {
	go s.events.Run()
	log.Info("dashboard listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server stopped", "error", err)
		}
	}()
}

// Publish broadcasts an emitted event to all connected dashboard clients.
// Wire it into monitor.OnEvent.
func (s *Server) Publish(e event.Event) {
	if err := s.events.BroadcastJSON(e); err != nil {
		log.Warn("failed to encode event for dashboard", "error", err)
	}
}

// EventHub returns the live-event hub.
func (s *Server) EventHub() *hub.Hub {
	return s.events
}

// Shutdown gracefully stops the server and disconnects dashboard clients.
func (s *Server) Shutdown() error {
	s.events.Stop()
	return s.app.Shutdown()
}

// handleEventsWS attaches a dashboard client to the live event stream.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewClient(s.events, c).Run()
}
