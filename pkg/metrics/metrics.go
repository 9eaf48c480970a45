// Package metrics provides Prometheus metrics for the invigilation
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the engine's Prometheus collectors.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	framesProcessed prometheus.Counter
	audioTicks      prometheus.Counter
	facesInFrame    prometheus.Gauge

	eventsEmitted   *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	manualFlags     prometheus.Counter

	hubClients prometheus.Gauge
	hubDropped prometheus.Counter

	collectorReconnects prometheus.Counter
	collectorDropped    prometheus.Counter
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the Prometheus registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) { m.registry = r }
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

// Registry is the engine's own registry, kept separate from the default
// Go collectors.
var Registry = prometheus.NewRegistry()

var globalManager = NewManager(WithRegistry(Registry))

// Default returns the global manager.
func Default() *Manager { return globalManager }

// NewManager creates a metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "invigil",
		subsystem: "engine",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)
	m.framesProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frames_processed_total",
		Help: "Video frames run through the detection pipeline.",
	})
	m.audioTicks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "audio_ticks_total",
		Help: "Spectral frames run through the audio analyzer.",
	})
	m.facesInFrame = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "faces_in_frame",
		Help: "Debounced face count of the most recent frame.",
	})
	m.eventsEmitted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_emitted_total",
		Help: "Detection events emitted, by type.",
	}, []string{"type"})
	m.eventsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_duplicate_total",
		Help: "Events flagged as duplicates by the aggregation layer.",
	})
	m.manualFlags = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "manual_flags_total",
		Help: "Manual flags injected by proctors.",
	})
	m.hubClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "hub_clients",
		Help: "Dashboard websocket clients currently connected.",
	})
	m.hubDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "hub_dropped_total",
		Help: "Broadcast messages dropped because a client lagged.",
	})
	m.collectorReconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "collector_reconnects_total",
		Help: "Reconnect attempts to the event collector.",
	})
	m.collectorDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "collector_dropped_total",
		Help: "Events dropped from the collector send buffer.",
	})
	return m
}

// FrameProcessed counts one video frame and records its face count.
func (m *Manager) FrameProcessed(faceCount int) {
	m.framesProcessed.Inc()
	m.facesInFrame.Set(float64(faceCount))
}

// AudioTick counts one spectral frame.
func (m *Manager) AudioTick() { m.audioTicks.Inc() }

// EventEmitted counts one emitted event.
func (m *Manager) EventEmitted(eventType string, duplicate bool) {
	m.eventsEmitted.WithLabelValues(eventType).Inc()
	if duplicate {
		m.eventsDuplicate.Inc()
	}
}

// ManualFlag counts one injected manual flag.
func (m *Manager) ManualFlag() { m.manualFlags.Inc() }

// HubClientConnected tracks a dashboard client attach/detach.
func (m *Manager) HubClientConnected(delta int) {
	m.hubClients.Add(float64(delta))
}

// HubDropped counts one dropped broadcast.
func (m *Manager) HubDropped() { m.hubDropped.Inc() }

// CollectorReconnect counts one reconnect attempt.
func (m *Manager) CollectorReconnect() { m.collectorReconnects.Inc() }

// CollectorDropped counts one event dropped under backpressure.
func (m *Manager) CollectorDropped() { m.collectorDropped.Inc() }
