// Package config holds process configuration for the invigilation engine.
// Tunables are flat keys so they can be set from YAML or INVIGIL_* env
// vars; the typed per-package configs are derived from them.
package config

import (
	"time"

	"github.com/invigilab/go-invigil/pkg/audioio"
	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/monitor"
	"github.com/invigilab/go-invigil/pkg/report"
	"github.com/invigilab/go-invigil/pkg/web"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile enables rotating file output when set.
	LogFile string `koanf:"log_file"`

	// Addr configures the dashboard listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StaticDir serves dashboard assets from disk when set.
	StaticDir string `koanf:"static_dir"`

	// RecentEvents caps the /api/events response.
	RecentEvents int `koanf:"recent_events"`

	// CollectorURL is the websocket endpoint events are shipped to.
	// Reporting is disabled when empty.
	CollectorURL string `koanf:"collector_url"`

	// CollectorBuffer bounds the outbound event queue.
	CollectorBuffer int `koanf:"collector_buffer"`

	// FaceModelPath points at the YuNet ONNX model.
	FaceModelPath string `koanf:"face_model_path"`

	// ObjectModelPath points at the YOLO ONNX model.
	ObjectModelPath string `koanf:"object_model_path"`

	// GazeThreshold is the offset magnitude below which the candidate
	// counts as looking at the screen.
	GazeThreshold float64 `koanf:"gaze_threshold"`

	// LookingAwayMS is how long a present candidate may look away
	// before a focus-loss event fires.
	LookingAwayMS int `koanf:"looking_away_ms"`

	// WarmupFrames suppresses events while the candidate settles in.
	WarmupFrames int `koanf:"warmup_frames"`

	// AudioSampleRate is the session audio rate in Hz.
	AudioSampleRate int `koanf:"audio_sample_rate"`
}

// New returns a Config with the engine defaults.
func New() *Config {
	mon := monitor.DefaultConfig()
	rep := report.DefaultConfig()
	aud := audioio.DefaultConfig()
	w := web.DefaultConfig()

	return &Config{
		LogLevel:        "info",
		Addr:            w.Addr,
		RecentEvents:    w.RecentEvents,
		CollectorBuffer: rep.BufferSize,
		FaceModelPath:   detect.DefaultConfig().ModelPath,
		ObjectModelPath: detect.DefaultYOLOConfig().ModelPath,
		GazeThreshold:   mon.Gaze.Threshold,
		LookingAwayMS:   int(mon.Focus.LookingAwayThreshold / time.Millisecond),
		WarmupFrames:    mon.Focus.WarmupFrames,
		AudioSampleRate: aud.SampleRate,
	}
}

// MonitorConfig derives the engine configuration.
func (c *Config) MonitorConfig() monitor.Config {
	mc := monitor.DefaultConfig()
	mc.Gaze.Threshold = c.GazeThreshold
	mc.Focus.LookingAwayThreshold = time.Duration(c.LookingAwayMS) * time.Millisecond
	mc.Focus.WarmupFrames = c.WarmupFrames
	return mc
}

// WebConfig derives the dashboard server configuration.
func (c *Config) WebConfig() web.Config {
	wc := web.DefaultConfig()
	wc.Addr = c.Addr
	wc.StaticDir = c.StaticDir
	wc.RecentEvents = c.RecentEvents
	return wc
}

// ReportConfig derives the collector client configuration.
func (c *Config) ReportConfig() report.Config {
	rc := report.DefaultConfig()
	rc.URL = c.CollectorURL
	if c.CollectorBuffer > 0 {
		rc.BufferSize = c.CollectorBuffer
	}
	return rc
}

// AudioConfig derives the audio ingress configuration.
func (c *Config) AudioConfig() audioio.Config {
	ac := audioio.DefaultConfig()
	if c.AudioSampleRate > 0 {
		ac.SampleRate = c.AudioSampleRate
	}
	return ac
}

// FaceDetectConfig derives the YuNet backend configuration.
func (c *Config) FaceDetectConfig() detect.Config {
	dc := detect.DefaultConfig()
	if c.FaceModelPath != "" {
		dc.ModelPath = c.FaceModelPath
	}
	return dc
}

// ObjectDetectConfig derives the YOLO backend configuration.
func (c *Config) ObjectDetectConfig() detect.YOLOConfig {
	dc := detect.DefaultYOLOConfig()
	if c.ObjectModelPath != "" {
		dc.ModelPath = c.ObjectModelPath
	}
	return dc
}
