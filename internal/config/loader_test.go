package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/invigilab/go-invigil/internal/config"
)

func clearConfigEnvVars() {
	for _, key := range []string{
		"INVIGIL_CONFIG",
		"INVIGIL_ADDR",
		"INVIGIL_LOG_LEVEL",
		"INVIGIL_COLLECTOR_URL",
		"INVIGIL_GAZE_THRESHOLD",
		"INVIGIL_LOOKING_AWAY_MS",
		"INVIGIL_WARMUP_FRAMES",
		"INVIGIL_AUDIO_SAMPLE_RATE",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.GazeThreshold, convey.ShouldEqual, 0.35)
				convey.So(cfg.LookingAwayMS, convey.ShouldEqual, 5000)
				convey.So(cfg.WarmupFrames, convey.ShouldEqual, 30)
				convey.So(cfg.AudioSampleRate, convey.ShouldEqual, 48000)
				convey.So(cfg.CollectorURL, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars()
			_ = os.Setenv("INVIGIL_ADDR", ":9090")
			_ = os.Setenv("INVIGIL_LOG_LEVEL", "debug")
			_ = os.Setenv("INVIGIL_GAZE_THRESHOLD", "0.4")
			_ = os.Setenv("INVIGIL_LOOKING_AWAY_MS", "3000")
			_ = os.Setenv("INVIGIL_COLLECTOR_URL", "ws://collector:7000/ingest")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.GazeThreshold, convey.ShouldEqual, 0.4)
				convey.So(cfg.LookingAwayMS, convey.ShouldEqual, 3000)
				convey.So(cfg.CollectorURL, convey.ShouldEqual, "ws://collector:7000/ingest")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars()

			dir := t.TempDir()
			path := filepath.Join(dir, "invigil.yaml")
			yaml := "addr: \":7070\"\nlog_level: warn\nwarmup_frames: 10\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("INVIGIL_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
				convey.So(cfg.WarmupFrames, convey.ShouldEqual, 10)
			})

			convey.Convey("And env vars override the file", func() {
				_ = os.Setenv("INVIGIL_ADDR", ":6060")
				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the config is invalid", func() {
			clearConfigEnvVars()

			convey.Convey("A bad log level is rejected", func() {
				_ = os.Setenv("INVIGIL_LOG_LEVEL", "verbose")
				defer clearConfigEnvVars()
				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
			})

			convey.Convey("A gaze threshold outside (0, 1) is rejected", func() {
				_ = os.Setenv("INVIGIL_GAZE_THRESHOLD", "1.5")
				defer clearConfigEnvVars()
				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestDerivedConfigs(t *testing.T) {
	convey.Convey("Given a loaded config", t, func() {
		clearConfigEnvVars()
		cfg, err := config.Load()
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("MonitorConfig carries the engine tunables", func() {
			mc := cfg.MonitorConfig()
			convey.So(mc.Gaze.Threshold, convey.ShouldEqual, cfg.GazeThreshold)
			convey.So(mc.Focus.LookingAwayThreshold, convey.ShouldEqual,
				time.Duration(cfg.LookingAwayMS)*time.Millisecond)
			convey.So(mc.Focus.WarmupFrames, convey.ShouldEqual, cfg.WarmupFrames)
		})

		convey.Convey("WebConfig carries the server tunables", func() {
			wc := cfg.WebConfig()
			convey.So(wc.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(wc.RecentEvents, convey.ShouldEqual, cfg.RecentEvents)
		})

		convey.Convey("ReportConfig keeps its defaults beyond the URL", func() {
			cfg.CollectorURL = "ws://collector:7000/ingest"
			rc := cfg.ReportConfig()
			convey.So(rc.URL, convey.ShouldEqual, "ws://collector:7000/ingest")
			convey.So(rc.BufferSize, convey.ShouldBeGreaterThan, 0)
		})
	})
}
