package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if INVIGIL_CONFIG is set
//  3. env (prefix INVIGIL_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("INVIGIL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Environment variables: INVIGIL_ADDR, INVIGIL_GAZE_THRESHOLD, ...
	// Keys map to the flat koanf tags on Config, underscores preserved.
	envProvider := env.Provider("INVIGIL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "invigil_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.GazeThreshold <= 0 || c.GazeThreshold >= 1 {
		return fmt.Errorf("gaze_threshold must be in (0, 1), got %v", c.GazeThreshold)
	}
	if c.LookingAwayMS <= 0 {
		return fmt.Errorf("looking_away_ms must be positive, got %d", c.LookingAwayMS)
	}
	if c.WarmupFrames < 0 {
		return fmt.Errorf("warmup_frames must not be negative, got %d", c.WarmupFrames)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("audio_sample_rate must be positive, got %d", c.AudioSampleRate)
	}
	return nil
}
