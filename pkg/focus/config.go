package focus

import "time"

// Config holds all tunable parameters for the focus/presence state machine.
// Frame thresholds assume roughly 15-30 processed frames per second.
type Config struct {
	// LookingAwayThreshold is how long a present candidate may look away
	// before a focus-loss event fires.
	LookingAwayThreshold time.Duration

	// AbsenceFrames is the number of consecutive debounced zero-face
	// frames before an absence event fires.
	AbsenceFrames int

	// MultipleFaceFrames is the number of consecutive debounced
	// multi-face frames before a multiple-faces event fires.
	MultipleFaceFrames int

	// RecoveryFrames is the hysteresis window: consecutive single-face
	// frames required after a triggered episode before face-visible fires.
	RecoveryFrames int

	// Cooldown is the minimum spacing between presence-cluster events
	// (absence, face-visible, multiple-faces) of the same or paired type.
	Cooldown time.Duration

	// WarmupFrames suppresses all alerting for the first N frames while
	// the camera and model stabilize. The debouncer is still fed.
	WarmupFrames int

	// FrameBuffer is the debounce window capacity for the face count.
	FrameBuffer int

	// AbsenceConfidence is the confidence stamped on absence events.
	AbsenceConfidence float64
}

// DefaultConfig returns the recommended thresholds.
func DefaultConfig() Config {
	return Config{
		LookingAwayThreshold: 5000 * time.Millisecond,
		AbsenceFrames:        15,
		MultipleFaceFrames:   10,
		RecoveryFrames:       15,
		Cooldown:             4000 * time.Millisecond,
		WarmupFrames:         30,
		FrameBuffer:          7,
		AbsenceConfidence:    0.95,
	}
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	if c.LookingAwayThreshold <= 0 {
		return errInvalid("LookingAwayThreshold must be positive")
	}
	if c.AbsenceFrames < 1 {
		return errInvalid("AbsenceFrames must be at least 1")
	}
	if c.MultipleFaceFrames < 1 {
		return errInvalid("MultipleFaceFrames must be at least 1")
	}
	if c.RecoveryFrames < 1 {
		return errInvalid("RecoveryFrames must be at least 1")
	}
	if c.Cooldown < 0 {
		return errInvalid("Cooldown must not be negative")
	}
	if c.WarmupFrames < 0 {
		return errInvalid("WarmupFrames must not be negative")
	}
	if c.AbsenceConfidence < 0 || c.AbsenceConfidence > 1 {
		return errInvalid("AbsenceConfidence must be within [0,1]")
	}
	return nil
}

type errInvalid string

func (e errInvalid) Error() string { return "focus config: " + string(e) }
