package event

import "time"

// Metadata is the tagged union of per-type event payloads. Each event type
// pairs with exactly one variant; New enforces the pairing.
type Metadata interface {
	// Kind returns a short tag identifying the variant.
	Kind() string
}

// GazeMetadata accompanies focus-loss and focus-restored events.
type GazeMetadata struct {
	GazeX             float64 `json:"gaze_x"`
	GazeY             float64 `json:"gaze_y"`
	IsLookingAtScreen bool    `json:"is_looking_at_screen"`
	FaceCount         int     `json:"face_count"`
}

func (*GazeMetadata) Kind() string { return "gaze" }

// PresenceMetadata accompanies absence, face-visible and multiple-faces events.
type PresenceMetadata struct {
	FaceCount int `json:"face_count"`
	// StableFrames is how many consecutive debounced frames held the
	// triggering value when the event fired.
	StableFrames int `json:"stable_frames"`
}

func (*PresenceMetadata) Kind() string { return "presence" }

// EyeMetrics is the per-frame eye state snapshot.
type EyeMetrics struct {
	LeftEAR         float64       `json:"left_ear"`
	RightEAR        float64       `json:"right_ear"`
	AverageEAR      float64       `json:"average_ear"`
	IsEyesClosed    bool          `json:"is_eyes_closed"`
	ClosureDuration time.Duration `json:"closure_duration,omitempty"`
}

// DrowsinessMetrics summarizes the trailing blink window.
type DrowsinessMetrics struct {
	BlinkRate            float64       `json:"blink_rate"` // blinks per minute
	AverageBlinkDuration time.Duration `json:"average_blink_duration"`
	LongBlinkCount       int           `json:"long_blink_count"`
	DrowsinessScore      float64       `json:"drowsiness_score"`
	IsAwake              bool          `json:"is_awake"`
}

// DrowsinessMetadata accompanies drowsiness, eye-closure and
// excessive-blinking events. It always carries both metric sets.
type DrowsinessMetadata struct {
	Eye        EyeMetrics        `json:"eye_metrics"`
	Drowsiness DrowsinessMetrics `json:"drowsiness_metrics"`
}

func (*DrowsinessMetadata) Kind() string { return "drowsiness" }

// AudioMetrics is the per-tick audio snapshot.
type AudioMetrics struct {
	Volume            float64 `json:"volume"`
	DominantFrequency float64 `json:"dominant_frequency"`
	VoiceActivity     float64 `json:"voice_activity"`
	BackgroundNoise   float64 `json:"background_noise"`
	BaselineNoise     float64 `json:"baseline_noise"`
}

// AudioMetadata accompanies background-voice, multiple-voices and
// excessive-noise events.
type AudioMetadata struct {
	Audio AudioMetrics `json:"audio_metrics"`
	// SegmentDuration is set for segment-derived events.
	SegmentDuration time.Duration `json:"segment_duration,omitempty"`
}

func (*AudioMetadata) Kind() string { return "audio" }

// ObjectMetadata accompanies unauthorized-item events.
type ObjectMetadata struct {
	ClassName string  `json:"class_name"`
	BoxX      float64 `json:"box_x"`
	BoxY      float64 `json:"box_y"`
	BoxW      float64 `json:"box_w"`
	BoxH      float64 `json:"box_h"`
}

func (*ObjectMetadata) Kind() string { return "object" }

// Severity grades a manual flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ManualMetadata accompanies manual_flag events injected by an interviewer.
type ManualMetadata struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	FlaggedBy   string   `json:"flagged_by,omitempty"`
}

func (*ManualMetadata) Kind() string { return "manual" }
