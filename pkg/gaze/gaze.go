// Package gaze converts raw face landmarks into a gaze vector and a
// per-frame focus classification. Both reducers are pure; the stateful
// side effects (timers, event emission) live in the focus state machine
// that calls them.
package gaze

import (
	"math"

	"github.com/invigilab/go-invigil/pkg/geometry"
)

// Vector is the gaze estimate derived from one frame's landmarks.
// It is not persisted beyond immediate use.
type Vector struct {
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	IsLookingAtScreen bool    `json:"is_looking_at_screen"`
	Confidence        float64 `json:"confidence"`
}

// Status is the aggregate focus snapshot for one frame. The focus state
// machine owns the "previous status" copy and is the only mutator.
type Status struct {
	IsFocused  bool    `json:"is_focused"`
	IsPresent  bool    `json:"is_present"`
	FaceCount  int     `json:"face_count"`
	Gaze       Vector  `json:"gaze"`
	Confidence float64 `json:"confidence"`
}

// Config holds the gaze classification parameters.
type Config struct {
	// Threshold is the offset magnitude below which the candidate counts
	// as looking at the screen.
	Threshold float64

	// Scale is the empirical factor applied to the nose offset before
	// thresholding.
	Scale float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.35,
		Scale:     3.0,
	}
}

// Tracker computes gaze vectors from landmark sets.
type Tracker struct {
	cfg Config
}

// NewTracker creates a gaze tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultConfig().Scale
	}
	return &Tracker{cfg: cfg}
}

// Landmark layouts the tracker understands. The dense mesh uses contour
// indices; the sparse five-point layout is what box detectors like YuNet
// produce (right eye, left eye, nose tip, mouth corners).
const (
	meshLandmarkCount   = 468
	sparseLandmarkCount = 5

	sparseRightEye = 0
	sparseLeftEye  = 1
	sparseNoseTip  = 2

	meshLeftEyeCorner  = 33
	meshRightEyeCorner = 263
)

// Track computes the gaze vector for one face's landmarks. Empty or
// unusable input yields a zeroed vector with zero confidence and
// IsLookingAtScreen false; it never fails.
func (t *Tracker) Track(landmarks []geometry.Point) Vector {
	var leftEye, rightEye, nose geometry.Point

	switch {
	case len(landmarks) >= meshLandmarkCount:
		leftEye = landmarks[meshLeftEyeCorner]
		rightEye = landmarks[meshRightEyeCorner]
		nose = landmarks[geometry.NoseTipIndex]
	case len(landmarks) >= sparseLandmarkCount:
		leftEye = landmarks[sparseLeftEye]
		rightEye = landmarks[sparseRightEye]
		nose = landmarks[sparseNoseTip]
	default:
		return Vector{}
	}

	eyeCenter := geometry.Midpoint(leftEye, rightEye)
	dx := (nose.X - eyeCenter.X) * t.cfg.Scale
	dy := (nose.Y - eyeCenter.Y) * t.cfg.Scale

	magnitude := math.Sqrt(dx*dx + dy*dy)
	return Vector{
		X:                 dx,
		Y:                 dy,
		IsLookingAtScreen: magnitude < t.cfg.Threshold,
		Confidence:        1,
	}
}

// CheckFocus reduces a gaze vector and a face count to a focus status.
// Multiple faces always count as unfocused regardless of gaze.
func CheckFocus(g Vector, faceCount int) Status {
	present := faceCount > 0
	return Status{
		IsFocused:  present && faceCount == 1 && g.IsLookingAtScreen,
		IsPresent:  present,
		FaceCount:  faceCount,
		Gaze:       g,
		Confidence: g.Confidence,
	}
}
