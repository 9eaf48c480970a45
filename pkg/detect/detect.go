// Package detect defines the boundary to the external face and object
// models. The analyzers consume the per-frame output contract declared
// here; inference itself lives behind the Detector interfaces so that the
// engine never depends on a particular backend.
package detect

import (
	"time"

	"github.com/invigilab/go-invigil/pkg/geometry"
)

// BoundingBox is a face/object box in frame-normalized coordinates.
type BoundingBox struct {
	X float64 `json:"x"` // top-left
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the area of the box.
func (b BoundingBox) Area() float64 {
	return b.W * b.H
}

// Face is a single detected face within one frame. It is ephemeral:
// analyzers extract their signals and discard it.
type Face struct {
	Landmarks  []geometry.Point
	Box        BoundingBox
	Confidence float64
}

// FrameResult is everything the face model produced for one frame.
type FrameResult struct {
	Faces     []Face
	Timestamp time.Time
}

// Object is a single detected non-face object within one frame.
type Object struct {
	ClassName  string
	Box        BoundingBox
	Confidence float64
}

// Frame is one normalized raster frame handed to a detector backend.
type Frame struct {
	// JPEG holds the encoded frame. Backends decode as needed.
	JPEG   []byte
	Width  int
	Height int
}

// FaceDetector is the interface for face model backends.
// A failed frame must surface as an error that callers treat as
// "zero detections this frame", never as a fatal condition.
type FaceDetector interface {
	// Detect finds faces in the frame.
	Detect(frame Frame) (FrameResult, error)

	// Close releases resources.
	Close() error
}

// ObjectDetector is the interface for object model backends.
type ObjectDetector interface {
	// Detect finds objects in the frame.
	Detect(frame Frame) ([]Object, error)

	// Close releases resources.
	Close() error
}

// Config holds detector configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for the YuNet face backend.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectPrimary picks the candidate's face from multiple detections.
// Priority: confidence * 0.7 + relative area * 0.3, so a large confident
// face near the camera wins over small background faces.
func SelectPrimary(faces []Face) *Face {
	if len(faces) == 0 {
		return nil
	}
	if len(faces) == 1 {
		return &faces[0]
	}

	maxArea := 0.0
	for _, f := range faces {
		if f.Box.Area() > maxArea {
			maxArea = f.Box.Area()
		}
	}
	if maxArea == 0 {
		return &faces[0]
	}

	bestScore := -1.0
	var best *Face
	for i := range faces {
		score := faces[i].Confidence*0.7 + (faces[i].Box.Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &faces[i]
		}
	}
	return best
}
