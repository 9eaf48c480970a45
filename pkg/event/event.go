// Package event defines the detection-event model emitted by the analyzers.
// Events are immutable once created; ownership passes to the aggregation
// layer and then to sinks.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a detection event. The enumeration is closed: the
// aggregation layer rejects anything else at construction time.
type Type string

const (
	TypeFocusLoss         Type = "focus-loss"
	TypeFocusRestored     Type = "focus-restored"
	TypeAbsence           Type = "absence"
	TypeFaceVisible       Type = "face-visible"
	TypeMultipleFaces     Type = "multiple-faces"
	TypeUnauthorizedItem  Type = "unauthorized-item"
	TypeDrowsiness        Type = "drowsiness"
	TypeEyeClosure        Type = "eye-closure"
	TypeExcessiveBlinking Type = "excessive-blinking"
	TypeBackgroundVoice   Type = "background-voice"
	TypeMultipleVoices    Type = "multiple-voices"
	TypeExcessiveNoise    Type = "excessive-noise"
	TypeManualFlag        Type = "manual_flag"
)

// Valid reports whether t is a member of the closed enumeration.
func (t Type) Valid() bool {
	switch t {
	case TypeFocusLoss, TypeFocusRestored, TypeAbsence, TypeFaceVisible,
		TypeMultipleFaces, TypeUnauthorizedItem, TypeDrowsiness,
		TypeEyeClosure, TypeExcessiveBlinking, TypeBackgroundVoice,
		TypeMultipleVoices, TypeExcessiveNoise, TypeManualFlag:
		return true
	}
	return false
}

// Event is a single emitted detection event.
type Event struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	CandidateID string        `json:"candidate_id"`
	Type        Type          `json:"event_type"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration,omitempty"`
	Confidence  float64       `json:"confidence"`

	// Duplicate is set by the aggregation layer when a near-identical
	// event preceded this one. Duplicates are flagged, never dropped.
	Duplicate bool `json:"duplicate,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`
}

// New creates an event, validating the type, clamping confidence to [0,1],
// and checking that the metadata variant matches the event type.
func New(t Type, confidence float64, md Metadata) (Event, error) {
	if !t.Valid() {
		return Event{}, fmt.Errorf("unknown event type %q", t)
	}
	if md != nil && !metadataMatches(t, md) {
		return Event{}, fmt.Errorf("metadata %T does not fit event type %q", md, t)
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Timestamp:  time.Now(),
		Confidence: confidence,
		Metadata:   md,
	}, nil
}

// WithDuration returns a copy of e carrying the given duration.
func (e Event) WithDuration(d time.Duration) Event {
	e.Duration = d
	return e
}

// metadataMatches checks the tagged-union pairing of type and metadata.
func metadataMatches(t Type, md Metadata) bool {
	switch md.(type) {
	case *GazeMetadata:
		return t == TypeFocusLoss || t == TypeFocusRestored
	case *PresenceMetadata:
		return t == TypeAbsence || t == TypeFaceVisible || t == TypeMultipleFaces
	case *DrowsinessMetadata:
		return t == TypeDrowsiness || t == TypeEyeClosure || t == TypeExcessiveBlinking
	case *AudioMetadata:
		return t == TypeBackgroundVoice || t == TypeMultipleVoices || t == TypeExcessiveNoise
	case *ObjectMetadata:
		return t == TypeUnauthorizedItem
	case *ManualMetadata:
		return t == TypeManualFlag
	}
	return false
}

// Handler consumes emitted events. Implementations must not block the
// frame-processing path.
type Handler func(Event)
