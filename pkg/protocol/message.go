// Package protocol defines the WebSocket message types exchanged between
// the candidate's browser client and the invigilation engine. The client
// pushes video frames and Opus audio packets over a single session socket;
// the engine answers pings and acknowledges session control messages.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Engine messages
	TypeHello MessageType = "hello" // Session start with identity
	TypeFrame MessageType = "frame" // Video frame
	TypeAudio MessageType = "audio" // Opus audio packet
	TypeStop  MessageType = "stop"  // End the session

	// Engine → Client messages
	TypeAck   MessageType = "ack"   // Control acknowledgement
	TypeError MessageType = "error" // Rejected message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Client → Engine Message Types
// =============================================================================

// HelloData opens a monitoring session
type HelloData struct {
	SessionID   string `json:"session_id"`
	CandidateID string `json:"candidate_id"`
}

// FrameData contains a video frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// AudioData contains an encoded audio packet
type AudioData struct {
	Format     string `json:"format"`      // "opus"
	SampleRate int    `json:"sample_rate"` // e.g., 48000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// =============================================================================
// Engine → Client Message Types
// =============================================================================

// AckData acknowledges a control message
type AckData struct {
	Of        MessageType `json:"of"`
	SessionID string      `json:"session_id,omitempty"`
}

// ErrorData reports a rejected message
type ErrorData struct {
	Of     MessageType `json:"of,omitempty"`
	Reason string      `json:"reason"`
}
