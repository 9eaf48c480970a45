package protocol

import (
	"encoding/base64"
	"fmt"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a session-open message
func NewHelloMessage(sessionID, candidateID string) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		SessionID:   sessionID,
		CandidateID: candidateID,
	})
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewAudioMessage creates an audio message from an encoded Opus packet
func NewAudioMessage(packet []byte, sampleRate, channels int) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{
		Format:     "opus",
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       base64.StdEncoding.EncodeToString(packet),
	})
}

// NewStopMessage creates a session-end message
func NewStopMessage() (*Message, error) {
	return NewMessage(TypeStop, nil)
}

// NewAckMessage acknowledges a control message
func NewAckMessage(of MessageType, sessionID string) (*Message, error) {
	return NewMessage(TypeAck, AckData{Of: of, SessionID: sessionID})
}

// NewErrorMessage reports a rejected message back to the client
func NewErrorMessage(of MessageType, reason string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Of: of, Reason: reason})
}

// NewPongMessage answers a ping, echoing the ping timestamp
func NewPongMessage(pingTS int64) (*Message, error) {
	return NewMessage(TypePong, map[string]int64{"ping_ts": pingTS})
}

// DecodePayload returns the decoded frame bytes
func (f *FrameData) DecodePayload() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame payload: %w", err)
	}
	return data, nil
}

// DecodePayload returns the decoded audio packet bytes
func (a *AudioData) DecodePayload() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return data, nil
}
