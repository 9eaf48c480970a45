package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "frame message",
			msgType: TypeFrame,
			data:    FrameData{Width: 640, Height: 480, Format: "jpeg"},
			wantErr: false,
		},
		{
			name:    "hello message",
			msgType: TypeHello,
			data:    HelloData{SessionID: "sess-1", CandidateID: "cand-1"},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if msg == nil && !tt.wantErr {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	msg, err := NewFrameMessage(640, 480, jpeg, 7)
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeFrame {
		t.Errorf("type = %v, want %v", parsed.Type, TypeFrame)
	}

	var frame FrameData
	if err := parsed.ParseData(&frame); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", frame.Width, frame.Height)
	}
	if frame.FrameID != 7 {
		t.Errorf("frame id = %d, want 7", frame.FrameID)
	}

	payload, err := frame.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !bytes.Equal(payload, jpeg) {
		t.Errorf("payload = %v, want %v", payload, jpeg)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	packet := []byte{0x01, 0x02, 0x03, 0x04}

	msg, err := NewAudioMessage(packet, 48000, 1)
	if err != nil {
		t.Fatalf("NewAudioMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	var audio AudioData
	if err := parsed.ParseData(&audio); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if audio.Format != "opus" {
		t.Errorf("format = %q, want opus", audio.Format)
	}
	if audio.SampleRate != 48000 || audio.Channels != 1 {
		t.Errorf("sample rate/channels = %d/%d, want 48000/1", audio.SampleRate, audio.Channels)
	}

	payload, err := audio.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !bytes.Equal(payload, packet) {
		t.Errorf("payload = %v, want %v", payload, packet)
	}
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	if _, err := ParseMessage([]byte("not json")); err == nil {
		t.Error("ParseMessage() should fail on invalid JSON")
	}
}

func TestParseDataNilIsNoop(t *testing.T) {
	msg := &Message{Type: TypeStop}
	var hello HelloData
	if err := msg.ParseData(&hello); err != nil {
		t.Errorf("ParseData() on empty data = %v, want nil", err)
	}
}

func TestDecodePayloadRejectsBadBase64(t *testing.T) {
	frame := FrameData{Data: "!!not base64!!"}
	if _, err := frame.DecodePayload(); err == nil {
		t.Error("DecodePayload() should fail on invalid base64")
	}
}

func TestAckMessage(t *testing.T) {
	msg, err := NewAckMessage(TypeHello, "sess-9")
	if err != nil {
		t.Fatalf("NewAckMessage() error = %v", err)
	}

	var ack AckData
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Of != TypeHello || ack.SessionID != "sess-9" {
		t.Errorf("ack = %+v, want hello/sess-9", ack)
	}
}
