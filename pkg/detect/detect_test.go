package detect

import (
	"errors"
	"testing"
)

func TestSelectPrimary_Empty(t *testing.T) {
	if got := SelectPrimary(nil); got != nil {
		t.Errorf("SelectPrimary(nil) = %v, want nil", got)
	}
}

func TestSelectPrimary_Single(t *testing.T) {
	faces := []Face{{Confidence: 0.4, Box: BoundingBox{W: 0.1, H: 0.1}}}
	got := SelectPrimary(faces)
	if got == nil || got.Confidence != 0.4 {
		t.Errorf("SelectPrimary() = %v, want the only face", got)
	}
}

func TestSelectPrimary_PrefersConfidentLargeFace(t *testing.T) {
	faces := []Face{
		{Confidence: 0.6, Box: BoundingBox{W: 0.05, H: 0.05}}, // small background face
		{Confidence: 0.9, Box: BoundingBox{W: 0.3, H: 0.3}},   // candidate face
		{Confidence: 0.7, Box: BoundingBox{W: 0.08, H: 0.08}},
	}
	got := SelectPrimary(faces)
	if got == nil || got.Confidence != 0.9 {
		t.Errorf("SelectPrimary() confidence = %v, want 0.9", got.Confidence)
	}
}

func TestSelectPrimary_AreaBreaksConfidenceTie(t *testing.T) {
	faces := []Face{
		{Confidence: 0.8, Box: BoundingBox{W: 0.1, H: 0.1}},
		{Confidence: 0.8, Box: BoundingBox{W: 0.4, H: 0.4}},
	}
	got := SelectPrimary(faces)
	if got == nil || got.Box.W != 0.4 {
		t.Errorf("SelectPrimary() box width = %v, want 0.4 (larger face)", got.Box.W)
	}
}

func TestBoundingBox_Center(t *testing.T) {
	b := BoundingBox{X: 0.2, Y: 0.4, W: 0.2, H: 0.2}
	cx, cy := b.Center()
	if cx != 0.3 || cy != 0.5 {
		t.Errorf("Center() = (%v, %v), want (0.3, 0.5)", cx, cy)
	}
}

func TestMockFaceDetector_ReplaysAndRepeats(t *testing.T) {
	one := FrameResult{Faces: []Face{{Confidence: 0.9}}}
	two := FrameResult{}
	m := NewMockFaceDetector(one, two)

	r1, err := m.Detect(Frame{})
	if err != nil || len(r1.Faces) != 1 {
		t.Fatalf("first Detect() = %v faces, err %v; want 1 face", len(r1.Faces), err)
	}
	r2, _ := m.Detect(Frame{})
	if len(r2.Faces) != 0 {
		t.Fatalf("second Detect() = %v faces, want 0", len(r2.Faces))
	}
	// Script exhausted: last result repeats.
	r3, _ := m.Detect(Frame{})
	if len(r3.Faces) != 0 {
		t.Fatalf("third Detect() = %v faces, want 0 (repeat)", len(r3.Faces))
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
}

func TestMockFaceDetector_FailNext(t *testing.T) {
	m := NewMockFaceDetector(FrameResult{Faces: []Face{{Confidence: 0.9}}})
	m.FailNext(errors.New("inference failed"))

	if _, err := m.Detect(Frame{}); err == nil {
		t.Fatal("Detect() err = nil, want injected error")
	}
	if _, err := m.Detect(Frame{}); err != nil {
		t.Fatalf("Detect() err = %v after injected failure consumed, want nil", err)
	}
}
