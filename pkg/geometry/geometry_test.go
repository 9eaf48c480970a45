package geometry

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
	}{
		{
			name:     "same point",
			a:        Point{X: 0.5, Y: 0.5},
			b:        Point{X: 0.5, Y: 0.5},
			expected: 0,
		},
		{
			name:     "unit along x",
			a:        Point{X: 0},
			b:        Point{X: 1},
			expected: 1,
		},
		{
			name:     "3-4-5 triangle",
			a:        Point{X: 0, Y: 0},
			b:        Point{X: 0.3, Y: 0.4},
			expected: 0.5,
		},
		{
			name:     "uses z axis",
			a:        Point{Z: 0},
			b:        Point{Z: 2},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Distance() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// simulatedEye builds the six EAR points for an eye of the given width and
// vertical opening, centered at origin.
func simulatedEye(width, opening float64) []Point {
	return []Point{
		{X: -width / 2},                    // p1 outer corner
		{X: -width / 4, Y: -opening / 2},   // p2 top
		{X: width / 4, Y: -opening / 2},    // p3 top
		{X: width / 2},                     // p4 inner corner
		{X: width / 4, Y: opening / 2},     // p5 bottom
		{X: -width / 4, Y: opening / 2},    // p6 bottom
	}
}

func TestEyeAspectRatio_Monotonic(t *testing.T) {
	// For a fixed width, EAR must decrease as the eye closes.
	const width = 0.1
	prev := math.Inf(1)
	for _, opening := range []float64{0.05, 0.04, 0.03, 0.02, 0.01, 0.001} {
		ear := EyeAspectRatio(simulatedEye(width, opening))
		if ear >= prev {
			t.Fatalf("EAR not monotonic: opening=%v ear=%v prev=%v", opening, ear, prev)
		}
		prev = ear
	}
}

func TestEyeAspectRatio_ClosedCrossesThreshold(t *testing.T) {
	const width = 0.1

	// Open eye geometry stays above the closure threshold.
	open := EyeAspectRatio(simulatedEye(width, 0.04))
	if open < 0.21 {
		t.Errorf("open eye EAR = %v, want >= 0.21", open)
	}

	// Closed eye geometry drops below it.
	closed := EyeAspectRatio(simulatedEye(width, 0.002))
	if closed >= 0.21 {
		t.Errorf("closed eye EAR = %v, want < 0.21", closed)
	}
}

func TestEyeAspectRatio_InsufficientPoints(t *testing.T) {
	// Fewer than 6 points means "cannot determine, assume open".
	if got := EyeAspectRatio(nil); got != OpenEyeEAR {
		t.Errorf("EyeAspectRatio(nil) = %v, want %v", got, OpenEyeEAR)
	}
	if got := EyeAspectRatio(simulatedEye(0.1, 0.04)[:4]); got != OpenEyeEAR {
		t.Errorf("EyeAspectRatio(4 pts) = %v, want %v", got, OpenEyeEAR)
	}
}

func TestEyeAspectRatio_ZeroWidth(t *testing.T) {
	pts := simulatedEye(0, 0.04)
	if got := EyeAspectRatio(pts); got != OpenEyeEAR {
		t.Errorf("EyeAspectRatio(zero width) = %v, want %v", got, OpenEyeEAR)
	}
}

func TestExtractEye(t *testing.T) {
	landmarks := make([]Point, 500)
	for i := range landmarks {
		landmarks[i] = Point{X: float64(i)}
	}

	eye, ok := ExtractEye(landmarks, LeftEyeIndices)
	if !ok {
		t.Fatal("ExtractEye() ok = false, want true")
	}
	if eye[0].X != float64(LeftEyeIndices[0]) {
		t.Errorf("eye[0].X = %v, want %v", eye[0].X, LeftEyeIndices[0])
	}

	// Out-of-range index set on a short landmark list.
	_, ok = ExtractEye(landmarks[:10], RightEyeIndices)
	if ok {
		t.Error("ExtractEye() ok = true on short landmarks, want false")
	}
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(Point{X: 0, Y: 0}, Point{X: 1, Y: 0.5})
	if m.X != 0.5 || m.Y != 0.25 {
		t.Errorf("Midpoint() = %+v, want {0.5 0.25 0}", m)
	}
}
