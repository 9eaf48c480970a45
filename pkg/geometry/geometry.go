// Package geometry provides the landmark math shared by the face analyzers:
// point distances, eye aspect ratio, and the landmark index sets used to
// extract eye and nose regions from a dense face mesh.
package geometry

import "math"

// Point is a 3D landmark in frame-normalized coordinates (x, y in 0..1).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between two points.
// NaN inputs propagate; callers feeding malformed landmarks get NaN back.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// OpenEyeEAR is the sentinel returned when an eye cannot be measured.
// It reads as a wide-open eye so that missing landmarks never register
// as a closure.
const OpenEyeEAR = 1.0

// EyeAspectRatio computes the EAR for a single eye from six ordered
// landmarks [p1..p6]: (|p2-p6| + |p3-p5|) / (2*|p1-p4|).
// Fewer than six points means the eye state is unknown; the open-eye
// sentinel is returned rather than an error so a bad frame cannot
// interrupt the stream.
func EyeAspectRatio(pts []Point) float64 {
	if len(pts) < 6 {
		return OpenEyeEAR
	}
	horizontal := Distance(pts[0], pts[3])
	if horizontal == 0 {
		return OpenEyeEAR
	}
	v1 := Distance(pts[1], pts[5])
	v2 := Distance(pts[2], pts[4])
	return (v1 + v2) / (2 * horizontal)
}

// Face mesh landmark indices for the regions the analyzers care about.
// These follow the 468-point mesh layout produced by the face model.
var (
	// LeftEyeIndices are the six contour points for the left eye,
	// ordered [outer corner, top1, top2, inner corner, bottom2, bottom1]
	// as required by EyeAspectRatio.
	LeftEyeIndices = [6]int{33, 160, 158, 133, 153, 144}

	// RightEyeIndices mirror LeftEyeIndices for the right eye.
	RightEyeIndices = [6]int{362, 385, 387, 263, 373, 380}
)

// Key single-point indices on the mesh.
const (
	LeftEyeCenterIndex  = 468 // refined iris center, falls back to 33
	RightEyeCenterIndex = 473 // refined iris center, falls back to 263
	NoseTipIndex        = 1
)

// ExtractEye pulls one eye's six contour points from a full landmark set.
// Returns ok=false if any index is out of range.
func ExtractEye(landmarks []Point, indices [6]int) ([]Point, bool) {
	out := make([]Point, 6)
	for i, idx := range indices {
		if idx < 0 || idx >= len(landmarks) {
			return nil, false
		}
		out[i] = landmarks[idx]
	}
	return out, true
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}

// Clamp limits v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
