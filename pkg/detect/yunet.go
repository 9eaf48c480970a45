package detect

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/invigilab/go-invigil/pkg/geometry"
)

// YuNetDetector wraps OpenCV's FaceDetectorYN as a FaceDetector backend.
// YuNet emits a bounding box plus five sparse landmarks per face
// (right eye, left eye, nose tip, mouth corners), which is enough for the
// gaze analyzer; the drowsiness analyzer treats sparse landmark sets as
// "eyes open" since no eye contour is available.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // protects inference
}

// NewYuNet creates a YuNet face detector backend.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // no config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the frame.
func (d *YuNetDetector) Detect(frame Frame) (FrameResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := FrameResult{Timestamp: time.Now()}

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return result, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return result, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	// YuNet output format (15 columns):
	// 0-3: x, y, w, h (bounding box in pixels)
	// 4-13: 5 facial landmarks (x,y pairs)
	// 14: face score
	for r := 0; r < faces.Rows(); r++ {
		landmarks := make([]geometry.Point, 5)
		for l := 0; l < 5; l++ {
			landmarks[l] = geometry.Point{
				X: float64(faces.GetFloatAt(r, 4+l*2)) / imgW,
				Y: float64(faces.GetFloatAt(r, 5+l*2)) / imgH,
			}
		}

		result.Faces = append(result.Faces, Face{
			Landmarks: landmarks,
			Box: BoundingBox{
				X: float64(faces.GetFloatAt(r, 0)) / imgW,
				Y: float64(faces.GetFloatAt(r, 1)) / imgH,
				W: float64(faces.GetFloatAt(r, 2)) / imgW,
				H: float64(faces.GetFloatAt(r, 3)) / imgH,
			},
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}

	return result, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
