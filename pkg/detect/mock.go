package detect

import (
	"sync"
	"time"
)

// MockFaceDetector is a scripted FaceDetector for tests and development.
// Each call to Detect pops the next scripted result; when the script is
// exhausted the last result repeats.
type MockFaceDetector struct {
	mu      sync.Mutex
	script  []FrameResult
	errs    []error
	cursor  int
	calls   int
	closed  bool
}

// NewMockFaceDetector creates a mock that replays the given results in order.
func NewMockFaceDetector(script ...FrameResult) *MockFaceDetector {
	return &MockFaceDetector{script: script}
}

// Enqueue appends a scripted result.
func (m *MockFaceDetector) Enqueue(r FrameResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, r)
}

// FailNext makes the next Detect call return err.
func (m *MockFaceDetector) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Detect replays the next scripted result.
func (m *MockFaceDetector) Detect(_ Frame) (FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return FrameResult{Timestamp: time.Now()}, err
	}

	if len(m.script) == 0 {
		return FrameResult{Timestamp: time.Now()}, nil
	}
	r := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return r, nil
}

// Calls returns how many times Detect was invoked.
func (m *MockFaceDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *MockFaceDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockObjectDetector is a scripted ObjectDetector for tests.
type MockObjectDetector struct {
	mu     sync.Mutex
	script [][]Object
	cursor int
}

// NewMockObjectDetector creates a mock that replays the given object lists.
func NewMockObjectDetector(script ...[]Object) *MockObjectDetector {
	return &MockObjectDetector{script: script}
}

// Detect replays the next scripted object list.
func (m *MockObjectDetector) Detect(_ Frame) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) == 0 {
		return nil, nil
	}
	objs := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	return objs, nil
}

// Close is a no-op.
func (m *MockObjectDetector) Close() error { return nil }
