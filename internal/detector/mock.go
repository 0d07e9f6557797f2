package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	frames []*landmark.Frame
	err    error
	gate   chan struct{}
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames sets the poses that will be returned by Detect.
func (m *MockDetector) SetFrames(frames []*landmark.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes Detect wait until the returned release function is called.
func (m *MockDetector) Block() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.gate = nil
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times Detect has been entered.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]*landmark.Frame, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.frames, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// TPoseLandmarks returns a preset frame of a person facing the camera with arms stretched out.
func TPoseLandmarks() *landmark.Frame {
	f, _ := landmark.NewFrame(landmark.TPosePoints(), 0)
	return f
}

// ArmsUpLandmarks returns a preset frame with both forearms raised.
func ArmsUpLandmarks() *landmark.Frame {
	f, _ := landmark.NewFrame(landmark.ArmsUpPoints(), 0)
	return f
}
