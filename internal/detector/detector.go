// Package detector runs pose landmark detection on camera frames.
package detector

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
)

// ErrDetectorUnavailable is returned when a backend cannot be started.
var ErrDetectorUnavailable = errors.New("detector unavailable")

// Detector defines the interface for pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns one landmark frame per detected person.
	// Returns an empty slice if nobody is in view. Returned frames carry no timestamp.
	Detect(frame *gocv.Mat) ([]*landmark.Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Backend names accepted by New.
const (
	BackendMediaPipe = "mediapipe"
	BackendTFLite    = "tflite"
	BackendRemote    = "remote"
	BackendMock      = "mock"
)

// Config holds configuration options for pose detection.
type Config struct {
	// Backend selects the implementation (default: mediapipe).
	Backend string `yaml:"backend"`

	// MaxPoses is the maximum number of people to detect (default: 1).
	MaxPoses int `yaml:"max_poses"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinPresence is the minimum landmark presence threshold (0.0-1.0).
	MinPresence float64 `yaml:"min_presence"`

	// ModelPath is the landmark model used by the tflite backend and passed to the
	// MediaPipe service.
	ModelPath string `yaml:"model_path"`

	// Threads is the number of interpreter threads for the tflite backend.
	Threads int `yaml:"threads"`

	// Endpoint is the inference URL of the remote backend.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one remote request.
	Timeout time.Duration `yaml:"timeout"`

	// IdleTimeout stops the MediaPipe service after this long without frames.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// Python and Script override the interpreter and service script lookup of the
	// mediapipe backend.
	Python string `yaml:"python,omitempty"`
	Script string `yaml:"script,omitempty"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMediaPipe,
		MaxPoses:      1,
		MinConfidence: 0.5,
		MinPresence:   0.5,
		ModelPath:     "resources/ai_models/pose_landmarker_lite.task",
		Threads:       4,
		Timeout:       2 * time.Second,
		IdleTimeout:   30 * time.Second,
	}
}

// New creates the detector selected by cfg.Backend.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case BackendMediaPipe, "":
		return NewMediaPipeDetector(cfg)
	case BackendTFLite:
		return NewTFLiteDetector(cfg)
	case BackendRemote:
		return NewRemoteDetector(cfg)
	case BackendMock:
		m := NewMockDetector()
		m.SetFrames([]*landmark.Frame{TPoseLandmarks()})
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrDetectorUnavailable, cfg.Backend)
	}
}
