// Package landmark defines the 33-point pose landmark topology shared by the detectors,
// the retargeting map and the overlay renderer.
package landmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrContractViolation is returned when a frame does not carry exactly NumLandmarks points.
var ErrContractViolation = errors.New("landmark frame must contain exactly 33 landmarks")

// Index identifies a pose landmark following the MediaPipe pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type Index int

const (
	Nose Index = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// NumLandmarks is the fixed size of the pose topology.
const NumLandmarks = 33

var names = [NumLandmarks]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

// Valid reports whether i lies inside the topology.
func (i Index) Valid() bool {
	return i >= 0 && i < NumLandmarks
}

func (i Index) String() string {
	if !i.Valid() {
		return fmt.Sprintf("landmark(%d)", int(i))
	}
	return names[i]
}

// ParseIndex resolves a landmark name such as "left_shoulder".
func ParseIndex(name string) (Index, error) {
	for i, n := range names {
		if n == name {
			return Index(i), nil
		}
	}
	return -1, fmt.Errorf("unknown landmark %q", name)
}

// MarshalText encodes the index by name.
func (i Index) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("landmark index %d out of range", int(i))
	}
	return []byte(names[i]), nil
}

// UnmarshalText accepts a landmark name.
func (i *Index) UnmarshalText(text []byte) error {
	idx, err := ParseIndex(string(text))
	if err != nil {
		return err
	}
	*i = idx
	return nil
}

// Landmark is a normalized point produced by the detector. X and Y are in [0,1] relative
// to the camera frame, Z is a relative depth in model units.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
	Presence   float64 `json:"presence,omitempty"`
}

// UnmarshalJSON decodes a landmark. Detectors that do not report visibility produce fully
// visible points; an explicit zero stays zero.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	type plain Landmark
	aux := struct {
		plain
		Visibility *float64 `json:"visibility"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*l = Landmark(aux.plain)
	l.Visibility = 1
	if aux.Visibility != nil {
		l.Visibility = *aux.Visibility
	}
	return nil
}

// Sub returns the component-wise difference l - o.
func (l Landmark) Sub(o Landmark) (dx, dy, dz float64) {
	return l.X - o.X, l.Y - o.Y, l.Z - o.Z
}

// Distance returns the Euclidean distance between two landmarks.
func Distance(a, b Landmark) float64 {
	dx, dy, dz := a.Sub(b)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Frame is one detection result: the 33 landmarks of a single person in topology order.
// A Frame is never modified after construction.
type Frame struct {
	Points    []Landmark    `json:"landmarks"`
	World     []Landmark    `json:"world_landmarks,omitempty"`
	Timestamp time.Duration `json:"timestamp"`
}

// NewFrame validates the landmark count and copies points into a new Frame.
func NewFrame(points []Landmark, ts time.Duration) (*Frame, error) {
	if len(points) != NumLandmarks {
		return nil, fmt.Errorf("%w: got %d", ErrContractViolation, len(points))
	}
	f := &Frame{
		Points:    make([]Landmark, NumLandmarks),
		Timestamp: ts,
	}
	copy(f.Points, points)
	return f, nil
}

// WithWorld returns a copy of f carrying world-space landmarks (meters, hip centred).
func (f *Frame) WithWorld(world []Landmark) (*Frame, error) {
	if len(world) != NumLandmarks {
		return nil, fmt.Errorf("%w: got %d world landmarks", ErrContractViolation, len(world))
	}
	out := &Frame{
		Points:    f.Points,
		World:     make([]Landmark, NumLandmarks),
		Timestamp: f.Timestamp,
	}
	copy(out.World, world)
	return out, nil
}

// Empty reports whether the detector found nobody.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Points) == 0
}

// Validate checks the topology invariant.
func (f *Frame) Validate() error {
	if f == nil {
		return nil
	}
	if len(f.Points) != NumLandmarks {
		return fmt.Errorf("%w: got %d", ErrContractViolation, len(f.Points))
	}
	if len(f.World) != 0 && len(f.World) != NumLandmarks {
		return fmt.Errorf("%w: got %d world landmarks", ErrContractViolation, len(f.World))
	}
	return nil
}

// At returns the landmark at index i. The frame must be valid.
func (f *Frame) At(i Index) Landmark {
	return f.Points[i]
}
