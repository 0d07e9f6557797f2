// Package retarget maps the fixed pose landmark topology onto the joints of a specific skeleton.
package retarget

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/minime/internal/landmark"
)

// Mode selects how a rule drives its joint.
type Mode int

const (
	// Skip ignores the landmark.
	Skip Mode = iota
	// Direct turns a landmark position into the joint's local translation.
	Direct
	// LookAt turns the direction between two landmarks into the joint's local rotation.
	LookAt
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case LookAt:
		return "look_at"
	default:
		return "skip"
	}
}

// ParseMode parses the text form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "direct":
		return Direct, nil
	case "look_at", "lookat":
		return LookAt, nil
	case "skip", "":
		return Skip, nil
	}
	return Skip, fmt.Errorf("unknown retarget mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DefaultForward is the bind-pose bone axis used by LookAt rules that do not set one.
var DefaultForward = mgl64.Vec3{0, 1, 0}

// Rule binds one or two landmarks to one joint.
//
// Direct uses From, or the midpoint of From and To when HasTo is set.
// LookAt aims the joint's Forward axis from From towards To.
type Rule struct {
	Mode  Mode
	Joint string
	From  landmark.Index
	To    landmark.Index
	HasTo bool

	// Forward is the joint-local bone axis in bind pose. Zero means DefaultForward.
	Forward mgl64.Vec3

	// MinVisibility drops the rule for a frame when a referenced landmark is less visible.
	MinVisibility float64
}

// Landmarks returns the indices referenced by the rule.
func (r Rule) Landmarks() []landmark.Index {
	if r.HasTo {
		return []landmark.Index{r.From, r.To}
	}
	return []landmark.Index{r.From}
}

// Axis returns the rule's forward axis, normalized.
func (r Rule) Axis() mgl64.Vec3 {
	if r.Forward.Len() == 0 {
		return DefaultForward
	}
	return r.Forward.Normalize()
}

func (r Rule) validate() error {
	if r.Joint == "" && r.Mode != Skip {
		return fmt.Errorf("rule for %s has no joint", r.From)
	}
	for _, i := range r.Landmarks() {
		if !i.Valid() {
			return fmt.Errorf("rule for joint %q: landmark index %d outside the pose topology", r.Joint, int(i))
		}
	}
	if r.Mode == LookAt {
		if !r.HasTo {
			return fmt.Errorf("look_at rule for joint %q needs two landmarks", r.Joint)
		}
		if r.From == r.To {
			return fmt.Errorf("look_at rule for joint %q references %s twice", r.Joint, r.From)
		}
	}
	if r.MinVisibility < 0 || r.MinVisibility > 1 {
		return fmt.Errorf("rule for joint %q: min visibility %v outside [0,1]", r.Joint, r.MinVisibility)
	}
	return nil
}

// Affine maps normalized camera coordinates into a skeleton's local convention.
// Flips mirror an axis inside the unit square (x becomes 1-x) before scaling.
type Affine struct {
	FlipX  bool
	FlipY  bool
	Scale  mgl64.Vec2
	Depth  float64
	Offset mgl64.Vec3
}

// IdentityAffine leaves coordinates unchanged.
func IdentityAffine() Affine {
	return Affine{Scale: mgl64.Vec2{1, 1}, Depth: 1}
}

// withDefaults treats zero scale components and a zero depth as unset. A table that only
// sets the scale keeps z at depth 1.
func (a Affine) withDefaults() Affine {
	for i := range a.Scale {
		if a.Scale[i] == 0 {
			a.Scale[i] = 1
		}
	}
	if a.Depth == 0 {
		a.Depth = 1
	}
	return a
}

// Apply maps a landmark position.
func (a Affine) Apply(l landmark.Landmark) mgl64.Vec3 {
	x, y := l.X, l.Y
	if a.FlipX {
		x = 1 - x
	}
	if a.FlipY {
		y = 1 - y
	}
	return mgl64.Vec3{
		x*a.Scale[0] + a.Offset[0],
		y*a.Scale[1] + a.Offset[1],
		l.Z*a.Depth + a.Offset[2],
	}
}

// ApplyDirection maps the difference between two landmarks. Offsets cancel out and a flip
// negates its axis.
func (a Affine) ApplyDirection(from, to landmark.Landmark) mgl64.Vec3 {
	dx, dy, dz := to.Sub(from)
	if a.FlipX {
		dx = -dx
	}
	if a.FlipY {
		dy = -dy
	}
	return mgl64.Vec3{dx * a.Scale[0], dy * a.Scale[1], dz * a.Depth}
}
