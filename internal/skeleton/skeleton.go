// Package skeleton models the rigid joint hierarchy of a rigged avatar.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidSkeleton is returned when a joint list does not form an ordered tree.
var ErrInvalidSkeleton = errors.New("invalid skeleton")

// Transform is a joint-local TRS transform.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// IdentityTransform returns the transform that leaves a joint at its parent's origin.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Joint is one node of the skeleton. Parent is -1 for a root.
type Joint struct {
	Name   string
	Index  int
	Parent int
	Bind   Transform
}

// IsRoot reports whether the joint has no parent.
func (j Joint) IsRoot() bool {
	return j.Parent < 0
}

// Skeleton is an ordered tree of joints where every parent precedes its children.
// It is read-only after construction and safe for concurrent use.
type Skeleton struct {
	id       string
	joints   []Joint
	byName   map[string]int
	children [][]int
}

// New validates joints and builds a Skeleton. Joint indices are reassigned from the
// slice order.
func New(id string, joints []Joint) (*Skeleton, error) {
	if len(joints) == 0 {
		return nil, fmt.Errorf("%w: %s has no joints", ErrInvalidSkeleton, id)
	}

	s := &Skeleton{
		id:       id,
		joints:   make([]Joint, len(joints)),
		byName:   make(map[string]int, len(joints)),
		children: make([][]int, len(joints)),
	}

	for i, j := range joints {
		if j.Name == "" {
			return nil, fmt.Errorf("%w: joint %d has no name", ErrInvalidSkeleton, i)
		}
		if _, dup := s.byName[j.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate joint %q", ErrInvalidSkeleton, j.Name)
		}
		if j.Parent >= i {
			return nil, fmt.Errorf("%w: joint %q appears before its parent", ErrInvalidSkeleton, j.Name)
		}
		if j.Parent < -1 {
			j.Parent = -1
		}

		j.Index = i
		if j.Bind.Rotation.Len() == 0 {
			j.Bind.Rotation = mgl64.QuatIdent()
		}
		if j.Bind.Scale == (mgl64.Vec3{}) {
			j.Bind.Scale = mgl64.Vec3{1, 1, 1}
		}

		s.joints[i] = j
		s.byName[j.Name] = i
		if j.Parent >= 0 {
			s.children[j.Parent] = append(s.children[j.Parent], i)
		}
	}

	return s, nil
}

// ID returns the skeleton identifier used to look up its retargeting map.
func (s *Skeleton) ID() string {
	return s.id
}

// Len returns the number of joints.
func (s *Skeleton) Len() int {
	return len(s.joints)
}

// Joint returns the joint at index i.
func (s *Skeleton) Joint(i int) Joint {
	return s.joints[i]
}

// JointByName looks up a joint by name.
func (s *Skeleton) JointByName(name string) (Joint, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Joint{}, false
	}
	return s.joints[i], true
}

// Joints returns a copy of all joints in order.
func (s *Skeleton) Joints() []Joint {
	out := make([]Joint, len(s.joints))
	copy(out, s.joints)
	return out
}

// Roots returns the indices of all parentless joints.
func (s *Skeleton) Roots() []int {
	var roots []int
	for _, j := range s.joints {
		if j.IsRoot() {
			roots = append(roots, j.Index)
		}
	}
	return roots
}

// Children returns the direct children of joint i.
func (s *Skeleton) Children(i int) []int {
	return append([]int(nil), s.children[i]...)
}

// BindPose returns the bind-pose local transforms indexed by joint.
func (s *Skeleton) BindPose() []Transform {
	out := make([]Transform, len(s.joints))
	for i, j := range s.joints {
		out[i] = j.Bind
	}
	return out
}
