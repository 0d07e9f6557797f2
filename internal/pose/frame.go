// Package pose turns landmark frames into joint transforms for a bound skeleton.
package pose

import (
	"time"

	"github.com/ayusman/minime/internal/skeleton"
)

// JointPose is the solved local transform of one joint.
type JointPose struct {
	Joint     string
	Index     int
	Transform skeleton.Transform
}

// PoseFrame holds the joint transforms solved for one landmark frame, ordered by joint
// index. Joints without an entry stay in bind pose. A PoseFrame is never modified after
// Solve returns it.
type PoseFrame struct {
	Timestamp time.Duration

	joints []JointPose
	byName map[string]int
}

func newPoseFrame(ts time.Duration, joints []JointPose) *PoseFrame {
	f := &PoseFrame{
		Timestamp: ts,
		joints:    joints,
		byName:    make(map[string]int, len(joints)),
	}
	for i, j := range joints {
		f.byName[j.Joint] = i
	}
	return f
}

// Len returns the number of solved joints. Zero means the skeleton stays in bind pose.
func (f *PoseFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.joints)
}

// Get returns the solved transform for a joint.
func (f *PoseFrame) Get(joint string) (skeleton.Transform, bool) {
	if f == nil {
		return skeleton.Transform{}, false
	}
	i, ok := f.byName[joint]
	if !ok {
		return skeleton.Transform{}, false
	}
	return f.joints[i].Transform, true
}

// Joints returns a copy of the entries in joint order.
func (f *PoseFrame) Joints() []JointPose {
	if f == nil {
		return nil
	}
	out := make([]JointPose, len(f.joints))
	copy(out, f.joints)
	return out
}

// Apply returns the skeleton's bind pose with f's entries substituted, one transform per
// joint in skeleton order.
func (f *PoseFrame) Apply(s *skeleton.Skeleton) []skeleton.Transform {
	out := s.BindPose()
	if f == nil {
		return out
	}
	for _, j := range f.joints {
		if j.Index >= 0 && j.Index < len(out) {
			out[j.Index] = j.Transform
		}
	}
	return out
}
