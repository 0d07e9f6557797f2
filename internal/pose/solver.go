package pose

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/retarget"
	"github.com/ayusman/minime/internal/skeleton"
)

// Epsilon is the shortest LookAt direction that still defines a rotation.
const Epsilon = 1e-6

// Stats counts solver activity since creation.
type Stats struct {
	Solves     uint64 `json:"solves"`
	Empty      uint64 `json:"empty"`
	Degenerate uint64 `json:"degenerate"`
	Occluded   uint64 `json:"occluded"`
}

// Solver evaluates a retarget map against landmark frames for one skeleton.
//
// Solve is a function of the frame and the map except for joints whose LookAt direction is
// degenerate or whose landmarks are not visible enough: those hold the value from the last
// successful solve, starting at bind pose.
type Solver struct {
	m    *retarget.Map
	skel *skeleton.Skeleton

	// rules grouped by target joint index, map order within a joint
	byJoint [][]retarget.Rule
	driven  []int

	mu    sync.Mutex
	rot   []mgl64.Quat
	trans []mgl64.Vec3

	solves     atomic.Uint64
	empty      atomic.Uint64
	degenerate atomic.Uint64
	occluded   atomic.Uint64
}

// NewSolver binds m to skel. It fails with a *retarget.ConfigError if any rule names a joint
// the skeleton lacks.
func NewSolver(m *retarget.Map, skel *skeleton.Skeleton) (*Solver, error) {
	if err := m.Bind(skel); err != nil {
		return nil, err
	}

	s := &Solver{
		m:       m,
		skel:    skel,
		byJoint: make([][]retarget.Rule, skel.Len()),
	}
	for _, r := range m.Rules() {
		if r.Mode == retarget.Skip {
			continue
		}
		j, _ := skel.JointByName(r.Joint)
		s.byJoint[j.Index] = append(s.byJoint[j.Index], r)
	}
	for i, rules := range s.byJoint {
		if len(rules) > 0 {
			s.driven = append(s.driven, i)
		}
	}
	s.resetLocked()
	return s, nil
}

// Skeleton returns the bound skeleton.
func (s *Solver) Skeleton() *skeleton.Skeleton {
	return s.skel
}

// Map returns the retarget map in use.
func (s *Solver) Map() *retarget.Map {
	return s.m
}

// Solve computes the pose for frame. A nil or empty frame yields a PoseFrame with no entries.
// A frame with the wrong landmark count fails with landmark.ErrContractViolation.
func (s *Solver) Solve(frame *landmark.Frame) (*PoseFrame, error) {
	if frame.Empty() {
		s.empty.Add(1)
		return newPoseFrame(frameTime(frame), nil), nil
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affine := s.m.Affine()
	n := s.skel.Len()
	global := make([]mgl64.Quat, n)
	local := make([]mgl64.Quat, n)
	entries := make([]JointPose, 0, len(s.driven))

	for i := 0; i < n; i++ {
		j := s.skel.Joint(i)
		local[i] = j.Bind.Rotation
		rules := s.byJoint[i]

		var parentGlobal mgl64.Quat
		if j.IsRoot() {
			parentGlobal = mgl64.QuatIdent()
		} else {
			parentGlobal = global[j.Parent]
		}

		if len(rules) > 0 {
			tr := j.Bind
			tr.Translation = s.trans[i]
			tr.Rotation = s.rot[i]

			for _, r := range rules {
				if !visible(frame, r) {
					s.occluded.Add(1)
					continue
				}
				switch r.Mode {
				case retarget.Direct:
					tr.Translation = directTranslation(affine, frame, r)
					s.trans[i] = tr.Translation
				case retarget.LookAt:
					d := affine.ApplyDirection(frame.At(r.From), frame.At(r.To))
					if d.Len() < Epsilon {
						s.degenerate.Add(1)
						continue
					}
					// direction in the parent's frame
					d = parentGlobal.Inverse().Rotate(d).Normalize()
					bind := j.Bind.Rotation
					tr.Rotation = mgl64.QuatBetweenVectors(bind.Rotate(r.Axis()), d).Mul(bind).Normalize()
					s.rot[i] = tr.Rotation
				}
			}

			local[i] = tr.Rotation
			entries = append(entries, JointPose{Joint: j.Name, Index: i, Transform: tr})
		}

		global[i] = parentGlobal.Mul(local[i])
	}

	s.solves.Add(1)
	return newPoseFrame(frame.Timestamp, entries), nil
}

// Reset forgets held rotations and translations so the next degenerate rule falls back to
// bind pose.
func (s *Solver) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Solver) resetLocked() {
	n := s.skel.Len()
	s.rot = make([]mgl64.Quat, n)
	s.trans = make([]mgl64.Vec3, n)
	for i := 0; i < n; i++ {
		bind := s.skel.Joint(i).Bind
		s.rot[i] = bind.Rotation
		s.trans[i] = bind.Translation
	}
}

// Stats returns a snapshot of the solver counters.
func (s *Solver) Stats() Stats {
	return Stats{
		Solves:     s.solves.Load(),
		Empty:      s.empty.Load(),
		Degenerate: s.degenerate.Load(),
		Occluded:   s.occluded.Load(),
	}
}

func directTranslation(a retarget.Affine, frame *landmark.Frame, r retarget.Rule) mgl64.Vec3 {
	p := a.Apply(frame.At(r.From))
	if r.HasTo {
		p = p.Add(a.Apply(frame.At(r.To))).Mul(0.5)
	}
	return p
}

func visible(frame *landmark.Frame, r retarget.Rule) bool {
	if r.MinVisibility <= 0 {
		return true
	}
	for _, i := range r.Landmarks() {
		if frame.At(i).Visibility < r.MinVisibility {
			return false
		}
	}
	return true
}

func frameTime(f *landmark.Frame) (ts time.Duration) {
	if f != nil {
		ts = f.Timestamp
	}
	return ts
}
