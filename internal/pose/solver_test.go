package pose

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/retarget"
	"github.com/ayusman/minime/internal/skeleton"
	"github.com/ayusman/minime/internal/tracking"
)

func avatarSolver(t *testing.T) *Solver {
	t.Helper()
	skel, err := skeleton.Load(filepath.Join("..", "..", "assets", "skeletons", "avatar_rigged.yaml"), "")
	require.NoError(t, err)
	s, err := NewSolver(retarget.AvatarRiggedMap(), skel)
	require.NoError(t, err)
	return s
}

func frameOf(t *testing.T, points []landmark.Landmark) *landmark.Frame {
	t.Helper()
	f, err := landmark.NewFrame(points, 40*time.Millisecond)
	require.NoError(t, err)
	return f
}

func TestNewSolver_ConfigError(t *testing.T) {
	skel, err := skeleton.New("stub", []skeleton.Joint{{Name: "Hips", Parent: -1}})
	require.NoError(t, err)

	_, err = NewSolver(retarget.AvatarRiggedMap(), skel)
	var cfgErr *retarget.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Contains(t, cfgErr.MissingJoints, "LeftUpperArm")
	assert.NotContains(t, cfgErr.MissingJoints, "Hips")
}

func TestSolve_DirectScenario(t *testing.T) {
	skel, err := skeleton.New("shoulders", []skeleton.Joint{
		{Name: "Root", Parent: -1},
		{Name: "LeftShoulder", Parent: 0},
	})
	require.NoError(t, err)
	m, err := retarget.NewMap("shoulders", retarget.IdentityAffine(), []retarget.Rule{
		{Mode: retarget.Direct, Joint: "LeftShoulder", From: landmark.LeftShoulder},
	})
	require.NoError(t, err)
	s, err := NewSolver(m, skel)
	require.NoError(t, err)

	points := make([]landmark.Landmark, landmark.NumLandmarks)
	points[landmark.LeftShoulder] = landmark.Landmark{X: 0.3, Y: 0.4, Z: 0}
	points[landmark.RightShoulder] = landmark.Landmark{X: 0.7, Y: 0.4, Z: 0}

	pf, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)

	require.Equal(t, 1, pf.Len())
	tr, ok := pf.Get("LeftShoulder")
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0.3, 0.4, 0}, tr.Translation)
	assert.Equal(t, mgl64.QuatIdent(), tr.Rotation, "direct rules keep the bind rotation")

	_, ok = pf.Get("Root")
	assert.False(t, ok, "joints without a rule have no entry")
}

func TestSolve_NothingPublished(t *testing.T) {
	s := avatarSolver(t)
	buf := tracking.NewBuffer()

	frame, ok := buf.Read()
	require.False(t, ok)

	pf, err := s.Solve(frame)
	require.NoError(t, err)
	assert.Equal(t, 0, pf.Len())

	skel := s.Skeleton()
	assert.Equal(t, skel.BindPose(), pf.Apply(skel), "an empty pose leaves the skeleton in bind pose")
	assert.Equal(t, uint64(1), s.Stats().Empty)
}

func TestSolve_ContractViolation(t *testing.T) {
	s := avatarSolver(t)

	_, err := s.Solve(&landmark.Frame{Points: make([]landmark.Landmark, 17)})
	assert.True(t, errors.Is(err, landmark.ErrContractViolation))
}

func TestSolve_Idempotent(t *testing.T) {
	s := avatarSolver(t)
	f := frameOf(t, landmark.ArmsUpPoints())

	first, err := s.Solve(f)
	require.NoError(t, err)
	second, err := s.Solve(f)
	require.NoError(t, err)

	assert.Equal(t, first.Joints(), second.Joints())
	assert.Zero(t, s.Stats().Degenerate)
	assert.Equal(t, uint64(2), s.Stats().Solves)
}

func TestSolve_TPoseIsBindPose(t *testing.T) {
	s := avatarSolver(t)

	pf, err := s.Solve(frameOf(t, landmark.TPosePoints()))
	require.NoError(t, err)
	assert.Equal(t, 13, pf.Len())

	for _, name := range []string{"LeftUpperArm", "LeftLowerArm", "RightUpperArm", "RightLowerArm", "LeftUpperLeg", "RightUpperLeg"} {
		tr, ok := pf.Get(name)
		require.True(t, ok, name)
		assert.True(t, tr.Rotation.ApproxEqualThreshold(mgl64.QuatIdent(), 1e-9), "%s rotation %v", name, tr.Rotation)
	}

	hips, ok := pf.Get("Hips")
	require.True(t, ok)
	assert.True(t, hips.Translation.ApproxEqualThreshold(mgl64.Vec3{0, 0.9, 0}, 1e-9), "got %v", hips.Translation)
}

func TestSolve_ArmsUpRotatesForearms(t *testing.T) {
	s := avatarSolver(t)

	pf, err := s.Solve(frameOf(t, landmark.ArmsUpPoints()))
	require.NoError(t, err)

	up := mgl64.Vec3{0, 1, 0}

	left, ok := pf.Get("LeftLowerArm")
	require.True(t, ok)
	got := left.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	assert.True(t, got.ApproxEqualThreshold(up, 1e-9), "left forearm points %v", got)

	right, ok := pf.Get("RightLowerArm")
	require.True(t, ok)
	got = right.Rotation.Rotate(mgl64.Vec3{-1, 0, 0})
	assert.True(t, got.ApproxEqualThreshold(up, 1e-9), "right forearm points %v", got)

	upper, ok := pf.Get("LeftUpperArm")
	require.True(t, ok)
	assert.True(t, upper.Rotation.ApproxEqualThreshold(mgl64.QuatIdent(), 1e-9), "upper arm stays level")
}

func TestSolve_ChildDirectionIsParentRelative(t *testing.T) {
	s := avatarSolver(t)

	// Whole arm raised straight up: the forearm is aligned with its parent, so it needs no
	// rotation of its own.
	points := landmark.TPosePoints()
	sh := points[landmark.LeftShoulder]
	points[landmark.LeftElbow] = landmark.Landmark{X: sh.X, Y: sh.Y - 0.12, Z: sh.Z, Visibility: 0.99}
	points[landmark.LeftWrist] = landmark.Landmark{X: sh.X, Y: sh.Y - 0.24, Z: sh.Z, Visibility: 0.99}
	points[landmark.LeftIndex] = landmark.Landmark{X: sh.X, Y: sh.Y - 0.28, Z: sh.Z, Visibility: 0.99}

	pf, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)

	upper, _ := pf.Get("LeftUpperArm")
	got := upper.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9), "upper arm points %v", got)

	lower, _ := pf.Get("LeftLowerArm")
	assert.True(t, lower.Rotation.ApproxEqualThreshold(mgl64.QuatIdent(), 1e-9), "forearm rotation %v", lower.Rotation)
}

func TestSolve_CoincidentLandmarksHoldRotation(t *testing.T) {
	s := avatarSolver(t)

	before, err := s.Solve(frameOf(t, landmark.ArmsUpPoints()))
	require.NoError(t, err)
	held, _ := before.Get("LeftLowerArm")

	points := landmark.ArmsUpPoints()
	points[landmark.LeftWrist] = points[landmark.LeftElbow]

	after, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)

	got, ok := after.Get("LeftLowerArm")
	require.True(t, ok)
	assert.Equal(t, held.Rotation, got.Rotation)
	assert.Equal(t, uint64(1), s.Stats().Degenerate)
}

func TestSolve_DegenerateBeforeAnyRotationUsesBind(t *testing.T) {
	s := avatarSolver(t)

	points := landmark.TPosePoints()
	points[landmark.RightWrist] = points[landmark.RightElbow]

	pf, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)

	bind, _ := s.Skeleton().JointByName("RightLowerArm")
	got, _ := pf.Get("RightLowerArm")
	assert.Equal(t, bind.Bind.Rotation, got.Rotation)
}

func TestSolve_LowVisibilityHolds(t *testing.T) {
	s := avatarSolver(t)

	before, err := s.Solve(frameOf(t, landmark.ArmsUpPoints()))
	require.NoError(t, err)
	held, _ := before.Get("RightLowerArm")

	points := landmark.TPosePoints()
	points[landmark.RightWrist].Visibility = 0.1

	after, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)

	got, _ := after.Get("RightLowerArm")
	assert.Equal(t, held.Rotation, got.Rotation)
	assert.NotZero(t, s.Stats().Occluded)

	s.Reset()
	after, err = s.Solve(frameOf(t, points))
	require.NoError(t, err)
	got, _ = after.Get("RightLowerArm")
	assert.Equal(t, mgl64.QuatIdent(), got.Rotation, "reset falls back to bind pose")
}

func TestSolve_DetectorWithoutVisibility(t *testing.T) {
	// Strip visibility and presence the way a detector that does not report them would.
	var bare []map[string]float64
	for _, p := range landmark.ArmsUpPoints() {
		bare = append(bare, map[string]float64{"x": p.X, "y": p.Y, "z": p.Z})
	}
	data, err := json.Marshal(bare)
	require.NoError(t, err)

	var points []landmark.Landmark
	require.NoError(t, json.Unmarshal(data, &points))

	s := avatarSolver(t)
	pf, err := s.Solve(frameOf(t, points))
	require.NoError(t, err)
	assert.Zero(t, s.Stats().Occluded, "unreported visibility must not gate rules")

	left, ok := pf.Get("LeftLowerArm")
	require.True(t, ok)
	got := left.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9), "left forearm points %v", got)
}
