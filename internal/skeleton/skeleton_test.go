package skeleton

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const armYAML = `
id: arm
joints:
  - name: Root
    translation: [0, 1, 0]
  - name: UpperArm
    parent: Root
    translation: [0.1, 0, 0]
    rotation: [0, 0, 0.7071068, 0.7071068]
  - name: LowerArm
    parent: UpperArm
    translation: [0.25, 0, 0]
    scale: [2, 2, 2]
`

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		joints []Joint
	}{
		{name: "no joints", joints: nil},
		{name: "empty name", joints: []Joint{{Name: "", Parent: -1}}},
		{name: "duplicate name", joints: []Joint{{Name: "A", Parent: -1}, {Name: "A", Parent: 0}}},
		{name: "parent after child", joints: []Joint{{Name: "A", Parent: 1}, {Name: "B", Parent: -1}}},
		{name: "self parent", joints: []Joint{{Name: "A", Parent: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("test", tt.joints)
			if !errors.Is(err, ErrInvalidSkeleton) {
				t.Errorf("New() error = %v, want ErrInvalidSkeleton", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New("pair", []Joint{
		{Name: "Root", Parent: -1},
		{Name: "Child", Parent: 0, Bind: Transform{Translation: mgl64.Vec3{0, 1, 0}}},
	})
	require.NoError(t, err)

	child, ok := s.JointByName("Child")
	require.True(t, ok)
	assert.Equal(t, 1, child.Index)
	assert.Equal(t, mgl64.QuatIdent(), child.Bind.Rotation, "zero rotation defaults to identity")
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, child.Bind.Scale, "zero scale defaults to one")

	assert.Equal(t, []int{0}, s.Roots())
	assert.Equal(t, []int{1}, s.Children(0))
	assert.Equal(t, "pair", s.ID())

	_, ok = s.JointByName("Missing")
	assert.False(t, ok)
}

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(armYAML), "ignored")
	require.NoError(t, err)

	assert.Equal(t, "arm", s.ID(), "document id wins over the fallback")
	require.Equal(t, 3, s.Len())

	upper := s.Joint(1)
	assert.Equal(t, "UpperArm", upper.Name)
	assert.Equal(t, 0, upper.Parent)
	rotated := upper.Bind.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	assert.True(t, rotated.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-6), "got %v", rotated)

	lower := s.Joint(2)
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, lower.Bind.Scale)
	assert.Equal(t, mgl64.Vec3{0.25, 0, 0}, lower.Bind.Translation)
}

func TestParseYAML_UnknownParent(t *testing.T) {
	_, err := ParseYAML([]byte(`
joints:
  - {name: A, parent: B}
  - {name: B}
`), "x")
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arm_rig.yml")
	require.NoError(t, os.WriteFile(path, []byte("joints:\n  - {name: Root}\n"), 0644))

	s, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "arm_rig", s.ID(), "id defaults to the file name")

	_, err = Load(filepath.Join(dir, "rig.fbx"), "")
	assert.Error(t, err)
}

func TestLoad_AvatarAsset(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "assets", "skeletons", "avatar_rigged.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, "avatar_rigged", s.ID())
	assert.Equal(t, 19, s.Len())
	for _, name := range []string{"Hips", "LeftUpperArm", "RightLowerArm", "LeftFoot"} {
		_, ok := s.JointByName(name)
		assert.True(t, ok, "missing joint %s", name)
	}
}

func TestFromGLTF(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "Armature", Children: []int{1}},
			{Name: "Hips", Children: []int{2}, Translation: [3]float64{0, 1, 0}, Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{1, 1, 1}},
			{Name: "Spine", Translation: [3]float64{0, 0.2, 0}, Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{1, 1, 1}},
		},
		// Child listed before parent on purpose.
		Skins: []*gltf.Skin{{Joints: []int{2, 1}}},
	}

	s, err := fromGLTF(doc, "rig")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	assert.Equal(t, "Hips", s.Joint(0).Name)
	assert.True(t, s.Joint(0).IsRoot(), "Armature is not a joint, so Hips is a root")
	assert.Equal(t, "Spine", s.Joint(1).Name)
	assert.Equal(t, 0, s.Joint(1).Parent)
	assert.Equal(t, mgl64.Vec3{0, 0.2, 0}, s.Joint(1).Bind.Translation)
}

func TestFromGLTF_NoSkin(t *testing.T) {
	_, err := fromGLTF(&gltf.Document{}, "empty")
	assert.True(t, errors.Is(err, ErrInvalidSkeleton))
}

func TestNodeTransform_Matrix(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3).Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(90))).Mul4(mgl64.Scale3D(2, 2, 2))

	tr := nodeTransform([3]float64{}, [4]float64{}, [3]float64{}, [16]float64(m))

	assert.True(t, tr.Translation.ApproxEqual(mgl64.Vec3{1, 2, 3}))
	assert.True(t, tr.Scale.ApproxEqualThreshold(mgl64.Vec3{2, 2, 2}, 1e-9))
	rotated := tr.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	assert.True(t, rotated.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9), "got %v", rotated)
}
