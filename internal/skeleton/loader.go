package skeleton

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"gopkg.in/yaml.v3"
)

// Load reads a skeleton asset. glTF (.gltf, .glb) and YAML (.yaml, .yml) files are supported.
// If id is empty the file name without extension is used.
func Load(path, id string) (*Skeleton, error) {
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return LoadGLTF(path, id)
	case ".yaml", ".yml":
		return LoadYAML(path, id)
	default:
		return nil, fmt.Errorf("unsupported skeleton asset %q", path)
	}
}

// yamlSkeleton is the on-disk YAML layout of a skeleton.
type yamlSkeleton struct {
	ID     string      `yaml:"id"`
	Joints []yamlJoint `yaml:"joints"`
}

type yamlJoint struct {
	Name        string     `yaml:"name"`
	Parent      string     `yaml:"parent,omitempty"`
	Translation [3]float64 `yaml:"translation,flow"`
	Rotation    []float64  `yaml:"rotation,flow,omitempty"` // x, y, z, w
	Scale       []float64  `yaml:"scale,flow,omitempty"`
}

// LoadYAML reads a skeleton from a YAML joint list. Joints are listed parents first and
// reference their parent by name.
func LoadYAML(path, id string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skeleton: %w", err)
	}
	return ParseYAML(data, id)
}

// ParseYAML decodes a YAML skeleton document.
func ParseYAML(data []byte, id string) (*Skeleton, error) {
	var doc yamlSkeleton
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse skeleton: %w", err)
	}
	if doc.ID != "" {
		id = doc.ID
	}

	index := make(map[string]int, len(doc.Joints))
	joints := make([]Joint, 0, len(doc.Joints))
	for i, yj := range doc.Joints {
		parent := -1
		if yj.Parent != "" {
			p, ok := index[yj.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: joint %q references unknown or later parent %q", ErrInvalidSkeleton, yj.Name, yj.Parent)
			}
			parent = p
		}

		bind := IdentityTransform()
		bind.Translation = mgl64.Vec3(yj.Translation)
		if len(yj.Rotation) == 4 {
			bind.Rotation = mgl64.Quat{W: yj.Rotation[3], V: mgl64.Vec3{yj.Rotation[0], yj.Rotation[1], yj.Rotation[2]}}.Normalize()
		}
		if len(yj.Scale) == 3 {
			bind.Scale = mgl64.Vec3{yj.Scale[0], yj.Scale[1], yj.Scale[2]}
		}

		index[yj.Name] = i
		joints = append(joints, Joint{Name: yj.Name, Parent: parent, Bind: bind})
	}

	return New(id, joints)
}

// LoadGLTF reads the first skin of a glTF or GLB asset. The joint hierarchy follows the
// node tree; bind-pose transforms come from the nodes' TRS (or matrix) properties.
func LoadGLTF(path, id string) (*Skeleton, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return fromGLTF(doc, id)
}

func fromGLTF(doc *gltf.Document, id string) (*Skeleton, error) {
	if len(doc.Skins) == 0 {
		return nil, fmt.Errorf("%w: %s has no skin", ErrInvalidSkeleton, id)
	}
	skin := doc.Skins[0]

	nodeParent := make(map[int]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			nodeParent[int(c)] = i
		}
	}

	isJoint := make(map[int]bool, len(skin.Joints))
	for _, j := range skin.Joints {
		isJoint[int(j)] = true
	}

	// nearest ancestor that is also a joint of this skin
	jointParent := func(node int) int {
		p, ok := nodeParent[node]
		for ok {
			if isJoint[p] {
				return p
			}
			p, ok = nodeParent[p]
		}
		return -1
	}

	// Emit joints parents-first while keeping the skin order otherwise.
	order := make([]int, 0, len(skin.Joints))
	placed := make(map[int]int, len(skin.Joints))
	var place func(node int)
	place = func(node int) {
		if _, ok := placed[node]; ok {
			return
		}
		if p := jointParent(node); p >= 0 {
			place(p)
		}
		placed[node] = len(order)
		order = append(order, node)
	}
	for _, j := range skin.Joints {
		place(int(j))
	}

	joints := make([]Joint, len(order))
	for i, node := range order {
		n := doc.Nodes[node]
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("joint_%d", node)
		}
		parent := -1
		if p := jointParent(node); p >= 0 {
			parent = placed[p]
		}
		joints[i] = Joint{
			Name:   name,
			Parent: parent,
			Bind:   nodeTransform(n.Translation, n.Rotation, n.Scale, n.Matrix),
		}
	}

	return New(id, joints)
}

func nodeTransform(t [3]float64, r [4]float64, s [3]float64, m [16]float64) Transform {
	mat := mgl64.Mat4(m)
	if mat != (mgl64.Mat4{}) && mat != mgl64.Ident4() {
		return Transform{
			Translation: mat.Col(3).Vec3(),
			Rotation:    mgl64.Mat4ToQuat(normalizeBasis(mat)),
			Scale:       mgl64.Vec3{mat.Col(0).Vec3().Len(), mat.Col(1).Vec3().Len(), mat.Col(2).Vec3().Len()},
		}
	}

	tr := IdentityTransform()
	tr.Translation = mgl64.Vec3(t)
	if r != ([4]float64{}) {
		tr.Rotation = mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
	}
	if s != ([3]float64{}) {
		tr.Scale = mgl64.Vec3(s)
	}
	return tr
}

// normalizeBasis strips scale from the upper 3x3 so the rotation can be extracted.
func normalizeBasis(m mgl64.Mat4) mgl64.Mat4 {
	for c := 0; c < 3; c++ {
		col := m.Col(c).Vec3()
		if l := col.Len(); l > 0 {
			col = col.Mul(1 / l)
		}
		m.SetCol(c, col.Vec4(0))
	}
	m.SetCol(3, mgl64.Vec4{0, 0, 0, 1})
	return m
}
