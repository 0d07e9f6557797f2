package retarget

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/minime/internal/landmark"
)

// ErrUnknownSkeleton is returned when no map is registered for a skeleton identifier.
var ErrUnknownSkeleton = errors.New("no retarget map for skeleton")

// Table holds retargeting maps keyed by skeleton identifier.
type Table struct {
	mu   sync.RWMutex
	maps map[string]*Map
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{maps: make(map[string]*Map)}
}

// Register adds or replaces the map for m's skeleton.
func (t *Table) Register(m *Map) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maps[m.SkeletonID()] = m
}

// Lookup returns the map for a skeleton.
func (t *Table) Lookup(skeletonID string) (*Map, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.maps[skeletonID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSkeleton, skeletonID)
	}
	return m, nil
}

// IDs returns the registered skeleton identifiers, sorted.
func (t *Table) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.maps))
	for id := range t.maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Definition is the serialized form of a Map used in YAML tables, the store and the API.
type Definition struct {
	Skeleton string           `yaml:"skeleton" json:"skeleton"`
	Affine   AffineDefinition `yaml:"affine" json:"affine"`
	Rules    []RuleDefinition `yaml:"rules" json:"rules"`
}

// AffineDefinition is the serialized form of an Affine.
type AffineDefinition struct {
	FlipX  bool       `yaml:"flip_x,omitempty" json:"flip_x"`
	FlipY  bool       `yaml:"flip_y,omitempty" json:"flip_y"`
	Scale  [2]float64 `yaml:"scale,flow" json:"scale"`
	Depth  float64    `yaml:"depth" json:"depth"`
	Offset [3]float64 `yaml:"offset,flow,omitempty" json:"offset"`
}

// RuleDefinition is the serialized form of a Rule. Landmarks are referenced by name.
type RuleDefinition struct {
	Joint         string    `yaml:"joint" json:"joint"`
	Mode          string    `yaml:"mode" json:"mode"`
	From          string    `yaml:"from" json:"from"`
	To            string    `yaml:"to,omitempty" json:"to,omitempty"`
	Forward       []float64 `yaml:"forward,flow,omitempty" json:"forward,omitempty"`
	MinVisibility float64   `yaml:"min_visibility,omitempty" json:"min_visibility,omitempty"`
}

// Build converts the definition into a validated Map.
func (d Definition) Build() (*Map, error) {
	rules := make([]Rule, 0, len(d.Rules))
	for i, rd := range d.Rules {
		mode, err := ParseMode(rd.Mode)
		if err != nil {
			return nil, fmt.Errorf("map %q rule %d: %w", d.Skeleton, i, err)
		}
		from, err := landmark.ParseIndex(rd.From)
		if err != nil {
			return nil, fmt.Errorf("map %q rule %d: %w", d.Skeleton, i, err)
		}
		r := Rule{
			Mode:          mode,
			Joint:         rd.Joint,
			From:          from,
			MinVisibility: rd.MinVisibility,
		}
		if rd.To != "" {
			to, err := landmark.ParseIndex(rd.To)
			if err != nil {
				return nil, fmt.Errorf("map %q rule %d: %w", d.Skeleton, i, err)
			}
			r.To = to
			r.HasTo = true
		}
		switch len(rd.Forward) {
		case 0:
		case 3:
			r.Forward = mgl64.Vec3{rd.Forward[0], rd.Forward[1], rd.Forward[2]}
		default:
			return nil, fmt.Errorf("map %q rule %d: forward needs 3 components", d.Skeleton, i)
		}
		rules = append(rules, r)
	}

	affine := Affine{
		FlipX:  d.Affine.FlipX,
		FlipY:  d.Affine.FlipY,
		Scale:  mgl64.Vec2(d.Affine.Scale),
		Depth:  d.Affine.Depth,
		Offset: mgl64.Vec3(d.Affine.Offset),
	}
	return NewMap(d.Skeleton, affine, rules)
}

// Define returns the serialized form of m.
func Define(m *Map) Definition {
	a := m.Affine()
	d := Definition{
		Skeleton: m.SkeletonID(),
		Affine: AffineDefinition{
			FlipX:  a.FlipX,
			FlipY:  a.FlipY,
			Scale:  [2]float64(a.Scale),
			Depth:  a.Depth,
			Offset: [3]float64(a.Offset),
		},
	}
	for _, r := range m.Rules() {
		rd := RuleDefinition{
			Joint:         r.Joint,
			Mode:          r.Mode.String(),
			From:          r.From.String(),
			MinVisibility: r.MinVisibility,
		}
		if r.HasTo {
			rd.To = r.To.String()
		}
		if r.Forward.Len() != 0 {
			rd.Forward = []float64{r.Forward[0], r.Forward[1], r.Forward[2]}
		}
		d.Rules = append(d.Rules, rd)
	}
	return d
}

type tableFile struct {
	Maps []Definition `yaml:"maps"`
}

// ParseTable decodes a YAML document with a top-level "maps" list.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse retarget table: %w", err)
	}

	t := NewTable()
	for _, d := range f.Maps {
		m, err := d.Build()
		if err != nil {
			return nil, err
		}
		t.Register(m)
	}
	return t, nil
}

// LoadTable reads a YAML retarget table from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read retarget table: %w", err)
	}
	return ParseTable(data)
}

// MarshalTable encodes every map of t as YAML.
func MarshalTable(t *Table) ([]byte, error) {
	var f tableFile
	for _, id := range t.IDs() {
		m, _ := t.Lookup(id)
		f.Maps = append(f.Maps, Define(m))
	}
	return yaml.Marshal(f)
}
