package retarget

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/skeleton"
)

// ConfigError reports rules that reference joints the skeleton does not have.
type ConfigError struct {
	SkeletonID    string
	MissingJoints []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("retarget map for %q references joints missing from the skeleton: %s",
		e.SkeletonID, strings.Join(e.MissingJoints, ", "))
}

// Map is the retargeting table for one skeleton topology. It is immutable after NewMap and
// safe for concurrent use.
type Map struct {
	skeletonID string
	affine     Affine
	rules      []Rule
	byLandmark [landmark.NumLandmarks][]int
}

// NewMap validates rules and indexes them by landmark. Unset affine fields take the
// identity values.
func NewMap(skeletonID string, affine Affine, rules []Rule) (*Map, error) {
	if skeletonID == "" {
		return nil, fmt.Errorf("retarget map needs a skeleton id")
	}
	affine = affine.withDefaults()

	m := &Map{
		skeletonID: skeletonID,
		affine:     affine,
		rules:      make([]Rule, len(rules)),
	}
	copy(m.rules, rules)

	for i, r := range m.rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("map %q: %w", skeletonID, err)
		}
		for _, idx := range r.Landmarks() {
			m.byLandmark[idx] = append(m.byLandmark[idx], i)
		}
	}

	return m, nil
}

// SkeletonID returns the identifier of the skeleton this map was authored for.
func (m *Map) SkeletonID() string {
	return m.skeletonID
}

// Affine returns the normalized-camera to skeleton-local mapping.
func (m *Map) Affine() Affine {
	return m.affine
}

// Rules returns a copy of the rules in authoring order.
func (m *Map) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Resolve returns the rules that read landmark i. Indices outside the topology and
// landmarks without a rule yield nil.
func (m *Map) Resolve(i landmark.Index) []Rule {
	if !i.Valid() {
		return nil
	}
	ids := m.byLandmark[i]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Rule, len(ids))
	for k, id := range ids {
		out[k] = m.rules[id]
	}
	return out
}

// Joints returns the distinct joint names driven by the map, sorted.
func (m *Map) Joints() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range m.rules {
		if r.Mode == Skip || seen[r.Joint] {
			continue
		}
		seen[r.Joint] = true
		names = append(names, r.Joint)
	}
	sort.Strings(names)
	return names
}

// Bind checks every rule against the skeleton. All missing joints are reported together.
func (m *Map) Bind(s *skeleton.Skeleton) error {
	var missing []string
	seen := make(map[string]bool)
	for _, r := range m.rules {
		if r.Joint == "" || seen[r.Joint] {
			continue
		}
		seen[r.Joint] = true
		if _, ok := s.JointByName(r.Joint); !ok {
			missing = append(missing, r.Joint)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{SkeletonID: m.skeletonID, MissingJoints: missing}
	}
	return nil
}
