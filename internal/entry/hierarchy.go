package entry

import (
	"fmt"
	"math"
	"slices"
)

// Level is one step of a hierarchy: Count entries of Template are generated
// under every entry of the previous level, or Count root entries at level 0.
type Level struct {
	Template *Template
	Count    int
}

// Hierarchy is a validated, ordered sequence of levels. Index 0 is the root.
type Hierarchy struct {
	levels []Level
}

// NewHierarchy pairs the template names of a hierarchy with their counts.
// Every name must be present in templates and both sequences must have the
// same length.
func NewHierarchy(templates map[string]*Template, names []string, counts []int) (*Hierarchy, error) {
	if len(names) == 0 {
		return nil, configErrorf("hierarchy", "at least one level is required")
	}
	if len(names) != len(counts) {
		return nil, configErrorf("hierarchy", "%d levels but %d counts", len(names), len(counts))
	}

	levels := make([]Level, len(names))
	for i, name := range names {
		subject := fmt.Sprintf("hierarchy level %d", i)
		tmpl, ok := templates[name]
		if !ok || tmpl == nil {
			return nil, configErrorf(subject, "unknown object class %q", name)
		}
		if counts[i] < 0 {
			return nil, configErrorf(subject, "count %d is negative", counts[i])
		}
		levels[i] = Level{Template: tmpl, Count: counts[i]}
	}

	h := &Hierarchy{levels: levels}
	if _, err := h.total(); err != nil {
		return nil, err
	}
	return h, nil
}

// Levels returns the hierarchy levels, root first.
func (h *Hierarchy) Levels() []Level {
	return slices.Clone(h.levels)
}

// Depth returns the number of levels.
func (h *Hierarchy) Depth() int {
	return len(h.levels)
}

// LevelSize returns the number of entries generated at level i, the product
// of the counts of levels 0 through i.
func (h *Hierarchy) LevelSize(i int) int {
	size := 1
	for _, level := range h.levels[:i+1] {
		size *= level.Count
	}
	return size
}

// Total returns the number of entries across all levels.
func (h *Hierarchy) Total() int {
	total, _ := h.total()
	return total
}

func (h *Hierarchy) total() (int, error) {
	total, size := 0, 1
	for i, level := range h.levels {
		if level.Count != 0 && size > math.MaxInt/level.Count {
			return 0, configErrorf(fmt.Sprintf("hierarchy level %d", i), "entry count overflows")
		}
		size *= level.Count
		if total > math.MaxInt-size {
			return 0, configErrorf(fmt.Sprintf("hierarchy level %d", i), "entry count overflows")
		}
		total += size
	}
	return total, nil
}
