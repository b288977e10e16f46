package entry

import (
	"iter"
	"slices"
)

// Tree is the result of one generation run.
type Tree struct {
	base   string
	seed   uint64
	levels [][]*Entry
}

// Base returns the base DN root entries were placed under.
func (t *Tree) Base() string {
	return t.base
}

// Seed returns the seed the run was generated with.
func (t *Tree) Seed() uint64 {
	return t.seed
}

// Roots returns the level 0 entries.
func (t *Tree) Roots() []*Entry {
	return t.Level(0)
}

// Depth returns the number of levels in the tree.
func (t *Tree) Depth() int {
	return len(t.levels)
}

// Level returns the entries of level i in breadth-first order: grouped by
// parent, parents in the order of the previous level.
func (t *Tree) Level(i int) []*Entry {
	if i < 0 || i >= len(t.levels) {
		return nil
	}
	return slices.Clone(t.levels[i])
}

// Len returns the total number of entries.
func (t *Tree) Len() int {
	n := 0
	for _, level := range t.levels {
		n += len(level)
	}
	return n
}

// Walk visits every entry depth first, each parent before its children.
func (t *Tree) Walk(fn func(*Entry) error) error {
	for _, root := range t.Roots() {
		if err := root.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// All yields every entry level by level. A parent is always yielded before
// its children, which is the order a directory server accepts adds in.
func (t *Tree) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, level := range t.levels {
			for _, e := range level {
				if !yield(e) {
					return
				}
			}
		}
	}
}
