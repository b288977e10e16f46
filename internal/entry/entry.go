package entry

import (
	"slices"
	"strings"
)

// Value is one resolved attribute of an entry.
type Value struct {
	Name  string
	Value string
}

// Entry is one generated directory record. Entries are immutable once the
// tree that holds them has been built.
type Entry struct {
	template *Template
	values   []Value
	rdn      string
	dn       string
	level    int
	index    int

	// parent is a non-owning back reference; children are owned.
	parent   *Entry
	children []*Entry
}

// Template returns the template the entry was generated from.
func (e *Entry) Template() *Template {
	return e.template
}

// ObjectClass returns the name of the entry's template.
func (e *Entry) ObjectClass() string {
	return e.template.name
}

// Values returns the resolved attributes in template declaration order.
func (e *Entry) Values() []Value {
	return slices.Clone(e.values)
}

// Get returns the value of the named attribute. Names match case-insensitively.
func (e *Entry) Get(name string) (string, bool) {
	for _, v := range e.values {
		if strings.EqualFold(v.Name, name) {
			return v.Value, true
		}
	}
	return "", false
}

// RDN returns the value of the template's RDN attribute.
func (e *Entry) RDN() string {
	return e.rdn
}

// DN returns the distinguished name, including the base DN of the build.
func (e *Entry) DN() string {
	return e.dn
}

// Parent returns the parent entry, or nil at the root level.
func (e *Entry) Parent() *Entry {
	return e.parent
}

// Children returns the child entries in generation order.
func (e *Entry) Children() []*Entry {
	return slices.Clone(e.children)
}

// Level returns the hierarchy level of the entry, 0 for root entries.
func (e *Entry) Level() int {
	return e.level
}

// Index returns the position of the entry among its siblings.
func (e *Entry) Index() int {
	return e.index
}

// Walk calls fn for e and then, depth first, for all of its descendants.
// Returning an error from fn stops the walk.
func (e *Entry) Walk(fn func(*Entry) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
