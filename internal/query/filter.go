package query

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/isometry/ldapfill/internal/ldap"
)

// placeholder matches {attribute} in a filter template.
var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9-]*)\}`)

// Filter is a weighted search filter template. Each {attribute}
// placeholder is replaced by a value of that attribute taken from one entry
// of ObjectClass.
type Filter struct {
	Template    string
	ObjectClass string
	Scope       ldap.SearchScope
	Weight      float64

	attrs []string
}

// NewFilter validates template by compiling it with every placeholder
// filled in.
func NewFilter(template, objectClass, scope string, weight float64) (*Filter, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("filter template cannot be empty")
	}
	if objectClass == "" {
		return nil, fmt.Errorf("filter %s: object class is required", template)
	}
	if weight < 0 {
		return nil, fmt.Errorf("filter %s: weight cannot be negative", template)
	}

	s, err := ldap.ParseSearchScope(scope)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", template, err)
	}

	f := &Filter{
		Template:    template,
		ObjectClass: objectClass,
		Scope:       s,
		Weight:      weight,
	}
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !slices.ContainsFunc(f.attrs, func(a string) bool { return strings.EqualFold(a, m[1]) }) {
			f.attrs = append(f.attrs, m[1])
		}
	}

	if _, err := goldap.CompileFilter(f.expand(func(string) string { return "x" })); err != nil {
		return nil, fmt.Errorf("filter %s: %w", template, err)
	}
	return f, nil
}

// Attributes returns the placeholder attribute names in first use order.
func (f *Filter) Attributes() []string {
	return slices.Clone(f.attrs)
}

// expand replaces every placeholder with value(attr). value must return
// filter-escaped text.
func (f *Filter) expand(value func(attr string) string) string {
	return placeholder.ReplaceAllStringFunc(f.Template, func(m string) string {
		return value(m[1 : len(m)-1])
	})
}
