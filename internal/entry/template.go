package entry

import (
	"slices"
	"strings"

	"github.com/isometry/ldapfill/internal/modifier"
	"github.com/isometry/ldapfill/internal/source"
)

// Attribute is one attribute definition of a template.
type Attribute struct {
	Name string
	Expr modifier.Expr
}

// Template describes how entries of one object class are generated.
// Templates are immutable and shared by every entry built from them.
type Template struct {
	name          string
	objectClasses []string
	rdn           string
	attributes    []Attribute
}

// NewTemplate validates and builds a template. Attribute names are compared
// case-insensitively, as LDAP does. rdn must name one of attributes.
// When objectClasses is empty the entry's objectClass values default to name.
func NewTemplate(name, rdn string, attributes []Attribute, objectClasses ...string) (*Template, error) {
	if name == "" {
		return nil, configErrorf("", "object class name cannot be empty")
	}
	subject := "object class " + name

	if len(attributes) == 0 {
		return nil, configErrorf(subject, "no attributes defined")
	}

	seen := make(map[string]bool, len(attributes))
	for _, attr := range attributes {
		if attr.Name == "" {
			return nil, configErrorf(subject, "attribute name cannot be empty")
		}
		if attr.Expr == nil {
			return nil, configErrorf(subject, "attribute %s has no expression", attr.Name)
		}
		key := strings.ToLower(attr.Name)
		if seen[key] {
			return nil, configErrorf(subject, "attribute %s is defined more than once", attr.Name)
		}
		seen[key] = true
	}

	if rdn == "" {
		return nil, configErrorf(subject, "RDN attribute is not set")
	}
	rdnIndex := slices.IndexFunc(attributes, func(a Attribute) bool {
		return strings.EqualFold(a.Name, rdn)
	})
	if rdnIndex < 0 {
		return nil, configErrorf(subject, "RDN attribute %s is not one of its attributes", rdn)
	}

	if len(objectClasses) == 0 {
		objectClasses = []string{name}
	}
	for _, oc := range objectClasses {
		if strings.TrimSpace(oc) == "" {
			return nil, configErrorf(subject, "objectClass values cannot be empty")
		}
	}

	return &Template{
		name:          name,
		objectClasses: slices.Clone(objectClasses),
		rdn:           attributes[rdnIndex].Name,
		attributes:    slices.Clone(attributes),
	}, nil
}

// Name returns the object class name the template is registered under.
func (t *Template) Name() string {
	return t.name
}

// ObjectClasses returns the objectClass values written for each entry.
func (t *Template) ObjectClasses() []string {
	return slices.Clone(t.objectClasses)
}

// RDN returns the name of the attribute that names entries of this template.
func (t *Template) RDN() string {
	return t.rdn
}

// Attributes returns the attribute definitions in declaration order.
func (t *Template) Attributes() []Attribute {
	return slices.Clone(t.attributes)
}

// AttributeNames returns the attribute names in declaration order.
func (t *Template) AttributeNames() []string {
	names := make([]string, len(t.attributes))
	for i, attr := range t.attributes {
		names[i] = attr.Name
	}
	return names
}

// Sources returns the distinct value sources the template reads from.
func (t *Template) Sources() []*source.Source {
	var out []*source.Source
	for _, attr := range t.attributes {
		for _, src := range modifier.Sources(attr.Expr) {
			if !slices.Contains(out, src) {
				out = append(out, src)
			}
		}
	}
	return out
}
