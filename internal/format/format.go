// Package format loads generation definitions: the object class templates,
// the hierarchy and per-level counts, and the value sources they reference.
package format

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/modifier"
	"github.com/isometry/ldapfill/internal/source"
)

const logSubsystem = "format"

// Definition is a loaded and fully validated format file.
type Definition struct {
	Path      string
	Base      string
	Templates map[string]*entry.Template
	Order     []string // Object classes in declaration order
	Hierarchy *entry.Hierarchy
	Sources   *source.Pool
}

// Template returns the template declared for objectClass.
func (d *Definition) Template(objectClass string) (*entry.Template, bool) {
	t, ok := d.Templates[objectClass]
	return t, ok
}

// document is the syntax-independent content of a format file.
type document struct {
	base      string
	hierarchy []string
	count     []int
	classes   []classSpec
}

type classSpec struct {
	name          string
	rdn           string
	objectClasses []string
	attributes    []attributeSpec
}

type attributeSpec struct {
	name string
	expr string // Modifier expression source
	line int
}

// Load reads the format file at path. The syntax is chosen by extension:
// .hcl for HCL, anything else is read as TOML. Relative file() paths are
// resolved against the directory of path.
func Load(ctx context.Context, path string) (*Definition, error) {
	var (
		doc *document
		err error
	)

	start := time.Now()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		doc, err = readHCL(path)
	default:
		doc, err = readTOML(path)
	}
	if err != nil {
		tflog.SubsystemError(ctx, logSubsystem, "Failed to read format file", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return nil, err
	}

	def, err := compile(ctx, path, doc)
	if err != nil {
		tflog.SubsystemError(ctx, logSubsystem, "Invalid format file", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return nil, err
	}

	tflog.SubsystemInfo(ctx, logSubsystem, "Format loaded", map[string]any{
		"path":          path,
		"object_class":  def.Order,
		"levels":        def.Hierarchy.Depth(),
		"total_entries": def.Hierarchy.Total(),
		"sources":       def.Sources.Len(),
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return def, nil
}

// compile parses every attribute expression, builds the templates and
// validates the hierarchy.
func compile(ctx context.Context, path string, doc *document) (*Definition, error) {
	pool := source.NewPool(ctx, filepath.Dir(path))

	def := &Definition{
		Path:      path,
		Base:      doc.base,
		Templates: make(map[string]*entry.Template, len(doc.classes)),
		Sources:   pool,
	}

	for _, class := range doc.classes {
		if _, dup := def.Templates[class.name]; dup {
			return nil, fmt.Errorf("%s: object class %s is defined more than once", path, class.name)
		}

		attrs := make([]entry.Attribute, 0, len(class.attributes))
		for _, a := range class.attributes {
			e, err := modifier.Parse(a.expr, pool)
			if err != nil {
				return nil, fmt.Errorf("%s: object class %s, attribute %s: %w", location(path, a.line), class.name, a.name, err)
			}
			tflog.SubsystemTrace(ctx, logSubsystem, "Attribute parsed", map[string]any{
				"object_class": class.name,
				"attribute":    a.name,
				"expression":   e.String(),
			})
			attrs = append(attrs, entry.Attribute{Name: a.name, Expr: e})
		}

		t, err := entry.NewTemplate(class.name, class.rdn, attrs, class.objectClasses...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		def.Templates[class.name] = t
		def.Order = append(def.Order, class.name)
	}

	h, err := entry.NewHierarchy(def.Templates, doc.hierarchy, doc.count)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Hierarchy = h

	return def, nil
}

// location renders path with a line number when one is known.
func location(path string, line int) string {
	if line <= 0 {
		return path
	}
	return fmt.Sprintf("%s:%d", path, line)
}
