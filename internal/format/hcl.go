package format

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var hclRootSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "base"},
		{Name: "hierarchy", Required: true},
		{Name: "count", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "object_class", LabelNames: []string{"name"}},
	},
}

var hclClassSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "rdn", Required: true},
		{Name: "object_classes"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "attributes"},
	},
}

// readHCL decodes an HCL format file. Attribute expressions are not
// evaluated by HCL: their source text is handed to the modifier parser, so
//
//	uid = lowercase(combine(file("first.txt"), ".", file("last.txt")))
//
// means the same as in TOML. The text must still be valid HCL, which limits
// string literals to the escapes both syntaxes share (\" \\ \n \r \t
// \uXXXX); \/ \b and \f need the TOML form. Template sequences ("${" and
// "%{") are rejected rather than passed through as literal text.
func readHCL(path string) (*document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read format file %s: %w", path, err)
	}

	file, diags := hclsyntax.ParseConfig(src, path, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}

	content, diags := file.Body.Content(hclRootSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	doc := &document{}
	if attr, ok := content.Attributes["base"]; ok {
		diags = append(diags, decodeHCLAttr(attr, cty.String, &doc.base)...)
	}
	diags = append(diags, decodeHCLAttr(content.Attributes["hierarchy"], cty.List(cty.String), &doc.hierarchy)...)
	diags = append(diags, decodeHCLAttr(content.Attributes["count"], cty.List(cty.Number), &doc.count)...)

	for _, block := range content.Blocks {
		class, classDiags := decodeHCLClass(src, block)
		diags = append(diags, classDiags...)
		if class != nil {
			doc.classes = append(doc.classes, *class)
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return doc, nil
}

func decodeHCLClass(src []byte, block *hcl.Block) (*classSpec, hcl.Diagnostics) {
	content, diags := block.Body.Content(hclClassSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	class := &classSpec{name: block.Labels[0]}
	diags = append(diags, decodeHCLAttr(content.Attributes["rdn"], cty.String, &class.rdn)...)
	if attr, ok := content.Attributes["object_classes"]; ok {
		diags = append(diags, decodeHCLAttr(attr, cty.List(cty.String), &class.objectClasses)...)
	}

	for _, attrBlock := range content.Blocks {
		attrs, attrDiags := attrBlock.Body.JustAttributes()
		diags = append(diags, attrDiags...)

		sorted := make([]*hcl.Attribute, 0, len(attrs))
		for _, attr := range attrs {
			sorted = append(sorted, attr)
		}
		slices.SortFunc(sorted, func(a, b *hcl.Attribute) int {
			return a.Range.Start.Byte - b.Range.Start.Byte
		})

		for _, attr := range sorted {
			text := string(attr.Expr.Range().SliceBytes(src))
			if strings.Contains(text, "${") || strings.Contains(text, "%{") {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Template sequence in modifier expression",
					Detail:   fmt.Sprintf("Attribute %s of object class %s uses an HCL template sequence; modifier expressions take plain string literals.", attr.Name, class.name),
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			class.attributes = append(class.attributes, attributeSpec{
				name: attr.Name,
				expr: text,
				line: attr.Range.Start.Line,
			})
		}
	}

	return class, diags
}

// decodeHCLAttr evaluates a constant attribute, converts it to ty and stores
// it in target.
func decodeHCLAttr(attr *hcl.Attribute, ty cty.Type, target any) hcl.Diagnostics {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}

	val, err := convert.Convert(val, ty)
	if err == nil {
		err = gocty.FromCtyValue(val, target)
	}
	if err != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid value for " + attr.Name,
			Detail:   err.Error(),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return nil
}
