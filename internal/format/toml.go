package format

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

type tomlFormat struct {
	Base        string                     `toml:"base"`
	Hierarchy   []string                   `toml:"hierarchy"`
	Count       []int                      `toml:"count"`
	ObjectClass map[string]tomlObjectClass `toml:"object_class"`
}

type tomlObjectClass struct {
	RDN           string            `toml:"rdn"`
	ObjectClasses []string          `toml:"object_classes"`
	Attributes    map[string]string `toml:"attributes"`
}

// readTOML decodes a TOML format file. Declaration order of object classes
// and attributes is recovered from the decoder's key list.
func readTOML(path string) (*document, error) {
	var raw tomlFormat
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("cannot parse format file %s:\n%s", path, perr.ErrorWithPosition())
		}
		return nil, fmt.Errorf("cannot read format file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	doc := &document{
		base:      raw.Base,
		hierarchy: raw.Hierarchy,
		count:     raw.Count,
	}

	// Intermediate tables may only appear implicitly, so a class is ordered
	// by the first key that mentions it.
	var classOrder []string
	attrOrder := make(map[string][]string)
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "object_class" {
			continue
		}
		if !slices.Contains(classOrder, key[1]) {
			classOrder = append(classOrder, key[1])
		}
		if len(key) == 4 && key[2] == "attributes" && !slices.Contains(attrOrder[key[1]], key[3]) {
			attrOrder[key[1]] = append(attrOrder[key[1]], key[3])
		}
	}

	for _, name := range classOrder {
		oc := raw.ObjectClass[name]
		class := classSpec{
			name:          name,
			rdn:           oc.RDN,
			objectClasses: oc.ObjectClasses,
		}
		for _, attr := range attrOrder[name] {
			class.attributes = append(class.attributes, attributeSpec{
				name: attr,
				expr: oc.Attributes[attr],
			})
		}
		doc.classes = append(doc.classes, class)
	}

	return doc, nil
}
