package format

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/modifier"
	"github.com/isometry/ldapfill/internal/source"
)

const peopleTOML = `
base = "dc=example,dc=org"
hierarchy = ["organizationalUnit", "inetOrgPerson"]
count = [2, 3]

[object_class.organizationalUnit]
rdn = "ou"

[object_class.organizationalUnit.attributes]
ou = 'file("units.txt")'
description = '"Generated unit"'

[object_class.inetOrgPerson]
rdn = "uid"
object_classes = ["top", "person", "inetOrgPerson"]

[object_class.inetOrgPerson.attributes]
uid = 'lowercase(combine(file("first.txt"), ".", file("last.txt")))'
cn = 'combine(file("first.txt"), " ", file("last.txt"))'
sn = 'file("last.txt")'
mail = 'lowercase(combine(file("first.txt"), "@example.org"))'
`

const peopleHCL = `
base      = "dc=example,dc=org"
hierarchy = ["organizationalUnit", "inetOrgPerson"]
count     = [2, 3]

object_class "organizationalUnit" {
  rdn = "ou"
  attributes {
    ou          = file("units.txt")
    description = "Generated unit"
  }
}

object_class "inetOrgPerson" {
  rdn            = "uid"
  object_classes = ["top", "person", "inetOrgPerson"]
  attributes {
    uid  = lowercase(combine(file("first.txt"), ".", file("last.txt")))
    cn   = combine(file("first.txt"), " ", file("last.txt"))
    sn   = file("last.txt")
    mail = lowercase(combine(file("first.txt"), "@example.org"))
  }
}
`

// writeFixture writes name with content plus the value sources under a fresh
// directory and returns the path of name.
func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		name:        content,
		"first.txt": "Alice\nBob\n\n  Carol  \n",
		"last.txt":  "Smith\nJones\n",
		"units.txt": "Sales\nEngineering\n",
	}
	for n, c := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(c), 0o600))
	}
	return filepath.Join(dir, name)
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name    string
		file    string
		content string
	}{
		{name: "toml", file: "format.toml", content: peopleTOML},
		{name: "hcl", file: "format.hcl", content: peopleHCL},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFixture(t, tc.file, tc.content)

			def, err := Load(t.Context(), path)
			require.NoError(t, err)

			assert.Equal(t, "dc=example,dc=org", def.Base)
			assert.Equal(t, []string{"organizationalUnit", "inetOrgPerson"}, def.Order)
			assert.Equal(t, 2, def.Hierarchy.Depth())
			assert.Equal(t, 8, def.Hierarchy.Total())

			ou, ok := def.Template("organizationalUnit")
			require.True(t, ok)
			assert.Equal(t, "ou", ou.RDN())
			assert.Equal(t, []string{"ou", "description"}, ou.AttributeNames())
			assert.Equal(t, []string{"organizationalUnit"}, ou.ObjectClasses())
			assert.Equal(t, modifier.Literal{Text: "Generated unit"}, ou.Attributes()[1].Expr)

			person, ok := def.Template("inetOrgPerson")
			require.True(t, ok)
			assert.Equal(t, "uid", person.RDN())
			assert.Equal(t, []string{"uid", "cn", "sn", "mail"}, person.AttributeNames())
			assert.Equal(t, []string{"top", "person", "inetOrgPerson"}, person.ObjectClasses())

			// first.txt is referenced five times but loaded once.
			assert.Equal(t, 3, def.Sources.Len())
			for _, src := range def.Sources.Sources() {
				assert.Equal(t, filepath.Dir(path), filepath.Dir(src.ID()))
			}
			first, err := def.Sources.Resolve("first.txt")
			require.NoError(t, err)
			assert.Equal(t, 3, first.Len())
			assert.Equal(t, "Carol", first.Line(2))
		})
	}
}

func TestLoad_TOMLAndHCLAgree(t *testing.T) {
	tomlPath := writeFixture(t, "format.toml", peopleTOML)
	hclPath := filepath.Join(filepath.Dir(tomlPath), "format.hcl")
	require.NoError(t, os.WriteFile(hclPath, []byte(peopleHCL), 0o600))

	tomlDef, err := Load(t.Context(), tomlPath)
	require.NoError(t, err)
	hclDef, err := Load(t.Context(), hclPath)
	require.NoError(t, err)

	for _, name := range tomlDef.Order {
		a, _ := tomlDef.Template(name)
		b, _ := hclDef.Template(name)
		require.Len(t, b.Attributes(), len(a.Attributes()))
		for i := range a.Attributes() {
			assert.Equal(t, a.Attributes()[i].Name, b.Attributes()[i].Name)
			assert.Equal(t, a.Attributes()[i].Expr.String(), b.Attributes()[i].Expr.String())
		}
	}
}

func TestLoad_GeneratesTree(t *testing.T) {
	def, err := Load(t.Context(), writeFixture(t, "format.toml", peopleTOML))
	require.NoError(t, err)

	b, err := entry.NewBuilder(def.Hierarchy, entry.WithBase(def.Base), entry.WithSeed(42))
	require.NoError(t, err)
	tree, err := b.Build(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 8, tree.Len())
	for e := range tree.All() {
		assert.True(t, strings.HasSuffix(e.DN(), ",dc=example,dc=org"), e.DN())
		if e.Level() == 1 {
			assert.True(t, strings.HasSuffix(e.DN(), ","+e.Parent().DN()), e.DN())
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "missing format file",
			file:    "",
			wantErr: "cannot read format file",
		},
		{
			name:    "toml syntax",
			file:    "format.toml",
			content: "hierarchy = [",
			wantErr: "cannot parse format file",
		},
		{
			name:    "unknown key",
			file:    "format.toml",
			content: "colour = \"blue\"\n" + peopleTOML,
			wantErr: "unknown keys: colour",
		},
		{
			name: "bad expression",
			file: "format.toml",
			content: `
hierarchy = ["device"]
count = [1]
[object_class.device.attributes]
cn = 'lowercase("a", "b")'
[object_class.device]
rdn = "cn"
`,
			wantErr: "object class device, attribute cn",
			check: func(t *testing.T, err error) {
				var perr *modifier.ParseError
				assert.ErrorAs(t, err, &perr)
			},
		},
		{
			name: "missing value source",
			file: "format.toml",
			content: `
hierarchy = ["device"]
count = [1]
[object_class.device]
rdn = "cn"
[object_class.device.attributes]
cn = 'file("hosts.txt")'
`,
			wantErr: "hosts.txt",
			check: func(t *testing.T, err error) {
				var ferr *source.FileError
				require.ErrorAs(t, err, &ferr)
				assert.Equal(t, source.ReasonMissing, ferr.Reason)
			},
		},
		{
			name: "rdn not an attribute",
			file: "format.toml",
			content: `
hierarchy = ["device"]
count = [1]
[object_class.device]
rdn = "cn"
[object_class.device.attributes]
serialNumber = '"1"'
`,
			wantErr: "RDN attribute cn is not one of its attributes",
			check: func(t *testing.T, err error) {
				assert.True(t, entry.IsConfigError(err))
			},
		},
		{
			name: "unknown hierarchy class",
			file: "format.toml",
			content: `
hierarchy = ["device", "port"]
count = [1, 2]
[object_class.device]
rdn = "cn"
[object_class.device.attributes]
cn = '"router"'
`,
			wantErr: `unknown object class "port"`,
			check: func(t *testing.T, err error) {
				assert.True(t, entry.IsConfigError(err))
			},
		},
		{
			name: "count mismatch",
			file: "format.hcl",
			content: `
hierarchy = ["device"]
count     = [1, 2]
object_class "device" {
  rdn = "cn"
  attributes {
    cn = "router"
  }
}
`,
			wantErr: "1 levels but 2 counts",
		},
		{
			name: "hcl missing rdn",
			file: "format.hcl",
			content: `
hierarchy = ["device"]
count     = [1]
object_class "device" {
  attributes {
    cn = "router"
  }
}
`,
			wantErr: `Missing required argument`,
			check: func(t *testing.T, err error) {
				var diags hcl.Diagnostics
				assert.ErrorAs(t, err, &diags)
			},
		},
		{
			name: "hcl bad count",
			file: "format.hcl",
			content: `
hierarchy = ["device"]
count     = ["many"]
object_class "device" {
  rdn = "cn"
  attributes {
    cn = "router"
  }
}
`,
			wantErr: "Invalid value for count",
		},
		{
			name: "hcl expression line",
			file: "format.hcl",
			content: `hierarchy = ["device"]
count     = [1]
object_class "device" {
  rdn = "cn"
  attributes {
    cn = uppercase()
  }
}
`,
			wantErr: "format.hcl:6: object class device, attribute cn",
		},
		{
			name: "hcl template sequence",
			file: "format.hcl",
			content: `hierarchy = ["device"]
count     = [1]
object_class "device" {
  rdn = "cn"
  attributes {
    cn = combine("router-", "${name}")
  }
}
`,
			wantErr: "Template sequence in modifier expression",
		},
		{
			name: "hcl escape without HCL form",
			file: "format.hcl",
			content: `hierarchy = ["device"]
count     = [1]
object_class "device" {
  rdn = "cn"
  attributes {
    cn = "a\/b"
  }
}
`,
			wantErr: "Invalid escape sequence",
			check: func(t *testing.T, err error) {
				var diags hcl.Diagnostics
				assert.ErrorAs(t, err, &diags)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.toml")
			if tt.file != "" {
				path = writeFixture(t, tt.file, tt.content)
			}

			_, err := Load(t.Context(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}
