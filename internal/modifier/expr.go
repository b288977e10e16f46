package modifier

import (
	"fmt"
	"strings"

	"github.com/isometry/ldapfill/internal/source"
)

// Expr is a parsed modifier expression. The set of implementations is closed:
// Literal, FileRef, Combine, Lowercase and Uppercase.
type Expr interface {
	// String renders the expression back into modifier syntax.
	String() string

	expr()
}

// Literal is a fixed string.
type Literal struct {
	Text string
}

// FileRef draws one random line from a value source per evaluation.
type FileRef struct {
	Source *source.Source
}

// Combine concatenates the values of its arguments without a separator.
type Combine struct {
	Args []Expr
}

// Lowercase lower-cases the resolved value of its argument.
type Lowercase struct {
	Arg Expr
}

// Uppercase upper-cases the resolved value of its argument.
type Uppercase struct {
	Arg Expr
}

func (Literal) expr()   {}
func (FileRef) expr()   {}
func (Combine) expr()   {}
func (Lowercase) expr() {}
func (Uppercase) expr() {}

func (l Literal) String() string {
	return quote(l.Text)
}

func (f FileRef) String() string {
	return fmt.Sprintf("%s(%s)", nameFile, quote(f.Source.ID()))
}

func (c Combine) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", nameCombine, strings.Join(args, ", "))
}

func (l Lowercase) String() string {
	return fmt.Sprintf("%s(%s)", nameLowercase, l.Arg.String())
}

func (u Uppercase) String() string {
	return fmt.Sprintf("%s(%s)", nameUppercase, u.Arg.String())
}

// Sources returns the distinct value sources referenced by e, in first
// reference order.
func Sources(e Expr) []*source.Source {
	var out []*source.Source
	seen := make(map[*source.Source]bool)

	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case FileRef:
			if !seen[e.Source] {
				seen[e.Source] = true
				out = append(out, e.Source)
			}
		case Combine:
			for _, arg := range e.Args {
				walk(arg)
			}
		case Lowercase:
			walk(e.Arg)
		case Uppercase:
			walk(e.Arg)
		}
	}
	walk(e)

	return out
}

// quote renders s as a string literal the parser accepts.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
