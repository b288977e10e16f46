package modifier

import (
	"fmt"
	"strings"

	"github.com/isometry/ldapfill/internal/source"
)

// Evaluate resolves e into a concrete value. Every FileRef reached during the
// walk performs its own independent draw from r; nothing is cached.
func Evaluate(e Expr, r source.Rand) string {
	switch e := e.(type) {
	case Literal:
		return e.Text
	case FileRef:
		return e.Source.Draw(r)
	case Combine:
		var b strings.Builder
		for _, arg := range e.Args {
			b.WriteString(Evaluate(arg, r))
		}
		return b.String()
	case Lowercase:
		return strings.ToLower(Evaluate(e.Arg, r))
	case Uppercase:
		return strings.ToUpper(Evaluate(e.Arg, r))
	default:
		panic(fmt.Sprintf("modifier: unhandled expression type %T", e))
	}
}
