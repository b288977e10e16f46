package modifier

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/isometry/ldapfill/internal/source"
)

// Modifier names. Keywords are case-sensitive.
const (
	nameFile      = "file"
	nameCombine   = "combine"
	nameLowercase = "lowercase"
	nameUppercase = "uppercase"
)

// Resolver binds the path argument of a file() call to a loaded value source.
// *source.Pool implements it.
type Resolver interface {
	Resolve(path string) (*source.Source, error)
}

// Parse parses the right-hand side of one attribute assignment.
//
// Grammar:
//
//	expr           := string_literal | modifier_call
//	modifier_call  := name "(" arg ("," arg)* ")"
//	name           := "file" | "combine" | "lowercase" | "uppercase"
//	string_literal := '"' char* '"'
//
// Only file() performs source lookups; a string literal is always literal text.
func Parse(input string, resolver Resolver) (Expr, error) {
	p := &parser{input: input, resolver: resolver}

	p.skipSpace()
	if p.atEnd() {
		return nil, p.errorf(p.pos, "expression cannot be empty")
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.atEnd() {
		if p.peek() == ')' {
			return nil, p.errorf(p.pos, "unbalanced parentheses: unexpected ')'")
		}
		return nil, p.errorf(p.pos, "unexpected trailing input %q", p.input[p.pos:])
	}

	return e, nil
}

type parser struct {
	input    string
	pos      int
	resolver Resolver
}

func (p *parser) errorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Input: p.input, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.atEnd() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseExpr() (Expr, error) {
	p.skipSpace()
	if p.atEnd() {
		return nil, p.errorf(p.pos, "expected a string literal or modifier call")
	}

	switch c := p.peek(); {
	case c == '"':
		text, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return Literal{Text: text}, nil
	case isIdentByte(c):
		return p.parseCall()
	default:
		r, _ := utf8.DecodeRuneInString(p.input[p.pos:])
		return nil, p.errorf(p.pos, "unexpected character %q", r)
	}
}

func (p *parser) parseCall() (Expr, error) {
	start := p.pos
	for !p.atEnd() && isIdentByte(p.peek()) {
		p.pos++
	}
	name := p.input[start:p.pos]

	switch name {
	case nameFile, nameCombine, nameLowercase, nameUppercase:
	default:
		return nil, p.errorf(start, "unknown modifier %q", name)
	}

	p.skipSpace()
	if p.atEnd() || p.peek() != '(' {
		return nil, p.errorf(p.pos, "expected '(' after %s", name)
	}
	open := p.pos
	p.pos++

	p.skipSpace()
	if !p.atEnd() && p.peek() == ')' {
		return nil, p.errorf(open, "%s requires %s", name, arityText(name))
	}

	var args []Expr
	var offsets []int
	for {
		p.skipSpace()
		offsets = append(offsets, p.pos)
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.atEnd() {
			return nil, p.errorf(open, "unbalanced parentheses: %s( is never closed", name)
		}
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case ')':
			p.pos++
		default:
			return nil, p.errorf(p.pos, "expected ',' or ')' in %s arguments", name)
		}
		break
	}

	return p.build(name, start, args, offsets)
}

func (p *parser) build(name string, start int, args []Expr, offsets []int) (Expr, error) {
	switch name {
	case nameCombine:
		return Combine{Args: args}, nil
	case nameLowercase, nameUppercase:
		if len(args) != 1 {
			return nil, p.errorf(offsets[1], "%s requires %s, got %d", name, arityText(name), len(args))
		}
		if name == nameLowercase {
			return Lowercase{Arg: args[0]}, nil
		}
		return Uppercase{Arg: args[0]}, nil
	case nameFile:
		if len(args) != 1 {
			return nil, p.errorf(offsets[1], "%s requires %s, got %d", name, arityText(name), len(args))
		}
		lit, ok := args[0].(Literal)
		if !ok {
			return nil, p.errorf(offsets[0], "file requires a string literal path, got %s", args[0])
		}
		return p.bindFile(lit.Text, offsets[0])
	}
	return nil, p.errorf(start, "unknown modifier %q", name)
}

func (p *parser) bindFile(path string, offset int) (Expr, error) {
	if path == "" {
		return nil, p.errorf(offset, "file path cannot be empty")
	}
	if p.resolver == nil {
		return nil, p.errorf(offset, "no value sources are configured for file %q", path)
	}

	src, err := p.resolver.Resolve(path)
	if err != nil {
		perr := p.errorf(offset, "cannot use file %q", path)
		perr.Err = err
		return nil, perr
	}
	if src == nil {
		return nil, p.errorf(offset, "unknown file %q", path)
	}

	return FileRef{Source: src}, nil
}

// parseString consumes a double-quoted literal starting at p.pos.
func (p *parser) parseString() (string, error) {
	start := p.pos
	p.pos++ // opening quote

	var b strings.Builder
	for {
		if p.atEnd() {
			return "", p.errorf(start, "unterminated string literal")
		}

		c := p.peek()
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			r, err := p.parseEscape()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		default:
			r, size := utf8.DecodeRuneInString(p.input[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) parseEscape() (rune, error) {
	escStart := p.pos
	p.pos++ // backslash
	if p.atEnd() {
		return 0, p.errorf(escStart, "unterminated escape sequence")
	}

	c := p.peek()
	p.pos++
	switch c {
	case '"':
		return '"', nil
	case '\\':
		return '\\', nil
	case '/':
		return '/', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'u':
		r, err := p.parseHex4(escStart)
		if err != nil {
			return 0, err
		}
		if utf16.IsSurrogate(r) && strings.HasPrefix(p.input[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2
			low, err := p.parseHex4(save)
			if err == nil {
				if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
					return combined, nil
				}
			}
			p.pos = save
		}
		if utf16.IsSurrogate(r) {
			return utf8.RuneError, nil
		}
		return r, nil
	default:
		return 0, p.errorf(escStart, "invalid escape sequence \\%c", c)
	}
}

func (p *parser) parseHex4(escStart int) (rune, error) {
	if p.pos+4 > len(p.input) {
		return 0, p.errorf(escStart, "incomplete \\u escape")
	}
	var r rune
	for i := range 4 {
		c := p.input[p.pos+i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, p.errorf(escStart, "invalid hex digit %q in \\u escape", c)
		}
		r = r<<4 | rune(v)
	}
	p.pos += 4
	return r, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func arityText(name string) string {
	if name == nameCombine {
		return "at least one argument"
	}
	return "exactly one argument"
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}
