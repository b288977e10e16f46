package modifier

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression is the sentinel wrapped by every ParseError.
var ErrInvalidExpression = errors.New("invalid modifier expression")

// ParseError reports a malformed modifier expression. Offset is the byte
// position in Input where the problem was detected.
type ParseError struct {
	Input  string
	Offset int
	Msg    string
	Err    error // Underlying cause, e.g. a *source.FileError
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s at offset %d in %q: %s", ErrInvalidExpression, e.Offset, e.Input, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Near returns the slice of the input starting at the error offset.
func (e *ParseError) Near() string {
	if e.Offset >= len(e.Input) {
		return ""
	}
	return e.Input[e.Offset:]
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidExpression}
	}
	return []error{ErrInvalidExpression, e.Err}
}
