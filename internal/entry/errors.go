package entry

import (
	"errors"
	"fmt"
)

// ErrEmptyRDN is wrapped by the GenerationError raised when an RDN attribute
// resolves to the empty string.
var ErrEmptyRDN = errors.New("RDN attribute resolved to an empty value")

// ConfigError reports an inconsistent template or hierarchy definition.
// It is always raised before the first entry is built.
type ConfigError struct {
	Subject string // Object class or hierarchy position concerned, may be empty
	Msg     string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "invalid generation config"
	if e.Subject != "" {
		msg += " for " + e.Subject
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(subject, format string, args ...any) *ConfigError {
	return &ConfigError{Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// GenerationError aborts a run. It identifies the entry that could not be
// built by its position in the tree.
type GenerationError struct {
	ObjectClass string
	Attribute   string
	ParentDN    string // Empty for root level entries
	Level       int
	Index       int // Sibling index under ParentDN
	Err         error
}

func (e *GenerationError) Error() string {
	parent := e.ParentDN
	if parent == "" {
		parent = "<root>"
	}
	return fmt.Sprintf("cannot generate %s #%d at level %d under %s (attribute %s): %v",
		e.ObjectClass, e.Index, e.Level, parent, e.Attribute, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

// IsGenerationError reports whether err is, or wraps, a *GenerationError.
func IsGenerationError(err error) bool {
	var gerr *GenerationError
	return errors.As(err, &gerr)
}
