package source

import "fmt"

// FileErrorReason classifies why a source file could not be used.
type FileErrorReason string

const (
	ReasonMissing    FileErrorReason = "missing"
	ReasonUnreadable FileErrorReason = "unreadable"
	ReasonEmpty      FileErrorReason = "empty"
)

// FileError reports a source file that is missing, unreadable, or has no
// usable lines. It is always fatal and surfaces before generation starts.
type FileError struct {
	Path   string
	Reason FileErrorReason
	Err    error
}

func (e *FileError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return fmt.Sprintf("source file %s contains no non-empty lines", e.Path)
	case ReasonMissing:
		return fmt.Sprintf("source file %s does not exist", e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("source file %s is unreadable: %s", e.Path, e.Err)
		}
		return fmt.Sprintf("source file %s is unreadable", e.Path)
	}
}

func (e *FileError) Unwrap() error {
	return e.Err
}
