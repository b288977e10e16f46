package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineLength bounds a single candidate line read from a source file.
const maxLineLength = 1 << 20

// Rand is the entropy consumed by value draws. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Source is the line-indexed content of one input text file.
// A Source is immutable after load and safe for concurrent draws.
type Source struct {
	id    string
	lines []string
}

// New builds a Source from in-memory lines. Lines are trimmed and blank lines
// are dropped; a source without any remaining line is rejected.
func New(id string, lines []string) (*Source, error) {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}

	if len(kept) == 0 {
		return nil, &FileError{Path: id, Reason: ReasonEmpty}
	}

	return &Source{id: id, lines: kept}, nil
}

// Load reads the file at path into a Source.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		reason := ReasonUnreadable
		if errors.Is(err, os.ErrNotExist) {
			reason = ReasonMissing
		}
		return nil, &FileError{Path: path, Reason: reason, Err: err}
	}
	defer f.Close()

	return Read(path, f)
}

// Read loads a Source from r, identified by id.
func Read(id string, r io.Reader) (*Source, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &FileError{Path: id, Reason: ReasonUnreadable, Err: err}
	}

	return New(id, lines)
}

// ID returns the source identifier (the resolved file path).
func (s *Source) ID() string {
	return s.id
}

// Len returns the number of candidate lines.
func (s *Source) Len() int {
	return len(s.lines)
}

// Line returns the i-th candidate line.
func (s *Source) Line(i int) string {
	return s.lines[i]
}

// Draw returns a uniformly random candidate line.
func (s *Source) Draw(r Rand) string {
	return s.lines[r.IntN(len(s.lines))]
}

// Equal reports whether both sources are backed by the same file.
func (s *Source) Equal(other *Source) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.id == other.id
}

func (s *Source) String() string {
	return fmt.Sprintf("%s (%d lines)", s.id, len(s.lines))
}
