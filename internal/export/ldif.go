package export

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/isometry/ldapfill/internal/entry"
)

// LDIF writes entries in LDAP Data Interchange Format (RFC 2849).
type LDIF struct {
	path string
	w    io.Writer
}

// NewLDIF returns an exporter writing to the file at path.
func NewLDIF(path string) *LDIF {
	return &LDIF{path: path}
}

// NewLDIFWriter returns an exporter writing to w.
func NewLDIFWriter(w io.Writer) *LDIF {
	return &LDIF{w: w}
}

func (x *LDIF) Name() string {
	return "ldif"
}

// Export writes every entry, parents before children.
func (x *LDIF) Export(ctx context.Context, tree *entry.Tree) (err error) {
	w := x.w
	if w == nil {
		f, cerr := os.Create(x.path)
		if cerr != nil {
			return fmt.Errorf("create LDIF file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close LDIF file: %w", cerr)
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("version: 1\n"); err != nil {
		return err
	}

	start := time.Now()
	written := 0
	for i := range tree.Depth() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, e := range tree.Level(i) {
			bw.WriteByte('\n')
			writeLDIFEntry(bw, e)
			written++
		}
		logProgress(ctx, x.Name(), i, written, start)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write LDIF: %w", err)
	}
	return nil
}

// writeLDIFEntry writes one entry record without the separating blank line.
// Errors are sticky in bufio.Writer and surface at Flush.
func writeLDIFEntry(w *bufio.Writer, e *entry.Entry) {
	writeLDIFLine(w, "dn", e.DN())
	for _, attr := range Attributes(e) {
		for _, v := range attr.Values {
			writeLDIFLine(w, attr.Type, v)
		}
	}
}

func writeLDIFLine(w *bufio.Writer, name, value string) {
	w.WriteString(name)
	if ldifSafe(value) {
		w.WriteString(": ")
		w.WriteString(value)
	} else {
		w.WriteString(":: ")
		w.WriteString(base64.StdEncoding.EncodeToString([]byte(value)))
	}
	w.WriteByte('\n')
}

// ldifSafe reports whether value can be written as a SAFE-STRING. Values
// with trailing spaces are base64 encoded too, since readers may strip them.
func ldifSafe(value string) bool {
	if value == "" {
		return true
	}

	switch value[0] {
	case ' ', ':', '<':
		return false
	}
	if value[len(value)-1] == ' ' {
		return false
	}

	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case c == 0, c == '\n', c == '\r', c > 127:
			return false
		}
	}
	return true
}
