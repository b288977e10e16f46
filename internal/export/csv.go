package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapfill/internal/entry"
)

// CSV writes one <objectClass>.csv file per object class into a directory.
// The header is "dn" followed by the template attributes in order.
type CSV struct {
	dir string
}

// NewCSV returns an exporter writing into dir, which is created if needed.
func NewCSV(dir string) *CSV {
	return &CSV{dir: dir}
}

func (x *CSV) Name() string {
	return "csv"
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func (x *CSV) Export(ctx context.Context, tree *entry.Tree) (err error) {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return fmt.Errorf("create CSV directory: %w", err)
	}

	files := make(map[string]*csvFile)
	defer func() {
		for class, cf := range files {
			cf.w.Flush()
			if werr := cf.w.Error(); err == nil && werr != nil {
				err = fmt.Errorf("write %s.csv: %w", class, werr)
			}
			if cerr := cf.f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close %s.csv: %w", class, cerr)
			}
		}
	}()

	start := time.Now()
	written := 0
	for i := range tree.Depth() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, e := range tree.Level(i) {
			cf, ok := files[e.ObjectClass()]
			if !ok {
				cf, err = x.open(ctx, e.Template())
				if err != nil {
					return err
				}
				files[e.ObjectClass()] = cf
			}

			values := e.Values()
			record := make([]string, 0, len(values)+1)
			record = append(record, e.DN())
			for _, v := range values {
				record = append(record, v.Value)
			}
			if err := cf.w.Write(record); err != nil {
				return fmt.Errorf("write %s.csv: %w", e.ObjectClass(), err)
			}
			written++
		}
		logProgress(ctx, x.Name(), i, written, start)
	}

	return nil
}

func (x *CSV) open(ctx context.Context, t *entry.Template) (*csvFile, error) {
	path := filepath.Join(x.dir, t.Name()+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CSV file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"dn"}, t.AttributeNames()...)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s header: %w", path, err)
	}

	tflog.SubsystemDebug(ctx, logSubsystem, "CSV file created", map[string]any{
		"path":         path,
		"object_class": t.Name(),
	})
	return &csvFile{f: f, w: w}, nil
}
