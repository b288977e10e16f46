package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/isometry/ldapfill/internal/ldap"
)

var csvHeader = []string{"base", "scope", "filter", "expect_result"}

// WriteCSV writes queries as base,scope,filter,expect_result records.
func WriteCSV(w io.Writer, queries []Query) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, q := range queries {
		if err := cw.Write([]string{q.Base, q.Scope.String(), q.Filter, strconv.FormatBool(q.ExpectResult)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes queries to the CSV file at path.
func WriteFile(path string, queries []Query) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create query file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close query file: %w", cerr)
		}
	}()

	if err := WriteCSV(f, queries); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// VerifyStats summarises a verification run.
type VerifyStats struct {
	Checked    int64
	Unexpected int64 // Found entries where none were expected
	Missing    int64 // Found nothing where an entry was expected
}

// Mismatches returns the number of queries whose outcome differed.
func (s VerifyStats) Mismatches() int64 {
	return s.Unexpected + s.Missing
}

// Verify runs every query against a directory holding the tree and compares
// the outcome with ExpectResult. Search failures stop the run; mismatches
// are only counted.
func Verify(ctx context.Context, client ldap.Client, queries []Query, workers int) (VerifyStats, error) {
	var checked, unexpected, missing atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, q := range queries {
		g.Go(func() error {
			res, err := client.Search(gctx, &ldap.SearchRequest{
				BaseDN:     q.Base,
				Scope:      q.Scope,
				Filter:     q.Filter,
				Attributes: []string{"1.1"},
				SizeLimit:  1,
			})
			if err != nil {
				return fmt.Errorf("search %s under %s: %w", q.Filter, q.Base, err)
			}
			checked.Add(1)

			found := len(res.Entries) > 0
			if found == q.ExpectResult {
				return nil
			}
			if found {
				unexpected.Add(1)
			} else {
				missing.Add(1)
			}
			tflog.SubsystemWarn(gctx, logSubsystem, "Query result differs from expectation", map[string]any{
				"base":   q.Base,
				"scope":  q.Scope.String(),
				"filter": q.Filter,
				"expect": q.ExpectResult,
			})
			return nil
		})
	}

	err := g.Wait()
	stats := VerifyStats{Checked: checked.Load(), Unexpected: unexpected.Load(), Missing: missing.Load()}
	if err != nil {
		return stats, err
	}

	tflog.SubsystemInfo(ctx, logSubsystem, "Queries verified", map[string]any{
		"checked":    stats.Checked,
		"unexpected": stats.Unexpected,
		"missing":    stats.Missing,
	})
	return stats, nil
}
