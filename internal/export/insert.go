package export

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/ldap"
)

// InsertStats summarises an insert run.
type InsertStats struct {
	Added    int64
	Skipped  int64 // Entries that already existed
	Duration time.Duration
}

// Inserter adds entries to a directory server. A level is inserted only once
// the previous level is complete, so parents always exist before children.
type Inserter struct {
	client  ldap.Client
	workers int
	stats   InsertStats
}

// NewInserter returns an exporter that adds entries through client with up
// to workers concurrent operations.
func NewInserter(client ldap.Client, workers int) *Inserter {
	return &Inserter{client: client, workers: max(workers, 1)}
}

func (x *Inserter) Name() string {
	return "insert"
}

// Stats returns the counters of the last Export.
func (x *Inserter) Stats() InsertStats {
	return x.stats
}

// Export adds every entry. Entries that already exist are skipped; any other
// failure stops the run.
func (x *Inserter) Export(ctx context.Context, tree *entry.Tree) error {
	var added, skipped atomic.Int64
	start := time.Now()
	defer func() {
		x.stats = InsertStats{Added: added.Load(), Skipped: skipped.Load(), Duration: time.Since(start)}
	}()

	for i := range tree.Depth() {
		levelStart := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(x.workers)

		for _, e := range tree.Level(i) {
			g.Go(func() error {
				err := x.client.Add(gctx, &ldap.AddRequest{DN: e.DN(), Attributes: Attributes(e)})
				switch {
				case err == nil:
					added.Add(1)
					return nil
				case ldap.IsConflictError(err):
					skipped.Add(1)
					tflog.SubsystemWarn(gctx, logSubsystem, "Entry already exists, skipping", map[string]any{
						"dn": e.DN(),
					})
					return nil
				default:
					return fmt.Errorf("insert %s: %w", e.DN(), err)
				}
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		ldap.LogPerformance(ctx, logSubsystem, "insert_level", time.Since(levelStart), map[string]any{
			"level":   i,
			"entries": len(tree.Level(i)),
		})
		logProgress(ctx, x.Name(), i, int(added.Load()+skipped.Load()), start)
	}

	tflog.SubsystemInfo(ctx, logSubsystem, "Insert completed", map[string]any{
		"added":       added.Load(),
		"skipped":     skipped.Load(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
