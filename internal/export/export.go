// Package export writes generated entry trees to files, databases and live
// directory servers.
package export

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/ldap"
)

const logSubsystem = "export"

// Exporter consumes a finished tree. Exporters never modify the tree.
type Exporter interface {
	// Name identifies the exporter in logs.
	Name() string
	Export(ctx context.Context, tree *entry.Tree) error
}

// Attributes returns the attributes of e as they are written out:
// objectClass first, then the template attributes in declaration order.
func Attributes(e *entry.Entry) []ldap.Attribute {
	values := e.Values()
	attrs := make([]ldap.Attribute, 0, len(values)+1)
	attrs = append(attrs, ldap.Attribute{Type: "objectClass", Values: e.Template().ObjectClasses()})
	for _, v := range values {
		attrs = append(attrs, ldap.Attribute{Type: v.Name, Values: []string{v.Value}})
	}
	return attrs
}

// Run exports tree through every exporter in turn.
func Run(ctx context.Context, tree *entry.Tree, exporters ...Exporter) error {
	for _, x := range exporters {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := ldap.LogOperation(ctx, logSubsystem, "export_"+x.Name(), map[string]any{
			"entries": tree.Len(),
		}, func() error {
			return x.Export(ctx, tree)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// logProgress reports throughput after a level has been written.
func logProgress(ctx context.Context, exporter string, level, written int, start time.Time) {
	elapsed := time.Since(start)
	fields := map[string]any{
		"exporter": exporter,
		"level":    level,
		"written":  written,
	}
	if s := elapsed.Seconds(); s > 0 {
		fields["entries_per_second"] = int(float64(written) / s)
	}
	tflog.SubsystemDebug(ctx, logSubsystem, "Level exported", fields)
}
