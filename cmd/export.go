package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapfill/internal/config"
	"github.com/isometry/ldapfill/internal/export"
)

var exportFlags config.Export

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Generate entries and write them to LDIF, CSV or SQLite",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		targets := current.cfg.Export
		if cmd.Flags().Changed("ldif") {
			targets.LDIF = exportFlags.LDIF
		}
		if cmd.Flags().Changed("csv-dir") {
			targets.CSVDir = exportFlags.CSVDir
		}
		if cmd.Flags().Changed("sqlite") {
			targets.SQLite = exportFlags.SQLite
		}
		return runExport(cmd.Context(), cmd.OutOrStdout(), current, targets)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.LDIF, "ldif", "", "Write entries to this LDIF file")
	exportCmd.Flags().StringVar(&exportFlags.CSVDir, "csv-dir", "", "Write one CSV file per object class into this directory")
	exportCmd.Flags().StringVar(&exportFlags.SQLite, "sqlite", "", "Write entries to this SQLite database")
	rootCmd.AddCommand(exportCmd)
}

// exporters returns one exporter per configured target.
func exporters(targets config.Export) []export.Exporter {
	var out []export.Exporter
	if targets.LDIF != "" {
		out = append(out, export.NewLDIF(targets.LDIF))
	}
	if targets.CSVDir != "" {
		out = append(out, export.NewCSV(targets.CSVDir))
	}
	if targets.SQLite != "" {
		out = append(out, export.NewSQLite(targets.SQLite))
	}
	return out
}

func runExport(ctx context.Context, out io.Writer, s *settings, targets config.Export) error {
	xs := exporters(targets)
	if len(xs) == 0 {
		return fmt.Errorf("no export target: set --ldif, --csv-dir or --sqlite")
	}

	start := time.Now()
	tree, err := s.buildTree(ctx)
	if err != nil {
		return err
	}
	generated := time.Since(start)

	if err := export.Run(ctx, tree, xs...); err != nil {
		return err
	}

	fmt.Fprintf(out, "Generated %d entries in %d levels (seed %d) in %v\n",
		tree.Len(), tree.Depth(), tree.Seed(), generated.Round(time.Millisecond))
	for _, x := range xs {
		switch x := x.(type) {
		case *export.SQLite:
			fmt.Fprintf(out, "  %s: %s (run %s)\n", x.Name(), targets.SQLite, x.RunID())
		case *export.LDIF:
			fmt.Fprintf(out, "  %s: %s\n", x.Name(), targets.LDIF)
		case *export.CSV:
			fmt.Fprintf(out, "  %s: %s\n", x.Name(), targets.CSVDir)
		}
	}
	fmt.Fprintf(out, "Done in %v.\n", time.Since(start).Round(time.Millisecond))
	return nil
}
