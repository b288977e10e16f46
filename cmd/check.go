package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and format file without generating",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCheck(cmd.Context(), cmd.OutOrStdout(), current)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck prints the shape of the tree the format file describes.
func runCheck(ctx context.Context, out io.Writer, s *settings) error {
	def, err := s.loadFormat(ctx)
	if err != nil {
		return err
	}
	if len(s.cfg.Queries.Filters) > 0 {
		if _, err := filters(s.cfg.Queries.Filters); err != nil {
			return err
		}
	}

	base := s.base(def)
	if base == "" {
		base = "(none)"
	}
	fmt.Fprintf(out, "Format:  %s\n", def.Path)
	fmt.Fprintf(out, "Base DN: %s\n", base)
	fmt.Fprintf(out, "Sources: %d\n", def.Sources.Len())

	for i, level := range def.Hierarchy.Levels() {
		t := level.Template
		fmt.Fprintf(out, "%s%s x%d  rdn=%s  attributes=%s  (%d entries)\n",
			strings.Repeat("  ", i), t.Name(), level.Count, t.RDN(),
			strings.Join(t.AttributeNames(), ","), def.Hierarchy.LevelSize(i))
	}
	fmt.Fprintf(out, "Total:   %d entries\n", def.Hierarchy.Total())
	return nil
}
