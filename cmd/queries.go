package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapfill/internal/config"
	"github.com/isometry/ldapfill/internal/query"
)

var queriesFlags struct {
	count  int
	output string
	verify bool
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Generate search queries against the generated tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := &current.cfg.Queries
		flags := cmd.Flags()
		if flags.Changed("count") {
			q.Count = queriesFlags.count
		}
		if flags.Changed("output") {
			q.Output = queriesFlags.output
		}
		if flags.Changed("verify") {
			q.Verify = queriesFlags.verify
		}
		if err := current.cfg.Validate(); err != nil {
			return err
		}
		return runQueries(cmd.Context(), cmd.OutOrStdout(), current)
	},
}

func init() {
	f := queriesCmd.Flags()
	f.IntVarP(&queriesFlags.count, "count", "n", 0, "Number of queries to generate")
	f.StringVarP(&queriesFlags.output, "output", "o", "", "CSV file to write the queries to")
	f.BoolVar(&queriesFlags.verify, "verify", false, "Run every query against the configured server")
	rootCmd.AddCommand(queriesCmd)
}

// filters compiles the configured filter templates.
func filters(cfg []config.Filter) ([]*query.Filter, error) {
	if len(cfg) == 0 {
		return nil, fmt.Errorf("no query filters configured: add [[queries.filter]] tables")
	}

	out := make([]*query.Filter, 0, len(cfg))
	for i, f := range cfg {
		qf, err := query.NewFilter(f.Template, f.ObjectClass, f.Scope, f.Weight)
		if err != nil {
			return nil, fmt.Errorf("queries.filter[%d]: %w", i, err)
		}
		out = append(out, qf)
	}
	return out, nil
}

func runQueries(ctx context.Context, out io.Writer, s *settings) error {
	qc := s.cfg.Queries
	if qc.Count == 0 {
		return fmt.Errorf("no queries requested: set --count or queries.count")
	}

	fs, err := filters(qc.Filters)
	if err != nil {
		return err
	}

	tree, err := s.buildTree(ctx)
	if err != nil {
		return err
	}

	g, err := query.NewGenerator(tree, fs,
		query.WithSeed(tree.Seed()),
		query.WithNoResultProbability(qc.NoResultProbability),
		query.WithBaseWeights(qc.BaseWeights),
	)
	if err != nil {
		return err
	}

	queries := g.Generate(ctx, qc.Count)
	if err := query.WriteFile(qc.Output, queries); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d queries to %s (seed %d)\n", len(queries), qc.Output, tree.Seed())

	if !qc.Verify {
		return nil
	}

	client, err := newClient(ctx, s)
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := query.Verify(ctx, client, queries, s.cfg.LDAP.Connections)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Verified %d queries: %d unexpected results, %d missing results\n",
		stats.Checked, stats.Unexpected, stats.Missing)
	return nil
}
