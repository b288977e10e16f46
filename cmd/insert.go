package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapfill/internal/export"
	"github.com/isometry/ldapfill/internal/ldap"
)

var insertFlags struct {
	urls          []string
	bindDN        string
	passwordStdin bool
	connections   int
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Generate entries and add them to a directory server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := current.cfg
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.LDAP.URLs = insertFlags.urls
		}
		if flags.Changed("bind-dn") {
			cfg.LDAP.BindDN = insertFlags.bindDN
		}
		if flags.Changed("connections") {
			cfg.LDAP.Connections = insertFlags.connections
		}
		if insertFlags.passwordStdin {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg.LDAP.Password = password
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runInsert(cmd.Context(), cmd.OutOrStdout(), current)
	},
}

func init() {
	f := insertCmd.Flags()
	f.StringSliceVar(&insertFlags.urls, "url", nil, "LDAP server URL, may be repeated")
	f.StringVarP(&insertFlags.bindDN, "bind-dn", "D", "", "DN to bind as")
	f.BoolVar(&insertFlags.passwordStdin, "password-stdin", false, "Read the bind password from standard input")
	f.IntVar(&insertFlags.connections, "connections", 0, "Concurrent connections to the server")
	rootCmd.AddCommand(insertCmd)
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("read password: no password on standard input")
	}
	return password, nil
}

// newClient connects to the configured servers. The caller closes it.
func newClient(ctx context.Context, s *settings) (ldap.Client, error) {
	if len(s.cfg.LDAP.URLs) == 0 {
		return nil, fmt.Errorf("no LDAP server: set ldap.urls or --url")
	}

	client, err := ldap.NewClient(ctx, s.cfg.ConnectionConfig())
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		client.Close()
		if ldap.IsAuthenticationError(err) {
			return nil, fmt.Errorf("%w (check ldap.bind_dn and the password)", err)
		}
		return nil, err
	}
	return client, nil
}

func runInsert(ctx context.Context, out io.Writer, s *settings) error {
	client, err := newClient(ctx, s)
	if err != nil {
		return err
	}
	defer client.Close()

	tree, err := s.buildTree(ctx)
	if err != nil {
		return err
	}

	inserter := export.NewInserter(client, s.cfg.LDAP.Connections)
	err = export.Run(ctx, tree, inserter)
	stats := inserter.Stats()
	fmt.Fprintf(out, "Added %d entries, skipped %d existing (seed %d) in %v\n",
		stats.Added, stats.Skipped, tree.Seed(), stats.Duration.Round(time.Millisecond))
	if ldap.IsSchemaError(err) {
		return fmt.Errorf("%w (the object classes in the format file do not fit the server schema)", err)
	}
	return err
}
