// Package cmd implements the ldapfill command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/isometry/ldapfill/internal/config"
	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/format"
)

// globalFlags holds the persistent flags shared by every command.
var globalFlags struct {
	configPath string
	formatPath string
	base       string
	seed       uint64
	workers    int
	logLevel   string
}

// current is the configuration resolved before a command runs.
var current *settings

// settings is the resolved configuration with flags applied.
type settings struct {
	cfg *config.Config
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(f *pflag.FlagSet) {
	f.StringVarP(&globalFlags.configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	f.StringVarP(&globalFlags.formatPath, "format", "f", "", "Path to the format file (.toml or .hcl)")
	f.StringVarP(&globalFlags.base, "base", "b", "", "Base DN the generated tree is placed under")
	f.Uint64Var(&globalFlags.seed, "seed", 0, "Random seed, 0 for a random run")
	f.IntVarP(&globalFlags.workers, "workers", "w", 0, "Goroutines generating each level")
	f.StringVar(&globalFlags.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")
}

var rootCmd = &cobra.Command{
	Use:   "ldapfill",
	Short: "Generate synthetic LDAP directory content",
	Long: `ldapfill generates hierarchies of LDAP entries from a format file of
object class templates and exports them as LDIF, CSV or SQLite, adds them to a
directory server, or derives search queries from them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, err := resolveSettings(cmd)
		if err != nil {
			return err
		}
		current = s

		ctx := newLogContext(cmd.Context(), hclog.LevelFromString(s.cfg.Log))
		ctx = tflog.SetField(ctx, "command", cmd.Name())
		cmd.SetContext(ctx)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveSettings loads the configuration file and applies the flags the
// user set on top of it.
func resolveSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Flags()

	cfg, err := config.Load(globalFlags.configPath)
	switch {
	case err == nil:
		if dir := filepath.Dir(globalFlags.configPath); !filepath.IsAbs(cfg.Defaults.FormatFile) {
			cfg.Defaults.FormatFile = filepath.Join(dir, cfg.Defaults.FormatFile)
		}
	case errors.Is(err, fs.ErrNotExist) && !flags.Changed("config") && flags.Changed("format"):
		cfg = config.Default()
	case errors.Is(err, fs.ErrNotExist) && !flags.Changed("config"):
		return nil, fmt.Errorf("no configuration at %s: pass --config or --format", globalFlags.configPath)
	default:
		return nil, err
	}

	cfg.ApplyEnv()

	if flags.Changed("format") {
		cfg.Defaults.FormatFile = globalFlags.formatPath
	}
	if flags.Changed("base") {
		cfg.Defaults.Base = globalFlags.base
	}
	if flags.Changed("seed") {
		cfg.Defaults.Seed = globalFlags.seed
	}
	if flags.Changed("workers") {
		cfg.Defaults.Workers = globalFlags.workers
	}
	if flags.Changed("log-level") {
		cfg.Log = globalFlags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &settings{cfg: cfg}, nil
}

// loadFormat reads the format file named by the settings.
func (s *settings) loadFormat(ctx context.Context) (*format.Definition, error) {
	return format.Load(ctx, s.cfg.Defaults.FormatFile)
}

// base returns the base DN: flag or configuration first, then the format file.
func (s *settings) base(def *format.Definition) string {
	if s.cfg.Defaults.Base != "" {
		return s.cfg.Defaults.Base
	}
	return def.Base
}

// buildTree loads the format file and generates the whole tree.
func (s *settings) buildTree(ctx context.Context) (*entry.Tree, error) {
	def, err := s.loadFormat(ctx)
	if err != nil {
		return nil, err
	}

	b, err := entry.NewBuilder(def.Hierarchy,
		entry.WithBase(s.base(def)),
		entry.WithSeed(s.cfg.Defaults.Seed),
		entry.WithWorkers(s.cfg.Defaults.Workers),
	)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx)
}
