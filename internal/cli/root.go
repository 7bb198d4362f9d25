// Package cli implements the fedq command line: describe, explain, run,
// load and test.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fedq/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fedq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fedq",
		Short: "fedq - federated query engine",
		Long: `Evaluate query plans over a local triple store, delegating the parts
of a query that external services own to those services.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ./fedq.yaml)")

	// Defaults live in config.Defaults; flags only override when set.
	flags.String("db", "", "path to the SQLite triple store")
	flags.String("services", "", "directory of CUE service specs")
	flags.Int("parallelism", 0, "concurrent invocations per delegated join")
	flags.Int64("max-invocations", 0, "service calls allowed per query (0 = unlimited)")
	flags.Int("cache-size", 0, "per-service result cache entries (0 = off)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.Duration("timeout", 0, "timeout for services that declare none")

	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig resolves the configuration for cmd.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// logger builds the stderr logger. --verbose forces debug level.
func (o *RootOptions) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level, _ := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
