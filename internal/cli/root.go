package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "text" | "json" | "table"
	Driver     string // sqlite3 | postgres | mysql
	DSN        string // database to query; empty for the memory backend
	Dataset    string // dataset file or directory

	// Logger is built from Verbose once the configuration is loaded.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "table"}

// logger returns the configured logger, discarding when none is set.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// NewRootCommand creates the root command for the linx CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linx",
		Short: "linx - LINQ-style queries over data and databases",
		Long: `Run LINQ-style queries over datasets in memory or over SQL tables.

Queries reference tables as $name. With --dsn they run on the database,
translating filters and projections to SQL; otherwise they run in memory
over the tables of --dataset.

Settings come from flags, LINX_* environment variables and linx.yaml.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, used, err := LoadConfig(opts.ConfigFile, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Verbose = cfg.Verbose
			opts.Format = cfg.Format
			opts.Driver = cfg.Driver
			opts.DSN = cfg.DSN
			opts.Dataset = cfg.Dataset

			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			if used != "" {
				opts.Logger.Debug("loaded config", "file", used)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./linx.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|table)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "sqlite3", "database driver (sqlite3|postgres|mysql)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database to query (default: memory backend)")
	cmd.PersistentFlags().StringVarP(&opts.Dataset, "dataset", "d", "", "dataset file or directory (.cue, .yaml, .json)")

	// Add subcommands
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewColumnsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
