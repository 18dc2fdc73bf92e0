package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/linx/internal/value"
)

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns <table>",
		Short: "List the columns of a table",
		Long: `List the columns the SQL backend discovers for a table, in table order.

Without --dsn the dataset is loaded into an in-memory SQLite database
first, which shows the columns its tables are seeded with.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runColumns(opts *RootOptions, table string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openSession(ctx, opts, true)
	if err != nil {
		return err
	}
	defer s.Close()

	cols, err := s.columns(ctx, table)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to discover columns", err)
	}
	if len(cols) == 0 {
		if err := formatter.Error("E_NO_TABLE", fmt.Sprintf("table %s not found", table), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("table %s not found", table))
	}

	switch opts.Format {
	case "json":
		return formatter.Success(cols)
	case "table":
		rows := make([]any, len(cols))
		for i, c := range cols {
			rows[i] = value.Single("column", c)
		}
		return formatter.Rows(rows)
	}
	fmt.Fprintln(formatter.Writer, strings.Join(cols, "\n"))
	return nil
}
