package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/value"
)

// Explanation is the statement a query enumerates with.
type Explanation struct {
	Statement string `json:"statement"`
	Params    []any  `json:"params"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Print the SQL a query runs",
		Long: `Print the SQL statement the SQL backend runs for a query, with its
parameters, without running it.

Without --dsn the dataset is loaded into an in-memory SQLite database.
Queries ending in a join are merged in process and have no single
statement.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, text string, cmd *cobra.Command) error {
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

	fragments, values := s.splice(text)
	c, err := s.engine.Query(ctx, fragments, values)
	if err != nil {
		return formatter.QueryError(err)
	}

	sc, ok := c.(*querysql.Collection)
	if !ok {
		if err := formatter.Error("E_NO_STATEMENT", fmt.Sprintf("query runs in memory (%T), not as one SQL statement", c), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "query has no single SQL statement")
	}

	q, args := sc.SQL()
	if args == nil {
		args = []any{}
	}
	if opts.Format == "json" {
		return formatter.Success(Explanation{Statement: q, Params: args})
	}
	fmt.Fprintln(formatter.Writer, q)
	if len(args) > 0 {
		fmt.Fprintf(formatter.Writer, "params: %s\n", value.Format(args))
	}
	return nil
}
