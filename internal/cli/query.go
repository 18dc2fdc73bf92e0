package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/linx/internal/collection"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Limit int // stop after this many rows; 0 for all
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run a query",
		Long: `Run a query and print its rows.

$name references in the query are bound to the dataset table name, or
with --dsn to the database table name.

Exit codes:
  0 - Query ran
  1 - Query failed (parse, semantic, translation or not implemented)
  2 - Command error (dataset, database, configuration)

Examples:
  linx query -d people.cue 'p in $people where p.age > 30 select p.name'
  linx query --dsn app.db 'o in $orders where o.total > 100' --format table
  linx query 'n in [3, 1, 2] order by n'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most this many rows")

	return cmd
}

func runQuery(opts *QueryOptions, text string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openSession(ctx, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer s.Close()

	fragments, values := s.splice(text)
	c, err := s.engine.Query(ctx, fragments, values)
	if err != nil {
		return formatter.QueryError(err)
	}

	rows, err := collect(ctx, c, opts.Limit)
	if err != nil {
		return formatter.QueryError(err)
	}
	formatter.VerboseLog("%d row(s)", len(rows))
	return formatter.Rows(rows)
}

// collect enumerates c, closing the cursor after limit rows when limit is
// positive.
func collect(ctx context.Context, c collection.Collection, limit int) ([]any, error) {
	if limit <= 0 {
		return c.ToSlice(ctx)
	}
	cur, err := c.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	rows := []any{}
	for len(rows) < limit && cur.Next(ctx) {
		rows = append(rows, cur.Value())
	}
	return rows, cur.Err()
}
