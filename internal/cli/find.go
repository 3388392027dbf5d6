package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Limit  uint64
	Offset uint64
	Order  []string
	Count  bool
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <table> [col=value...]",
		Short: "Print the rows matching column values",
		Long: `Print the rows of a table whose columns equal the given values.
Without conditions every row is printed, in primary key order unless
--order is given.

Example:
  rowgate --db ./books.db find book author_id=1 --order "year DESC" --limit 2
  rowgate --db ./books.db find book en_title=null --count`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Limit, "limit", 0, "maximum number of rows (0 for all)")
	cmd.Flags().Uint64Var(&opts.Offset, "offset", 0, "number of rows to skip")
	cmd.Flags().StringSliceVar(&opts.Order, "order", nil, "ORDER BY terms, e.g. \"year DESC\"")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matching rows only")

	return cmd
}

func runFind(opts *FindOptions, tableName string, conds []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	by, err := parseAssignments(conds)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeInvalidArgument, err)
	}

	ctx := commandContext(cmd)
	m, err := s.manager(ctx, tableName)
	if err != nil {
		return err
	}

	sel := m.FindBy(by)
	if opts.Count {
		n, err := sel.Count(ctx)
		if err != nil {
			return s.fail(err)
		}
		if s.out.Format == "json" {
			return s.out.Success(map[string]int64{"count": n})
		}
		return s.out.Success(fmt.Sprint(n))
	}

	if len(opts.Order) > 0 {
		sel.Order(opts.Order...)
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		sel.Offset(opts.Offset)
	}

	rows, err := sel.FetchAll(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.out.VerboseLog("%d row(s) from %s", len(rows), tableName)
	return s.out.Rows(entityMaps(rows))
}
