package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/rowgate/table"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Print one row by primary key",
		Long: `Print the row of a table with the given primary key value.

Example:
  rowgate --db ./books.db get book 1
  rowgate --db ./books.db --format json get note "'42'"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runGet(opts *RootOptions, tableName, id string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := commandContext(cmd)
	m, err := s.manager(ctx, tableName)
	if err != nil {
		return err
	}

	e, err := m.Get(ctx, parseValue(id))
	if err != nil {
		return s.fail(err)
	}
	return s.out.Rows([]map[string]any{e.ToMap()})
}

func entityMaps(rows []*table.Entity) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.ToMap())
	}
	return out
}
