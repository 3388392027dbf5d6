package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete one row by primary key",
		Long: `Delete the row of a table with the given primary key value.
Deleting a row that does not exist is not an error.

Example:
  rowgate --db ./books.db delete book 4`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDelete(opts *RootOptions, tableName, id string, cmd *cobra.Command) error {
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

	deleted, err := m.Delete(ctx, parseValue(id))
	if err != nil {
		return s.fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]bool{"deleted": deleted})
	}
	if !deleted {
		return s.out.Success(fmt.Sprintf("No %s row with id %s", tableName, id))
	}
	return s.out.Success(fmt.Sprintf("Deleted %s %s", tableName, id))
}
