package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <table> col=value...",
		Short: "Insert a row and print it",
		Long: `Insert a row and print it as stored, including database defaults.

Example:
  rowgate --db ./books.db create book title=Krakatit author_id=1 year=1924`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, args[0], args[1:], false, cmd)
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> col=value...",
		Short: "Update a row and print it",
		Long: `Update the row identified by the primary key assignment and print it.
The primary key column must be one of the assignments.

Example:
  rowgate --db ./books.db update book id=2 year=1925`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, args[0], args[1:], true, cmd)
		},
	}
}

func runWrite(opts *RootOptions, tableName string, assignments []string, update bool, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	values, err := parseAssignments(assignments)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeInvalidArgument, err)
	}

	ctx := commandContext(cmd)
	m, err := s.manager(ctx, tableName)
	if err != nil {
		return err
	}

	tx, err := m.BeginTransaction(ctx)
	if err != nil {
		return s.fail(err)
	}

	write := tx.Create
	if update {
		write = tx.Update
	}
	e, err := write(ctx, values)
	if err != nil {
		return s.fail(errors.Join(err, tx.Rollback()))
	}
	if err := tx.Commit(); err != nil {
		return s.fail(err)
	}
	return s.out.Rows([]map[string]any{e.ToMap()})
}
