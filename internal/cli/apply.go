package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file.sql>",
		Short: "Execute a SQL script",
		Long: `Execute a SQL script, typically schema definitions or seed data.

Example:
  rowgate --db ./books.db apply schema.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}
}

func runApply(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	script, err := os.ReadFile(path)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeReadFile, fmt.Errorf("read script: %w", err))
	}

	s.out.VerboseLog("Applying %s", path)
	if err := s.store.Apply(commandContext(cmd), string(script)); err != nil {
		return s.fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{"applied": path})
	}
	return s.out.Success("Applied " + path)
}
