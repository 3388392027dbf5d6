package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rowgate/config"
	"github.com/roach88/rowgate/store"
	"github.com/roach88/rowgate/table"
)

// session is the state shared by one command run: the resolved config, the
// open store and the output formatter.
type session struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads the config, applies flag overrides and opens the store.
// Failures are reported through the formatter and returned as command errors.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if opts.Database != "" {
		cfg.Database.DSN = opts.Database
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.Lang != "" {
		cfg.Lang = opts.Lang
	}
	if err := cfg.Validate(); err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	logger.Debug("opening database", "driver", cfg.Database.Driver, "dsn", cfg.Database.DSN)
	st, err := cfg.Open(store.WithLogger(logger))
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeOpen, err)
	}

	return &session{cfg: cfg, store: st, logger: logger, out: out}, nil
}

// manager returns the manager of name configured with the session's
// settings and language.
func (s *session) manager(ctx context.Context, name string) (*table.Manager, error) {
	m, err := table.NewManager(ctx, s.store, s.cfg.Settings(), name, table.WithLogger(s.logger))
	if err != nil {
		return nil, s.fail(err)
	}
	if err := m.SetLang(s.cfg.Lang); err != nil {
		return nil, s.fail(err)
	}
	return m, nil
}

// fail reports an operation error.
func (s *session) fail(err error) error {
	return s.out.Fail(ExitFailure, errorCode(err), err)
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
