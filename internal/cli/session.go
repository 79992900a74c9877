package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/engine"
	"github.com/roach88/harberger/internal/store"
)

// session is the per-invocation environment shared by commands that touch
// the database.
type session struct {
	opts   *RootOptions
	out    *OutputFormatter
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
}

// newFormatter builds the formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		Decimals:  opts.Decimals,
	}
}

// newLogger writes text logs to the command's stderr: info by default,
// debug under --verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSession opens the database and builds an engine over it.
func openSession(opts *RootOptions, cmd *cobra.Command, engineOpts ...engine.Option) (*session, error) {
	out := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd)

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, out.FailWith(ErrCodeStore, ExitCommandError, fmt.Errorf("open database: %w", err))
	}

	eopts := append([]engine.Option{engine.WithLogger(logger)}, engineOpts...)
	return &session{
		opts:   opts,
		out:    out,
		logger: logger,
		store:  st,
		engine: engine.New(st, eopts...),
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// opFlags are the flags shared by every ledger mutation.
type opFlags struct {
	At        uint64
	RequestID string
}

func (f *opFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.At, "at", 0, "operation time in Unix seconds (default now)")
	cmd.Flags().StringVar(&f.RequestID, "request-id", "", "idempotency key (default generated)")
}

// at resolves --at, reading the clock only when the flag is absent.
func (f *opFlags) at(opts *RootOptions, cmd *cobra.Command) uint64 {
	if cmd.Flags().Changed("at") {
		return f.At
	}
	return uint64(opts.now().Unix())
}
