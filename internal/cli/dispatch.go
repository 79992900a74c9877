package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/engine"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Limit    int
	Watch    bool
	Interval time.Duration

	// Transferer overrides the delivery backend (for testing).
	// If nil, transfers are written to the log.
	Transferer engine.CustodyTransferer
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver pending custody transfers",
		Long: `Deliver pending records from the custody-transfer outbox.

Successful foreclosure claims queue a custody transfer in the same
transaction that changes the custodian. This command delivers them in
order and marks each one sent; a failed delivery stops the pass and is
retried next time. Without an asset-transfer backend, transfers are
written to the log.

With --watch, dispatch keeps polling until interrupted.

Examples:
  harberger dispatch
  harberger dispatch --watch --interval 10s --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum transfers per pass (0 = all)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep polling until interrupted")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 5*time.Second, "poll interval with --watch")

	return cmd
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)
	transferer := opts.Transferer
	if transferer == nil {
		transferer = engine.LogTransferer{Logger: logger}
	}
	s, err := openSession(opts.RootOptions, cmd, engine.WithCustodyTransferer(transferer))
	if err != nil {
		return err
	}
	defer s.Close()

	if !opts.Watch {
		res, err := s.engine.DispatchCustodyTransfers(commandContext(cmd), opts.Limit)
		if err != nil {
			return s.out.FailWith(ErrCodeGeneric, ExitFailure, err)
		}
		return s.out.Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "Delivered %d of %d pending custody transfer(s)\n", len(res.Sent), res.Pending)
			for _, t := range res.Sent {
				fmt.Fprintf(w, "  #%d %s: %s -> %s\n", t.ID, t.Key(), t.FromCustodian, t.ToCustodian)
			}
		})
	}

	if opts.Interval <= 0 {
		return s.out.FailWith(ErrCodeInvalidArgs, ExitCommandError, fmt.Errorf("invalid interval %s", opts.Interval))
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("dispatcher started", "db", opts.Database, "interval", opts.Interval)
	total := watchDispatch(ctx, s.engine, s.logger, opts.Limit, opts.Interval)
	s.logger.Info("dispatcher stopped", "delivered", total)
	return nil
}

// watchDispatch runs dispatch passes until ctx is done and returns the
// number of transfers delivered. Failed passes are logged and retried on
// the next tick.
func watchDispatch(ctx context.Context, eng *engine.Engine, logger *slog.Logger, limit int, interval time.Duration) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := 0
	for {
		res, err := eng.DispatchCustodyTransfers(ctx, limit)
		total += len(res.Sent)
		switch {
		case ctx.Err() != nil:
			return total
		case err != nil:
			logger.Warn("dispatch pass failed", "error", err)
		case len(res.Sent) > 0:
			logger.Info("dispatch pass", "sent", len(res.Sent), "pending", res.Pending)
		}

		select {
		case <-ctx.Done():
			return total
		case <-ticker.C:
		}
	}
}
