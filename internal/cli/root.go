package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string

	// Decimals scales amounts in arguments and text output. JSON output
	// always carries base units.
	Decimals int32

	// Clock supplies the default --at value. Nil means time.Now.
	Clock func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// maxDecimals bounds --decimals to what a uint64 amount can carry.
const maxDecimals = 19

// NewRootCommand creates the root command for the harberger CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// newRootCommand builds the command tree over opts; flags fill opts in.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harberger",
		Short: "Harberger-tax escrow settlement engine",
		Long: `Settle continuous Harberger taxes against pooled escrow deposits.

Each asset carries an escrow funded by any number of depositors. Tax accrues
at the collection's rate and is debited pro rata from their contributions;
once the escrow runs dry the asset becomes eligible for foreclosure and
anyone paying the outstanding deficit takes custody.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Decimals < 0 || opts.Decimals > maxDecimals {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid decimals %d: must be between 0 and %d", opts.Decimals, maxDecimals))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "harberger.db", "path to SQLite database")
	cmd.PersistentFlags().Int32Var(&opts.Decimals, "decimals", 0, "decimal places of the denomination for amount input and display")

	cmd.AddCommand(NewCollectionCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewSettleCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}
