package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild state from the journal and verify it",
		Long: `Replay the operation journal from scratch and compare against the database.

Every journaled operation is re-applied in order to empty state. Replay
fails when any recomputed result differs from the recorded one or when the
rebuilt collections and books differ from the persisted ones.

Exit codes:
  0 - Replay reproduced the database exactly
  1 - Divergences detected
  2 - Command error (database not found, etc.)

Examples:
  harberger replay --db ./harberger.db
  harberger replay --db ./harberger.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.engine.VerifyReplay(commandContext(cmd))
			if err != nil {
				return s.out.FailWith(ErrCodeStore, ExitCommandError, err)
			}

			if !report.OK() {
				if s.out.JSON() {
					_ = s.out.Error(ErrCodeDivergence, fmt.Sprintf("%d divergence(s)", len(report.Divergences)), report)
				} else {
					fmt.Fprintf(s.out.Writer, "✗ Replay diverged after %d operation(s):\n", report.Operations)
					for _, d := range report.Divergences {
						fmt.Fprintf(s.out.Writer, "  %s\n", d)
					}
				}
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d divergence(s)", len(report.Divergences)), reported: true}
			}

			return s.out.Success(report, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Replayed %d operation(s): %d collection(s), %d book(s) match\n",
					report.Operations, report.Collections, report.Books)
			})
		},
	}
}
