package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/store"
)

// HistoryEntry is one journal row as shown by the history command.
type HistoryEntry struct {
	Seq       int64           `json:"seq"`
	RequestID string          `json:"request_id"`
	Kind      string          `json:"kind"`
	Asset     string          `json:"asset,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Amount    uint64          `json:"amount"`
	At        uint64          `json:"at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var asset string
	var withResults bool
	cmd := &cobra.Command{
		Use:   "history <collection>",
		Short: "List journaled operations of a collection",
		Long: `List the committed operations of a collection in journal order.

Only successful operations are journaled. Use --asset to narrow the list
to one asset; collection-wide operations (registration, rate changes) are
always included.

Examples:
  harberger history punks
  harberger history punks --asset 42 --results --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.store.ReadOperations(commandContext(cmd))
			if err != nil {
				return s.out.FailWith(ErrCodeStore, ExitCommandError, err)
			}
			entries := historyEntries(records, args[0], asset, withResults)

			return s.out.Success(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintf(w, "No operations for %s.\n", args[0])
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%6d  %-18s %-10s %-12s %12s  at=%d  %s\n",
						e.Seq, e.Kind, e.Asset, e.Actor, s.out.Amount(e.Amount), e.At, e.RequestID)
				}
			})
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "", "only operations on this asset")
	cmd.Flags().BoolVar(&withResults, "results", false, "include recorded results")
	return cmd
}

func historyEntries(records []store.OperationRecord, collectionID, assetID string, withResults bool) []HistoryEntry {
	entries := []HistoryEntry{}
	for _, rec := range records {
		if rec.CollectionID != collectionID {
			continue
		}
		if assetID != "" && rec.AssetID != "" && rec.AssetID != assetID {
			continue
		}
		e := HistoryEntry{
			Seq:       rec.Seq,
			RequestID: rec.RequestID,
			Kind:      string(rec.Kind),
			Asset:     rec.AssetID,
			Actor:     rec.ActorID,
			Amount:    rec.Amount,
			At:        rec.At,
		}
		if withResults {
			e.Result = json.RawMessage(rec.Result)
		}
		entries = append(entries, e)
	}
	return entries
}
