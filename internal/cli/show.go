package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/settlement"
)

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Collection ledger.CollectionParameters `json:"collection"`
	Books      []*ledger.Book              `json:"books"`

	// Projection is set when --at asks for a projected single asset.
	Projection *settlement.SettlementResult `json:"projection,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var at uint64
	cmd := &cobra.Command{
		Use:   "show <collection> [asset]",
		Short: "Show a collection and its asset ledgers",
		Long: `Show a collection's parameters and the books of its assets.

Books are shown as of their last settlement. With an asset and --at, the
book is projected to that time without persisting anything.

Examples:
  harberger show punks
  harberger show punks 42 --at 1700000000`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := commandContext(cmd)

			c, err := s.engine.Collection(ctx, args[0])
			if err != nil {
				return s.out.Fail(err)
			}
			res := ShowResult{Collection: c}

			switch {
			case len(args) == 2 && cmd.Flags().Changed("at"):
				key := ledger.AssetKey{CollectionID: args[0], AssetID: args[1]}
				b, proj, err := s.engine.Quote(ctx, key, at)
				if err != nil {
					return s.out.Fail(err)
				}
				res.Books = []*ledger.Book{b}
				res.Projection = &proj
			case len(args) == 2:
				b, err := s.engine.Book(ctx, ledger.AssetKey{CollectionID: args[0], AssetID: args[1]})
				if err != nil {
					return s.out.Fail(err)
				}
				res.Books = []*ledger.Book{b}
			default:
				books, err := s.engine.Books(ctx, args[0])
				if err != nil {
					return s.out.Fail(err)
				}
				res.Books = books
			}

			return s.out.Success(res, func(w io.Writer) {
				writeCollection(w, s.out, res.Collection)
				if res.Projection != nil {
					fmt.Fprintf(w, "projected to %d\n", at)
					writeSettlement(w, s.out, *res.Projection)
				}
				if len(res.Books) == 0 {
					fmt.Fprintln(w, "No asset ledgers.")
				}
				for _, b := range res.Books {
					writeBook(w, s.out, b)
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&at, "at", 0, "project the asset's book to this time")
	return cmd
}

func writeBook(w io.Writer, out *OutputFormatter, b *ledger.Book) {
	l := b.Ledger
	fmt.Fprintf(w, "%s  custodian=%s state=%s escrow=%s deficit=%s last_settlement=%d\n",
		l.AssetID, l.CustodianID, l.State, out.Amount(l.EscrowBalance), out.Amount(l.Deficit), l.LastSettlement)
	for _, d := range b.Depositors {
		fmt.Fprintf(w, "    %-20s %s\n", d.DepositorID, out.Amount(d.AmountContributed))
	}
}
