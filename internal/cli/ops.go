package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/engine"
	"github.com/roach88/harberger/internal/settlement"
)

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	cmd := &cobra.Command{
		Use:   "deposit <collection> <asset> <depositor> <amount>",
		Short: "Add funds to an asset's escrow",
		Long: `Record a deposit into an asset's escrow.

Accrued tax is settled first. The deposit pays down any outstanding deficit
before the rest is credited to the depositor. The first deposit to an asset
opens its ledger with the depositor as custodian.

Examples:
  harberger deposit punks 42 alice 100
  harberger deposit punks 42 alice 1.5 --decimals 6 --request-id dep-7`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			amount, err := parseAmount(args[3], rootOpts.Decimals)
			if err != nil {
				return out.FailWith(ErrCodeInvalidArgs, ExitCommandError, err)
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.Deposit(commandContext(cmd), engine.DepositRequest{
				RequestID:    flags.RequestID,
				CollectionID: args[0],
				AssetID:      args[1],
				DepositorID:  args[2],
				Amount:       amount,
				At:           flags.at(rootOpts, cmd),
			})
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Deposited %s to %s/%s\n", s.out.Amount(amount), args[0], args[1])
				writeSettlement(w, s.out, res.Settlement)
				if res.Cured > 0 {
					fmt.Fprintf(w, "  cured deficit: %s\n", s.out.Amount(res.Cured))
				}
				fmt.Fprintf(w, "  credited:      %s\n", s.out.Amount(res.Credited))
				fmt.Fprintf(w, "  contribution:  %s\n", s.out.Amount(res.Contribution))
				fmt.Fprintf(w, "  escrow:        %s\n", s.out.Amount(res.EscrowBalance))
				fmt.Fprintf(w, "  state:         %s\n", res.State)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	cmd := &cobra.Command{
		Use:   "withdraw <collection> <asset> <depositor> <amount>",
		Short: "Return part of a depositor's contribution",
		Long: `Withdraw from a depositor's contribution after settling accrued tax.

Fails with INSUFFICIENT_CONTRIBUTION when the post-tax contribution is
smaller than the amount.

Example:
  harberger withdraw punks 42 alice 25`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			amount, err := parseAmount(args[3], rootOpts.Decimals)
			if err != nil {
				return out.FailWith(ErrCodeInvalidArgs, ExitCommandError, err)
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.Withdraw(commandContext(cmd), engine.WithdrawRequest{
				RequestID:    flags.RequestID,
				CollectionID: args[0],
				AssetID:      args[1],
				DepositorID:  args[2],
				Amount:       amount,
				At:           flags.at(rootOpts, cmd),
			})
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Withdrew %s from %s/%s\n", s.out.Amount(res.Withdrawn), args[0], args[1])
				writeSettlement(w, s.out, res.Settlement)
				fmt.Fprintf(w, "  contribution:  %s\n", s.out.Amount(res.Contribution))
				fmt.Fprintf(w, "  escrow:        %s\n", s.out.Amount(res.EscrowBalance))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewSettleCommand creates the settle command.
func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	cmd := &cobra.Command{
		Use:   "settle <collection> <asset>",
		Short: "Debit accrued tax from an asset's escrow",
		Long: `Settle tax accrued since the asset's last settlement.

A shortfall is not an error: the unpaid part becomes deficit and the asset
becomes eligible for foreclosure.

Example:
  harberger settle punks 42 --at 1700000000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.Settle(commandContext(cmd), engine.SettleRequest{
				RequestID:    flags.RequestID,
				CollectionID: args[0],
				AssetID:      args[1],
				At:           flags.at(rootOpts, cmd),
			})
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Settled %s/%s\n", args[0], args[1])
				writeSettlement(w, s.out, res)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	cmd := &cobra.Command{
		Use:   "claim <collection> <asset> <claimant> <payment>",
		Short: "Take custody of a foreclosure-eligible asset",
		Long: `Claim an asset whose escrow could not cover its tax.

The payment must cover the outstanding deficit after settlement at --at.
Any excess is reported, not retained. A change of custodian is queued in
the custody-transfer outbox; deliver it with "harberger dispatch".

Example:
  harberger claim punks 42 carol 20`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			payment, err := parseAmount(args[3], rootOpts.Decimals)
			if err != nil {
				return out.FailWith(ErrCodeInvalidArgs, ExitCommandError, err)
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.ClaimForeclosure(commandContext(cmd), engine.ClaimRequest{
				RequestID:    flags.RequestID,
				CollectionID: args[0],
				AssetID:      args[1],
				ClaimantID:   args[2],
				Payment:      payment,
				At:           flags.at(rootOpts, cmd),
			})
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Claimed %s/%s\n", args[0], args[1])
				writeSettlement(w, s.out, res.Settlement)
				fmt.Fprintf(w, "  deficit paid:  %s\n", s.out.Amount(res.DeficitPaid))
				if res.Excess > 0 {
					fmt.Fprintf(w, "  excess:        %s (not retained)\n", s.out.Amount(res.Excess))
				}
				fmt.Fprintf(w, "  custodian:     %s -> %s\n", res.PreviousCustodian, res.NewCustodian)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// writeSettlement renders the settlement step of an operation. Zero-length
// settlements are omitted.
func writeSettlement(w io.Writer, out *OutputFormatter, r settlement.SettlementResult) {
	if r.Elapsed == 0 && r.Owed == 0 {
		return
	}
	fmt.Fprintf(w, "  settled:       %s over %d units (debited %s", out.Amount(r.Owed), r.Elapsed, out.Amount(r.Debited))
	if r.Shortfall() {
		fmt.Fprintf(w, ", shortfall %s", out.Amount(r.Deficit))
	}
	fmt.Fprintln(w, ")")
	if r.BecameEligible() {
		fmt.Fprintf(w, "  now foreclosure eligible, deficit %s\n", out.Amount(r.OutstandingDeficit))
	}
}
