package settlement

import "github.com/roach88/harberger/internal/ledger"

// SettlementResult reports the outcome of one accrual settlement.
type SettlementResult struct {
	// Owed is the tax accrued over the settled interval.
	Owed uint64 `json:"owed"`

	// Debited is the part of Owed taken from escrow: min(Owed, escrow).
	Debited uint64 `json:"debited"`

	// Deficit is the part of Owed the escrow could not cover. Non-zero
	// means this settlement found a shortfall.
	Deficit uint64 `json:"deficit"`

	// OutstandingDeficit is the total unpaid tax after this settlement.
	OutstandingDeficit uint64 `json:"outstanding_deficit"`

	// Elapsed is the settled interval length.
	Elapsed uint64 `json:"elapsed"`

	PreviousState ledger.AssetState `json:"previous_state"`
	State         ledger.AssetState `json:"state"`
}

// Shortfall reports whether escrow could not cover the accrued tax.
func (r SettlementResult) Shortfall() bool {
	return r.Deficit > 0
}

// BecameEligible reports whether this settlement moved the asset into
// foreclosure eligibility.
func (r SettlementResult) BecameEligible() bool {
	return r.PreviousState == ledger.StateActive && r.State == ledger.StateForeclosureEligible
}

// DepositResult reports the outcome of a deposit.
type DepositResult struct {
	Settlement SettlementResult `json:"settlement"`

	// Cured is the part of the deposit applied to the outstanding deficit.
	Cured uint64 `json:"cured"`

	// Credited is the part added to escrow and the depositor's record.
	Credited uint64 `json:"credited"`

	Contribution  uint64            `json:"contribution"`
	EscrowBalance uint64            `json:"escrow_balance"`
	State         ledger.AssetState `json:"state"`
}

// WithdrawResult reports the outcome of a withdrawal.
type WithdrawResult struct {
	Settlement    SettlementResult `json:"settlement"`
	Withdrawn     uint64           `json:"withdrawn"`
	Contribution  uint64           `json:"contribution"`
	EscrowBalance uint64           `json:"escrow_balance"`
}

// ClaimResult reports the outcome of a successful foreclosure claim.
type ClaimResult struct {
	Settlement SettlementResult `json:"settlement"`

	// DeficitPaid is the outstanding deficit settled by the claimant.
	DeficitPaid uint64 `json:"deficit_paid"`

	// Excess is the part of the payment above the deficit. It is not
	// retained; the funds-transfer layer returns it to the claimant.
	Excess uint64 `json:"excess"`

	PreviousCustodian string `json:"previous_custodian"`
	NewCustodian      string `json:"new_custodian"`
}
