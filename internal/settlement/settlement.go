package settlement

import (
	"github.com/roach88/harberger/internal/accrual"
	"github.com/roach88/harberger/internal/ledger"
)

// Settle debits tax accrued since the last settlement from the escrow.
//
// The accrual clock always advances to now, even under shortfall. Tax the
// escrow cannot cover is added to the deficit and the asset becomes
// foreclosure eligible; this is a normal outcome, not an error.
func Settle(book *ledger.Book, rate, now uint64) (SettlementResult, error) {
	next := book.Clone()
	res, err := settle(next, rate, now)
	if err != nil {
		return SettlementResult{}, err
	}
	if err := publish(book, next); err != nil {
		return SettlementResult{}, err
	}
	return res, nil
}

// Deposit settles, then applies amount: first to any outstanding deficit,
// the remainder to escrow and the depositor's record. Curing the whole
// deficit returns the asset to active.
func Deposit(book *ledger.Book, rate uint64, depositorID string, amount, now uint64) (DepositResult, error) {
	if amount == 0 {
		return DepositResult{}, ledger.NewInvalidAmountError(book.Ledger.Key(), "deposit")
	}
	next := book.Clone()
	res, err := settle(next, rate, now)
	if err != nil {
		return DepositResult{}, err
	}

	l := &next.Ledger
	cured := min(amount, l.Deficit)
	l.Deficit -= cured
	credited := amount - cured

	if l.EscrowBalance, err = ledger.AddChecked(l.EscrowBalance, credited); err != nil {
		return DepositResult{}, err
	}
	if err := next.Credit(depositorID, credited); err != nil {
		return DepositResult{}, err
	}
	if l.Deficit == 0 {
		l.State = ledger.StateActive
	}

	if err := publish(book, next); err != nil {
		return DepositResult{}, err
	}
	return DepositResult{
		Settlement:    res,
		Cured:         cured,
		Credited:      credited,
		Contribution:  book.Contribution(depositorID),
		EscrowBalance: book.Ledger.EscrowBalance,
		State:         book.Ledger.State,
	}, nil
}

// Withdraw settles, then returns amount of the depositor's post-tax
// contribution.
func Withdraw(book *ledger.Book, rate uint64, depositorID string, amount, now uint64) (WithdrawResult, error) {
	if amount == 0 {
		return WithdrawResult{}, ledger.NewInvalidAmountError(book.Ledger.Key(), "withdraw")
	}
	next := book.Clone()
	res, err := settle(next, rate, now)
	if err != nil {
		return WithdrawResult{}, err
	}
	if err := next.Debit(depositorID, amount); err != nil {
		return WithdrawResult{}, err
	}
	next.Ledger.EscrowBalance -= amount

	if err := publish(book, next); err != nil {
		return WithdrawResult{}, err
	}
	return WithdrawResult{
		Settlement:    res,
		Withdrawn:     amount,
		Contribution:  book.Contribution(depositorID),
		EscrowBalance: book.Ledger.EscrowBalance,
	}, nil
}

// ClaimForeclosure settles, then transfers custody to the claimant if the
// asset is foreclosure eligible and payment covers the outstanding deficit.
//
// Eligibility is judged after the claim's own settlement, so an asset whose
// escrow runs out by the claim time can be claimed. On success the escrow and
// every depositor record are reset; an eligible asset has an empty escrow, so
// every contribution was already consumed as tax.
func ClaimForeclosure(book *ledger.Book, rate uint64, claimantID string, payment, now uint64) (ClaimResult, error) {
	key := book.Ledger.Key()
	if payment == 0 {
		return ClaimResult{}, ledger.NewInvalidAmountError(key, "foreclosure payment")
	}
	next := book.Clone()
	res, err := settle(next, rate, now)
	if err != nil {
		return ClaimResult{}, err
	}

	l := &next.Ledger
	if l.State != ledger.StateForeclosureEligible {
		return ClaimResult{}, ledger.NewNotEligibleError(key)
	}
	if payment < l.Deficit {
		return ClaimResult{}, ledger.NewInsufficientPaymentError(key, payment, l.Deficit)
	}

	out := ClaimResult{
		Settlement:        res,
		DeficitPaid:       l.Deficit,
		Excess:            payment - l.Deficit,
		PreviousCustodian: l.CustodianID,
		NewCustodian:      claimantID,
	}

	l.EscrowBalance = 0
	l.Deficit = 0
	l.LastSettlement = now
	l.State = ledger.StateActive
	l.CustodianID = claimantID
	next.Depositors = []ledger.DepositorRecord{}

	if err := publish(book, next); err != nil {
		return ClaimResult{}, err
	}
	return out, nil
}

// settle applies accrual to b in place. Callers pass a clone.
func settle(b *ledger.Book, rate, now uint64) (SettlementResult, error) {
	l := &b.Ledger
	owed, err := accrual.ComputeOwed(rate, l.LastSettlement, now)
	if err != nil {
		return SettlementResult{}, err
	}

	res := SettlementResult{
		Owed:          owed,
		Elapsed:       now - l.LastSettlement,
		PreviousState: l.State,
	}
	res.Debited = min(owed, l.EscrowBalance)
	res.Deficit = owed - res.Debited

	if res.Debited > 0 {
		if err := debitPool(b, res.Debited); err != nil {
			return SettlementResult{}, err
		}
	}
	if l.Deficit, err = ledger.AddChecked(l.Deficit, res.Deficit); err != nil {
		return SettlementResult{}, err
	}
	l.LastSettlement = now
	if l.Deficit > 0 {
		l.State = ledger.StateForeclosureEligible
	}

	res.OutstandingDeficit = l.Deficit
	res.State = l.State
	return res, nil
}

// debitPool takes debit from the escrow and spreads it over the depositor
// records so their sum keeps matching the escrow.
func debitPool(b *ledger.Book, debit uint64) error {
	contributions := make([]uint64, len(b.Depositors))
	for i, d := range b.Depositors {
		contributions[i] = d.AmountContributed
	}
	shares, err := allocateDebit(debit, contributions)
	if err != nil {
		return err
	}
	for i := range b.Depositors {
		b.Depositors[i].AmountContributed -= shares[i]
	}
	b.Compact()
	b.Ledger.EscrowBalance -= debit
	return nil
}

// publish checks invariants on next and copies it into book.
func publish(book, next *ledger.Book) error {
	if err := next.CheckInvariants(); err != nil {
		return err
	}
	*book = *next
	return nil
}
