package ledger

import (
	"fmt"
	"sort"
)

// Book is an asset ledger together with its depositor records.
//
// INVARIANTS (checked by CheckInvariants after every committed operation):
//   - Depositors sorted by DepositorID, no duplicates, no zero contributions
//   - Sum of contributions == Ledger.EscrowBalance
//   - Ledger.Deficit > 0 iff Ledger.State == StateForeclosureEligible
//   - Ledger.Deficit > 0 implies Ledger.EscrowBalance == 0
type Book struct {
	Ledger     AssetLedger       `json:"ledger"`
	Depositors []DepositorRecord `json:"depositors"`
}

// NewBook creates an empty active book whose accrual clock starts at `at`.
func NewBook(collectionID, assetID, custodianID string, at uint64) *Book {
	return &Book{
		Ledger: AssetLedger{
			CollectionID:   collectionID,
			AssetID:        assetID,
			CustodianID:    custodianID,
			LastSettlement: at,
			State:          StateActive,
		},
		Depositors: []DepositorRecord{},
	}
}

// Clone returns a deep copy. Operations mutate a clone and publish it only
// when they succeed.
func (b *Book) Clone() *Book {
	c := &Book{
		Ledger:     b.Ledger,
		Depositors: make([]DepositorRecord, len(b.Depositors)),
	}
	copy(c.Depositors, b.Depositors)
	return c
}

// Contribution returns the depositor's current share, zero if absent.
func (b *Book) Contribution(depositorID string) uint64 {
	if i, ok := b.find(depositorID); ok {
		return b.Depositors[i].AmountContributed
	}
	return 0
}

// Credit adds amount to the depositor's record, creating it if absent.
func (b *Book) Credit(depositorID string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	i, ok := b.find(depositorID)
	if !ok {
		rec := DepositorRecord{
			CollectionID:      b.Ledger.CollectionID,
			AssetID:           b.Ledger.AssetID,
			DepositorID:       depositorID,
			AmountContributed: amount,
		}
		b.Depositors = append(b.Depositors, DepositorRecord{})
		copy(b.Depositors[i+1:], b.Depositors[i:])
		b.Depositors[i] = rec
		return nil
	}
	sum, err := AddChecked(b.Depositors[i].AmountContributed, amount)
	if err != nil {
		return err
	}
	b.Depositors[i].AmountContributed = sum
	return nil
}

// Debit removes amount from the depositor's record and drops the record
// when it reaches zero.
func (b *Book) Debit(depositorID string, amount uint64) error {
	i, ok := b.find(depositorID)
	have := uint64(0)
	if ok {
		have = b.Depositors[i].AmountContributed
	}
	if amount > have {
		return NewInsufficientContributionError(b.Ledger.Key(), depositorID, amount, have)
	}
	if amount == 0 {
		return nil
	}
	b.Depositors[i].AmountContributed -= amount
	b.Depositors = compact(b.Depositors)
	return nil
}

// TotalContributed sums every depositor record.
func (b *Book) TotalContributed() (uint64, error) {
	var total uint64
	for _, d := range b.Depositors {
		var err error
		if total, err = AddChecked(total, d.AmountContributed); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// CheckInvariants verifies the book-level invariants listed on Book.
func (b *Book) CheckInvariants() error {
	key := b.Ledger.Key()
	if !b.Ledger.State.Valid() {
		return NewInvariantError(key, fmt.Sprintf("unknown state %q", b.Ledger.State))
	}
	if !sort.SliceIsSorted(b.Depositors, func(i, j int) bool {
		return b.Depositors[i].DepositorID < b.Depositors[j].DepositorID
	}) {
		return NewInvariantError(key, "depositor records not sorted")
	}
	for i, d := range b.Depositors {
		if d.AmountContributed == 0 {
			return NewInvariantError(key, fmt.Sprintf("zero contribution kept for %s", d.DepositorID))
		}
		if i > 0 && b.Depositors[i-1].DepositorID == d.DepositorID {
			return NewInvariantError(key, fmt.Sprintf("duplicate depositor %s", d.DepositorID))
		}
	}
	total, err := b.TotalContributed()
	if err != nil {
		return err
	}
	if total != b.Ledger.EscrowBalance {
		return NewInvariantError(key, fmt.Sprintf("contributions %d != escrow %d", total, b.Ledger.EscrowBalance))
	}
	eligible := b.Ledger.State == StateForeclosureEligible
	if eligible != (b.Ledger.Deficit > 0) {
		return NewInvariantError(key, fmt.Sprintf("state %s with deficit %d", b.Ledger.State, b.Ledger.Deficit))
	}
	if b.Ledger.Deficit > 0 && b.Ledger.EscrowBalance > 0 {
		return NewInvariantError(key, "deficit outstanding while escrow is funded")
	}
	return nil
}

// find returns the index of the depositor or the insertion point.
func (b *Book) find(depositorID string) (int, bool) {
	i := sort.Search(len(b.Depositors), func(i int) bool {
		return b.Depositors[i].DepositorID >= depositorID
	})
	return i, i < len(b.Depositors) && b.Depositors[i].DepositorID == depositorID
}

// compact drops zero-contribution records in place.
func compact(recs []DepositorRecord) []DepositorRecord {
	out := recs[:0]
	for _, r := range recs {
		if r.AmountContributed > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Compact drops depositor records whose contribution reached zero.
func (b *Book) Compact() {
	b.Depositors = compact(b.Depositors)
}

// AddChecked returns a+b or an ArithmeticOverflow error.
func AddChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, NewOverflowError(fmt.Sprintf("%d + %d", a, b))
	}
	return sum, nil
}
