package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBook_StartsActiveAndEmpty(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 42)

	assert.Equal(t, StateActive, b.Ledger.State)
	assert.Equal(t, uint64(42), b.Ledger.LastSettlement)
	assert.Equal(t, "alice", b.Ledger.CustodianID)
	assert.Empty(t, b.Depositors)
	require.NoError(t, b.CheckInvariants())
}

func TestBook_CreditKeepsDepositorsSorted(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)

	require.NoError(t, b.Credit("carol", 5))
	require.NoError(t, b.Credit("alice", 7))
	require.NoError(t, b.Credit("bob", 3))
	require.NoError(t, b.Credit("alice", 1))

	ids := make([]string, len(b.Depositors))
	for i, d := range b.Depositors {
		ids[i] = d.DepositorID
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
	assert.Equal(t, uint64(8), b.Contribution("alice"))
	assert.Equal(t, "punks", b.Depositors[0].CollectionID)
	assert.Equal(t, "a1", b.Depositors[0].AssetID)
}

func TestBook_CreditZeroIsNoop(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)
	require.NoError(t, b.Credit("alice", 0))
	assert.Empty(t, b.Depositors)
}

func TestBook_CreditOverflow(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)
	require.NoError(t, b.Credit("alice", math.MaxUint64))

	err := b.Credit("alice", 1)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeArithmeticOverflow))
	assert.Equal(t, uint64(math.MaxUint64), b.Contribution("alice"))
}

func TestBook_DebitRemovesEmptiedRecord(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)
	require.NoError(t, b.Credit("alice", 10))
	require.NoError(t, b.Credit("bob", 4))

	require.NoError(t, b.Debit("alice", 10))

	require.Len(t, b.Depositors, 1)
	assert.Equal(t, "bob", b.Depositors[0].DepositorID)
	assert.Equal(t, uint64(0), b.Contribution("alice"))
}

func TestBook_DebitMoreThanContributed(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)
	require.NoError(t, b.Credit("alice", 10))

	err := b.Debit("alice", 11)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInsufficientContribution))

	err = b.Debit("mallory", 1)
	assert.True(t, IsCode(err, ErrCodeInsufficientContribution))
}

func TestBook_CloneIsDeep(t *testing.T) {
	b := NewBook("punks", "a1", "alice", 0)
	require.NoError(t, b.Credit("alice", 10))

	c := b.Clone()
	c.Depositors[0].AmountContributed = 99
	c.Ledger.EscrowBalance = 99

	assert.Equal(t, uint64(10), b.Depositors[0].AmountContributed)
	assert.Equal(t, uint64(0), b.Ledger.EscrowBalance)
}

func TestBook_CheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Book)
	}{
		{"escrow mismatch", func(b *Book) { b.Ledger.EscrowBalance = 11 }},
		{"eligible without deficit", func(b *Book) { b.Ledger.State = StateForeclosureEligible }},
		{"deficit while active", func(b *Book) { b.Ledger.Deficit = 5 }},
		{"unknown state", func(b *Book) { b.Ledger.State = "foreclosed" }},
		{"zero record kept", func(b *Book) {
			b.Depositors = append(b.Depositors, DepositorRecord{DepositorID: "zed"})
		}},
		{"unsorted", func(b *Book) {
			b.Depositors = []DepositorRecord{
				{DepositorID: "bob", AmountContributed: 5},
				{DepositorID: "alice", AmountContributed: 5},
			}
		}},
		{"deficit with funded escrow", func(b *Book) {
			b.Ledger.State = StateForeclosureEligible
			b.Ledger.Deficit = 3
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBook("punks", "a1", "alice", 0)
			require.NoError(t, b.Credit("alice", 10))
			b.Ledger.EscrowBalance = 10
			require.NoError(t, b.CheckInvariants())

			tt.mutate(b)
			err := b.CheckInvariants()
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeInvariantViolation), "got %v", err)
		})
	}
}

func TestAddChecked(t *testing.T) {
	sum, err := AddChecked(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sum)

	_, err = AddChecked(math.MaxUint64, 1)
	assert.True(t, IsCode(err, ErrCodeArithmeticOverflow))
}
