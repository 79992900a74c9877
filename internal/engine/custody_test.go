package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/store"
)

// foreclose makes a1 eligible and has claimant take it at time at.
func foreclose(t *testing.T, e *Engine, claimant string, at uint64) {
	t.Helper()
	_, err := e.ClaimForeclosure(context.Background(), ClaimRequest{
		CollectionID: "c1", AssetID: "a1", ClaimantID: claimant, Payment: 1 << 40, At: at,
	})
	require.NoError(t, err)
}

func TestDispatchCustodyTransfers_DeliversInOrder(t *testing.T) {
	var delivered []store.CustodyTransfer
	transferer := CustodyTransfererFunc(func(_ context.Context, tr store.CustodyTransfer) error {
		delivered = append(delivered, tr)
		return nil
	})
	e, _ := setupTestEngine(t, WithCustodyTransferer(transferer))
	registerTestCollection(t, e, 10)
	deposit(t, e, "a1", "alice", 10, 0)
	foreclose(t, e, "bob", 10)
	foreclose(t, e, "carol", 20)

	res, err := e.DispatchCustodyTransfers(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Sent, 2)
	assert.Equal(t, 0, res.Pending)
	require.Len(t, delivered, 2)
	assert.Equal(t, "alice", delivered[0].FromCustodian)
	assert.Equal(t, "bob", delivered[0].ToCustodian)
	assert.Equal(t, "bob", delivered[1].FromCustodian)
	assert.Equal(t, "carol", delivered[1].ToCustodian)

	res, err = e.DispatchCustodyTransfers(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, res.Sent)
	assert.Len(t, delivered, 2)
}

func TestDispatchCustodyTransfers_FailureLeavesPending(t *testing.T) {
	fail := true
	transferer := CustodyTransfererFunc(func(context.Context, store.CustodyTransfer) error {
		if fail {
			return errors.New("registry offline")
		}
		return nil
	})
	e, s := setupTestEngine(t, WithCustodyTransferer(transferer))
	registerTestCollection(t, e, 10)
	deposit(t, e, "a1", "alice", 10, 0)
	foreclose(t, e, "bob", 10)

	_, err := e.DispatchCustodyTransfers(context.Background(), 0)
	require.Error(t, err)

	pending, err := s.PendingCustodyTransfers(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	fail = false
	res, err := e.DispatchCustodyTransfers(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Sent, 1)
}

func TestDispatchCustodyTransfers_NoTransferer(t *testing.T) {
	e, _ := setupTestEngine(t)
	_, err := e.DispatchCustodyTransfers(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoTransferer)
}

func TestLogTransferer_NeverFails(t *testing.T) {
	lt := LogTransferer{Logger: discardLogger()}
	assert.NoError(t, lt.TransferCustody(context.Background(), store.CustodyTransfer{ID: 1}))
}

func TestIDGenerators(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())

	gen := NewFixedGenerator("a")
	assert.Equal(t, "a", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
