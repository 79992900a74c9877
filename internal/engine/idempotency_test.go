package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/ledger"
)

func TestDuplicateRequest_ReturnsRecordedResult(t *testing.T) {
	e, s := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	req := DepositRequest{
		RequestID: "dep-1", CollectionID: "c1", AssetID: "a1",
		DepositorID: "alice", Amount: 100, At: 0,
	}
	first, err := e.Deposit(ctx, req)
	require.NoError(t, err)

	second, err := e.Deposit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	b := requireBook(t, e, asset1)
	assert.Equal(t, uint64(100), b.Ledger.EscrowBalance, "duplicate must not be applied twice")

	ops, err := s.ReadOperations(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestDuplicateRequest_AfterLaterOperations(t *testing.T) {
	e, _ := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	req := SettleRequest{RequestID: "s-1", CollectionID: "c1", AssetID: "a1", At: 10}
	deposit(t, e, "a1", "alice", 100, 0)
	first, err := e.Settle(ctx, req)
	require.NoError(t, err)
	deposit(t, e, "a1", "alice", 5, 20)

	// The recorded result is returned even though state has moved on.
	again, err := e.Settle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, uint64(20), requireBook(t, e, asset1).Ledger.LastSettlement)
}

func TestDuplicateRequest_DifferentContentConflicts(t *testing.T) {
	e, _ := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	_, err := e.Deposit(ctx, DepositRequest{
		RequestID: "dep-1", CollectionID: "c1", AssetID: "a1",
		DepositorID: "alice", Amount: 100,
	})
	require.NoError(t, err)

	_, err = e.Deposit(ctx, DepositRequest{
		RequestID: "dep-1", CollectionID: "c1", AssetID: "a1",
		DepositorID: "alice", Amount: 101,
	})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeRequestConflict))
	assert.Equal(t, uint64(100), requireBook(t, e, asset1).Ledger.EscrowBalance)
}

func TestDuplicateRequest_AcrossKinds(t *testing.T) {
	e, _ := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	_, err := e.Deposit(ctx, DepositRequest{
		RequestID: "r", CollectionID: "c1", AssetID: "a1", DepositorID: "alice", Amount: 10,
	})
	require.NoError(t, err)

	_, err = e.Withdraw(ctx, WithdrawRequest{
		RequestID: "r", CollectionID: "c1", AssetID: "a1", DepositorID: "alice", Amount: 10,
	})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeRequestConflict))
}

func TestFailedRequest_IDCanBeReused(t *testing.T) {
	e, _ := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	_, err := e.Deposit(ctx, DepositRequest{
		RequestID: "r", CollectionID: "c1", AssetID: "a1", DepositorID: "alice", Amount: 0,
	})
	require.Error(t, err)

	_, err = e.Deposit(ctx, DepositRequest{
		RequestID: "r", CollectionID: "c1", AssetID: "a1", DepositorID: "alice", Amount: 10,
	})
	assert.NoError(t, err)
}

func TestGeneratedRequestIDs(t *testing.T) {
	e, s := setupTestEngine(t, WithIDGenerator(NewFixedGenerator("gen-1", "gen-2")))
	registerTestCollection(t, e, 1)
	deposit(t, e, "a1", "alice", 10, 0)

	ops, err := s.ReadOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "gen-1", ops[0].RequestID)
	assert.Equal(t, "gen-2", ops[1].RequestID)
}

func TestDuplicateRequest_MalformedIDsRejected(t *testing.T) {
	tests := []struct {
		name         string
		first        string
		second       string
		wantContains string
	}{
		{
			name:         "non-NFC depositor",
			first:        "\u00e9",
			second:       "e\u0301",
			wantContains: "NFC",
		},
		{
			name:         "invalid UTF-8 depositor",
			first:        "alice",
			second:       "\xff",
			wantContains: "UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := setupTestEngine(t)
			registerTestCollection(t, e, 1)
			ctx := context.Background()

			_, err := e.Deposit(ctx, DepositRequest{
				RequestID: "r1", CollectionID: "c1", AssetID: "a1",
				DepositorID: tt.first, Amount: 10,
			})
			require.NoError(t, err)

			_, err = e.Deposit(ctx, DepositRequest{
				RequestID: "r1", CollectionID: "c1", AssetID: "a1",
				DepositorID: tt.second, Amount: 10,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantContains)

			b := requireBook(t, e, asset1)
			assert.Equal(t, uint64(10), b.Ledger.EscrowBalance)
			assert.Equal(t, uint64(10), b.Contribution(tt.first))
		})
	}
}

func TestMalformedIDs_RejectedBeforeJournal(t *testing.T) {
	e, s := setupTestEngine(t)
	registerTestCollection(t, e, 1)
	ctx := context.Background()

	_, err := e.Deposit(ctx, DepositRequest{
		RequestID: "r1", CollectionID: "c1", AssetID: "a\xfe", DepositorID: "alice", Amount: 10,
	})
	assert.Error(t, err)

	_, err = e.Settle(ctx, SettleRequest{RequestID: "r2", CollectionID: "c1", AssetID: "e\u0301", At: 1})
	assert.Error(t, err)

	_, err = e.ClaimForeclosure(ctx, ClaimRequest{
		RequestID: "r3", CollectionID: "c1", AssetID: "a1", ClaimantID: "\xff", Payment: 1, At: 1,
	})
	assert.Error(t, err)

	_, err = e.UpdateRate(ctx, UpdateRateRequest{
		RequestID: "r4", CollectionID: "c1", AuthorityToken: "admin\xff", Rate: 2, At: 1,
	})
	assert.Error(t, err)

	_, err = e.RegisterCollection(ctx, RegisterCollectionRequest{
		RequestID: "r5",
		Collection: ledger.CollectionParameters{
			CollectionID: "cafe\u0301", AdminAuthorityID: "admin",
			DenominationAssetID: "usdc", RatePerTimeUnit: 1,
		},
	})
	assert.Error(t, err)

	ops, err := s.ReadOperations(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 1, "only the registration is journaled")
}
