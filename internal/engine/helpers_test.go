package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/store"
	"github.com/roach88/harberger/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithIDGenerator(testutil.NewSequentialIDs("test")),
	}, opts...)
	return New(s, opts...), s
}

var asset1 = ledger.AssetKey{CollectionID: "c1", AssetID: "a1"}

// registerTestCollection registers c1 administered by "admin".
func registerTestCollection(t *testing.T, e *Engine, rate uint64) {
	t.Helper()
	_, err := e.RegisterCollection(context.Background(), RegisterCollectionRequest{
		Collection: ledger.CollectionParameters{
			CollectionID:        "c1",
			AdminAuthorityID:    "admin",
			DenominationAssetID: "usdc",
			RatePerTimeUnit:     rate,
		},
	})
	require.NoError(t, err)
}

func deposit(t *testing.T, e *Engine, assetID, depositor string, amount, at uint64) {
	t.Helper()
	_, err := e.Deposit(context.Background(), DepositRequest{
		CollectionID: "c1",
		AssetID:      assetID,
		DepositorID:  depositor,
		Amount:       amount,
		At:           at,
	})
	require.NoError(t, err)
}

func requireBook(t *testing.T, e *Engine, key ledger.AssetKey) *ledger.Book {
	t.Helper()
	b, err := e.Book(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, b.CheckInvariants())
	return b
}
