package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/ledger"
)

type depositOutcome struct {
	Credited uint64 `json:"credited"`
}

func appendTestOperation(t *testing.T, s *Store, op ledger.Operation, result any) int64 {
	t.Helper()
	var seq int64
	err := s.InTx(context.Background(), func(tx *Tx) error {
		var err error
		seq, err = tx.AppendOperation(context.Background(), op, result)
		return err
	})
	require.NoError(t, err)
	return seq
}

func TestAppendOperation_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)

	first := appendTestOperation(t, s, ledger.Operation{
		RequestID: "r1", Kind: ledger.OpDeposit, CollectionID: "c1", AssetID: "a1",
		ActorID: "alice", Amount: 100, At: 10,
	}, depositOutcome{Credited: 100})
	second := appendTestOperation(t, s, ledger.Operation{
		RequestID: "r2", Kind: ledger.OpSettle, CollectionID: "c1", AssetID: "a1", At: 20,
	}, map[string]uint64{"owed": 10})

	assert.Greater(t, second, first)
}

func TestFindOperation_ReturnsStoredRecord(t *testing.T) {
	s := createTestStore(t)
	op := ledger.Operation{
		RequestID: "r1", Kind: ledger.OpDeposit, CollectionID: "c1", AssetID: "a1",
		ActorID: "alice", Amount: 1<<63 + 5, At: 10,
	}
	seq := appendTestOperation(t, s, op, depositOutcome{Credited: 7})

	rec, err := s.FindOperation(context.Background(), "r1")
	require.NoError(t, err)

	op.Seq = seq
	assert.Equal(t, op, rec.Operation)
	assert.Equal(t, op.MustHash(), rec.RequestHash)
	assert.Equal(t, ledger.EngineVersion, rec.EngineVersion)

	var out depositOutcome
	require.NoError(t, UnmarshalResult(rec.Result, &out))
	assert.Equal(t, uint64(7), out.Credited)
}

func TestFindOperation_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.FindOperation(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAppendOperation_DuplicateRequestID(t *testing.T) {
	s := createTestStore(t)
	op := ledger.Operation{RequestID: "r1", Kind: ledger.OpSettle, CollectionID: "c1", AssetID: "a1", At: 1}
	appendTestOperation(t, s, op, struct{}{})

	err := s.InTx(context.Background(), func(tx *Tx) error {
		_, err := tx.AppendOperation(context.Background(), op, struct{}{})
		return err
	})
	assert.Error(t, err)
}

func TestReadOperations_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	for _, id := range []string{"z", "a", "m"} {
		appendTestOperation(t, s, ledger.Operation{
			RequestID: id, Kind: ledger.OpSettle, CollectionID: "c1", AssetID: "a1", At: 1,
		}, struct{}{})
	}

	records, err := s.ReadOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "z", records[0].RequestID)
	assert.Equal(t, "a", records[1].RequestID)
	assert.Equal(t, "m", records[2].RequestID)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Seq, records[i-1].Seq)
	}
}

func TestReadOperations_Empty(t *testing.T) {
	s := createTestStore(t)
	records, err := s.ReadOperations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
