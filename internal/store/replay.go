package store

import (
	"context"
	"fmt"

	"github.com/roach88/harberger/internal/ledger"
)

// OperationRecord is a journal row: the request, its content hash and the
// JSON result returned when it committed.
type OperationRecord struct {
	ledger.Operation
	RequestHash   string
	Result        string
	EngineVersion string
}

// FindOperation looks up a journaled request by ID.
// Returns sql.ErrNoRows if the request ID is unknown.
func (s *Store) FindOperation(ctx context.Context, requestID string) (OperationRecord, error) {
	return findOperation(ctx, s.db, requestID)
}

// ReadOperations returns the whole journal in commit order.
// Ordering is ORDER BY seq ASC so replay is deterministic.
func (s *Store) ReadOperations(ctx context.Context) ([]OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	records := []OperationRecord{}
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return records, nil
}

const operationColumns = `seq, request_id, kind, collection_id, asset_id, actor_id, denomination,
		amount, at, request_hash, result, engine_version`

type scanner interface {
	Scan(dest ...any) error
}

func findOperation(ctx context.Context, q querier, requestID string) (OperationRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE request_id = ?
	`, requestID)
	return scanOperation(row)
}

func scanOperation(row scanner) (OperationRecord, error) {
	var rec OperationRecord
	var kind string
	var amount, at int64
	err := row.Scan(
		&rec.Seq,
		&rec.RequestID,
		&kind,
		&rec.CollectionID,
		&rec.AssetID,
		&rec.ActorID,
		&rec.Denomination,
		&amount,
		&at,
		&rec.RequestHash,
		&rec.Result,
		&rec.EngineVersion,
	)
	if err != nil {
		return OperationRecord{}, err
	}
	rec.Kind = ledger.OpKind(kind)
	rec.Amount = fromDB(amount)
	rec.At = fromDB(at)
	return rec, nil
}
