package store

import (
	"context"
	"fmt"

	"github.com/roach88/harberger/internal/ledger"
)

// Collection reads a collection inside the transaction.
// Returns sql.ErrNoRows if not found.
func (t *Tx) Collection(ctx context.Context, collectionID string) (ledger.CollectionParameters, error) {
	return readCollection(ctx, t.tx, collectionID)
}

// Book reads a book inside the transaction.
// Returns sql.ErrNoRows if the asset has no ledger.
func (t *Tx) Book(ctx context.Context, key ledger.AssetKey) (*ledger.Book, error) {
	return readBook(ctx, t.tx, key)
}

// Books reads every book of a collection inside the transaction.
func (t *Tx) Books(ctx context.Context, collectionID string) ([]*ledger.Book, error) {
	return readBooks(ctx, t.tx, collectionID)
}

// InsertCollection stores a new collection. A duplicate ID is a constraint
// error; callers check existence first to report COLLECTION_EXISTS.
func (t *Tx) InsertCollection(ctx context.Context, p ledger.CollectionParameters) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO collections
		(collection_id, admin_authority_id, denomination_asset_id, rate_per_time_unit)
		VALUES (?, ?, ?, ?)
	`, p.CollectionID, p.AdminAuthorityID, p.DenominationAssetID, toDB(p.RatePerTimeUnit))
	if err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	return nil
}

// UpdateCollectionRate replaces the tax rate of an existing collection.
func (t *Tx) UpdateCollectionRate(ctx context.Context, collectionID string, rate uint64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE collections SET rate_per_time_unit = ? WHERE collection_id = ?
	`, toDB(rate), collectionID)
	if err != nil {
		return fmt.Errorf("update collection rate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection rate: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update collection rate: %d rows affected for %q", n, collectionID)
	}
	return nil
}

// PutBook upserts the asset ledger and replaces its depositor records.
// Records absent from the book are deleted.
func (t *Tx) PutBook(ctx context.Context, b *ledger.Book) error {
	l := b.Ledger
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO asset_ledgers
		(collection_id, asset_id, custodian_id, escrow_balance, deficit, last_settlement, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, asset_id) DO UPDATE SET
			custodian_id = excluded.custodian_id,
			escrow_balance = excluded.escrow_balance,
			deficit = excluded.deficit,
			last_settlement = excluded.last_settlement,
			state = excluded.state
	`,
		l.CollectionID,
		l.AssetID,
		l.CustodianID,
		toDB(l.EscrowBalance),
		toDB(l.Deficit),
		toDB(l.LastSettlement),
		string(l.State),
	)
	if err != nil {
		return fmt.Errorf("write asset ledger: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		DELETE FROM depositor_records WHERE collection_id = ? AND asset_id = ?
	`, l.CollectionID, l.AssetID)
	if err != nil {
		return fmt.Errorf("clear depositors: %w", err)
	}

	for _, d := range b.Depositors {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO depositor_records
			(collection_id, asset_id, depositor_id, amount_contributed)
			VALUES (?, ?, ?, ?)
		`, l.CollectionID, l.AssetID, d.DepositorID, toDB(d.AmountContributed))
		if err != nil {
			return fmt.Errorf("write depositor %s: %w", d.DepositorID, err)
		}
	}
	return nil
}

// FindOperation looks up a journaled request inside the transaction.
// Returns sql.ErrNoRows if the request ID is unknown.
func (t *Tx) FindOperation(ctx context.Context, requestID string) (OperationRecord, error) {
	return findOperation(ctx, t.tx, requestID)
}

// AppendOperation journals a committed request with its result. The
// assigned sequence number is returned.
//
// UNIQUE(request_id) rejects a second record for the same request; the
// engine checks FindOperation first so this only fires on a bug.
func (t *Tx) AppendOperation(ctx context.Context, op ledger.Operation, result any) (int64, error) {
	hash, err := op.Hash()
	if err != nil {
		return 0, fmt.Errorf("write operation: %w", err)
	}
	resultJSON, err := marshalResult(result)
	if err != nil {
		return 0, fmt.Errorf("write operation: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO operations
		(request_id, kind, collection_id, asset_id, actor_id, denomination, amount, at,
		 request_hash, result, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.RequestID,
		string(op.Kind),
		op.CollectionID,
		op.AssetID,
		op.ActorID,
		op.Denomination,
		toDB(op.Amount),
		toDB(op.At),
		hash,
		resultJSON,
		ledger.EngineVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("write operation: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write operation: %w", err)
	}
	return seq, nil
}
