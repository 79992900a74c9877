package store

import (
	"context"
	"fmt"

	"github.com/roach88/harberger/internal/ledger"
)

// CustodyTransfer is a pending or delivered change of custodian produced by
// a foreclosure claim.
type CustodyTransfer struct {
	ID            int64  `json:"id"`
	RequestID     string `json:"request_id"`
	CollectionID  string `json:"collection_id"`
	AssetID       string `json:"asset_id"`
	FromCustodian string `json:"from_custodian"`
	ToCustodian   string `json:"to_custodian"`
	At            uint64 `json:"at"`
	Sent          bool   `json:"sent"`
}

// Key returns the asset being transferred.
func (c CustodyTransfer) Key() ledger.AssetKey {
	return ledger.AssetKey{CollectionID: c.CollectionID, AssetID: c.AssetID}
}

// EnqueueCustodyTransfer records a transfer in the outbox in the same
// transaction as the claim that caused it.
func (t *Tx) EnqueueCustodyTransfer(ctx context.Context, c CustodyTransfer) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO custody_transfers
		(request_id, collection_id, asset_id, from_custodian, to_custodian, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.RequestID, c.CollectionID, c.AssetID, c.FromCustodian, c.ToCustodian, toDB(c.At))
	if err != nil {
		return 0, fmt.Errorf("write custody transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write custody transfer: %w", err)
	}
	return id, nil
}

// PendingCustodyTransfers returns up to limit unsent transfers, oldest
// first. A limit of zero or less returns all of them.
func (s *Store) PendingCustodyTransfers(ctx context.Context, limit int) ([]CustodyTransfer, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, collection_id, asset_id, from_custodian, to_custodian, at, sent
		FROM custody_transfers
		WHERE sent = 0
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query custody transfers: %w", err)
	}
	defer rows.Close()

	transfers := []CustodyTransfer{}
	for rows.Next() {
		var c CustodyTransfer
		var at int64
		if err := rows.Scan(&c.ID, &c.RequestID, &c.CollectionID, &c.AssetID,
			&c.FromCustodian, &c.ToCustodian, &at, &c.Sent); err != nil {
			return nil, fmt.Errorf("scan custody transfer: %w", err)
		}
		c.At = fromDB(at)
		transfers = append(transfers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custody transfers: %w", err)
	}
	return transfers, nil
}

// MarkCustodyTransferSent flags a transfer as delivered. Marking an already
// sent transfer is a no-op.
func (s *Store) MarkCustodyTransferSent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE custody_transfers SET sent = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("mark custody transfer %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark custody transfer %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark custody transfer %d: not found", id)
	}
	return nil
}
