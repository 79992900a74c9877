package store

import (
	"context"
	"fmt"

	"github.com/roach88/harberger/internal/ledger"
)

// Collection retrieves a collection by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) Collection(ctx context.Context, collectionID string) (ledger.CollectionParameters, error) {
	return readCollection(ctx, s.db, collectionID)
}

// ListCollections returns every collection ordered by ID.
// Returns an empty slice (not nil) when none exist.
func (s *Store) ListCollections(ctx context.Context) ([]ledger.CollectionParameters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, admin_authority_id, denomination_asset_id, rate_per_time_unit
		FROM collections
		ORDER BY collection_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	collections := []ledger.CollectionParameters{}
	for rows.Next() {
		var p ledger.CollectionParameters
		var rate int64
		if err := rows.Scan(&p.CollectionID, &p.AdminAuthorityID, &p.DenominationAssetID, &rate); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		p.RatePerTimeUnit = fromDB(rate)
		collections = append(collections, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

// Book retrieves an asset ledger with its depositor records.
// Returns sql.ErrNoRows if the asset has no ledger.
func (s *Store) Book(ctx context.Context, key ledger.AssetKey) (*ledger.Book, error) {
	return readBook(ctx, s.db, key)
}

// Books returns every book of a collection ordered by asset ID.
func (s *Store) Books(ctx context.Context, collectionID string) ([]*ledger.Book, error) {
	return readBooks(ctx, s.db, collectionID)
}

func readCollection(ctx context.Context, q querier, collectionID string) (ledger.CollectionParameters, error) {
	var p ledger.CollectionParameters
	var rate int64
	err := q.QueryRowContext(ctx, `
		SELECT collection_id, admin_authority_id, denomination_asset_id, rate_per_time_unit
		FROM collections
		WHERE collection_id = ?
	`, collectionID).Scan(&p.CollectionID, &p.AdminAuthorityID, &p.DenominationAssetID, &rate)
	if err != nil {
		return ledger.CollectionParameters{}, err
	}
	p.RatePerTimeUnit = fromDB(rate)
	return p, nil
}

func readBook(ctx context.Context, q querier, key ledger.AssetKey) (*ledger.Book, error) {
	var l ledger.AssetLedger
	var escrow, deficit, last int64
	var state string
	err := q.QueryRowContext(ctx, `
		SELECT collection_id, asset_id, custodian_id, escrow_balance, deficit, last_settlement, state
		FROM asset_ledgers
		WHERE collection_id = ? AND asset_id = ?
	`, key.CollectionID, key.AssetID).Scan(
		&l.CollectionID, &l.AssetID, &l.CustodianID, &escrow, &deficit, &last, &state)
	if err != nil {
		return nil, err
	}
	l.EscrowBalance = fromDB(escrow)
	l.Deficit = fromDB(deficit)
	l.LastSettlement = fromDB(last)
	l.State = ledger.AssetState(state)

	deps, err := readDepositors(ctx, q, key)
	if err != nil {
		return nil, err
	}
	return &ledger.Book{Ledger: l, Depositors: deps}, nil
}

// readDepositors returns the records of one asset sorted by depositor ID.
// COLLATE BINARY matches Go string ordering, which Book relies on.
func readDepositors(ctx context.Context, q querier, key ledger.AssetKey) ([]ledger.DepositorRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT depositor_id, amount_contributed
		FROM depositor_records
		WHERE collection_id = ? AND asset_id = ?
		ORDER BY depositor_id COLLATE BINARY ASC
	`, key.CollectionID, key.AssetID)
	if err != nil {
		return nil, fmt.Errorf("query depositors: %w", err)
	}
	defer rows.Close()

	deps := []ledger.DepositorRecord{}
	for rows.Next() {
		d := ledger.DepositorRecord{CollectionID: key.CollectionID, AssetID: key.AssetID}
		var amount int64
		if err := rows.Scan(&d.DepositorID, &amount); err != nil {
			return nil, fmt.Errorf("scan depositor: %w", err)
		}
		d.AmountContributed = fromDB(amount)
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate depositors: %w", err)
	}
	return deps, nil
}

func readBooks(ctx context.Context, q querier, collectionID string) ([]*ledger.Book, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT asset_id
		FROM asset_ledgers
		WHERE collection_id = ?
		ORDER BY asset_id COLLATE BINARY ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query asset ledgers: %w", err)
	}
	var assetIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		assetIDs = append(assetIDs, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate asset ledgers: %w", err)
	}

	// Rows must be closed before the per-book queries: the pool has one
	// connection.
	books := make([]*ledger.Book, 0, len(assetIDs))
	for _, id := range assetIDs {
		b, err := readBook(ctx, q, ledger.AssetKey{CollectionID: collectionID, AssetID: id})
		if err != nil {
			return nil, fmt.Errorf("read book %s/%s: %w", collectionID, id, err)
		}
		books = append(books, b)
	}
	return books, nil
}
