package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/settlement"
)

// Collection returns a registered collection.
func (e *Engine) Collection(ctx context.Context, collectionID string) (ledger.CollectionParameters, error) {
	p, err := e.store.Collection(ctx, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CollectionParameters{}, ledger.NewCollectionNotFoundError(collectionID)
	}
	if err != nil {
		return ledger.CollectionParameters{}, fmt.Errorf("read collection: %w", err)
	}
	return p, nil
}

// Collections returns every registered collection ordered by ID.
func (e *Engine) Collections(ctx context.Context) ([]ledger.CollectionParameters, error) {
	return e.store.ListCollections(ctx)
}

// Book returns the persisted book of an asset as of its last settlement.
func (e *Engine) Book(ctx context.Context, key ledger.AssetKey) (*ledger.Book, error) {
	b, err := e.store.Book(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewAssetNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("read book: %w", err)
	}
	return b, nil
}

// Books returns every book of a collection ordered by asset ID.
func (e *Engine) Books(ctx context.Context, collectionID string) ([]*ledger.Book, error) {
	if _, err := e.Collection(ctx, collectionID); err != nil {
		return nil, err
	}
	return e.store.Books(ctx, collectionID)
}

// Quote projects an asset's book to time at without persisting anything.
// It answers "what would settling now do" for display and monitoring.
func (e *Engine) Quote(ctx context.Context, key ledger.AssetKey, at uint64) (*ledger.Book, settlement.SettlementResult, error) {
	p, err := e.Collection(ctx, key.CollectionID)
	if err != nil {
		return nil, settlement.SettlementResult{}, err
	}
	b, err := e.Book(ctx, key)
	if err != nil {
		return nil, settlement.SettlementResult{}, err
	}
	res, err := settlement.Settle(b, p.RatePerTimeUnit, at)
	if err != nil {
		return nil, settlement.SettlementResult{}, withAsset(err, key)
	}
	return b, res, nil
}
