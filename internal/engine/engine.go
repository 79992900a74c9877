package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/settlement"
	"github.com/roach88/harberger/internal/store"
)

// Engine applies ledger operations to a store.
//
// Thread-safety: all methods are safe for concurrent use. Operations on
// different assets run in parallel; a second concurrent operation on the
// same asset fails with ASSET_BUSY.
type Engine struct {
	store      *store.Store
	locks      *AssetLocks
	ids        IDGenerator
	logger     *slog.Logger
	transferer CustodyTransferer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator sets the generator for requests without a RequestID.
// Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithCustodyTransferer sets the port that DispatchCustodyTransfers
// delivers outbox records to.
func WithCustodyTransferer(t CustodyTransferer) Option {
	return func(e *Engine) {
		e.transferer = t
	}
}

// New creates an Engine backed by s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		locks:  NewAssetLocks(),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterCollection creates a collection. Registering an existing
// collection ID fails with COLLECTION_EXISTS unless the request is a
// repeat of the one that created it.
func (e *Engine) RegisterCollection(ctx context.Context, req RegisterCollectionRequest) (RegisterResult, error) {
	if err := req.Collection.Validate(); err != nil {
		return RegisterResult{}, fmt.Errorf("register collection: %w", err)
	}
	unlock, err := e.locks.LockCollection(req.Collection.CollectionID)
	if err != nil {
		return RegisterResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (RegisterResult, error) {
		_, err := tx.Collection(ctx, op.CollectionID)
		switch {
		case err == nil:
			return RegisterResult{}, ledger.NewCollectionExistsError(op.CollectionID)
		case !errors.Is(err, sql.ErrNoRows):
			return RegisterResult{}, fmt.Errorf("read collection: %w", err)
		}
		if err := tx.InsertCollection(ctx, req.Collection); err != nil {
			return RegisterResult{}, err
		}
		return RegisterResult{Collection: req.Collection}, nil
	}, nil)
}

// UpdateRate changes a collection's rate. Every book of the collection is
// first settled at req.At under the old rate, so the new rate only applies
// to time after req.At. Any settlement error aborts the whole change.
func (e *Engine) UpdateRate(ctx context.Context, req UpdateRateRequest) (UpdateRateResult, error) {
	if err := ledger.CheckID("collection id", req.CollectionID); err != nil {
		return UpdateRateResult{}, err
	}
	if err := ledger.CheckID("authority token", req.AuthorityToken); err != nil {
		return UpdateRateResult{}, err
	}
	unlock, err := e.locks.LockCollection(req.CollectionID)
	if err != nil {
		return UpdateRateResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (UpdateRateResult, error) {
		p, err := loadCollection(ctx, tx, req.CollectionID)
		if err != nil {
			return UpdateRateResult{}, err
		}
		if req.AuthorityToken != p.AdminAuthorityID {
			return UpdateRateResult{}, ledger.NewUnauthorizedError(req.CollectionID)
		}

		books, err := tx.Books(ctx, req.CollectionID)
		if err != nil {
			return UpdateRateResult{}, err
		}
		res := UpdateRateResult{
			CollectionID: req.CollectionID,
			PreviousRate: p.RatePerTimeUnit,
			Rate:         req.Rate,
			Settlements:  make([]AssetSettlement, 0, len(books)),
		}
		for _, b := range books {
			sr, err := settlement.Settle(b, p.RatePerTimeUnit, req.At)
			if err != nil {
				return UpdateRateResult{}, withAsset(err, b.Ledger.Key())
			}
			if err := tx.PutBook(ctx, b); err != nil {
				return UpdateRateResult{}, err
			}
			res.Settlements = append(res.Settlements, AssetSettlement{AssetID: b.Ledger.AssetID, Settlement: sr})
		}
		if err := tx.UpdateCollectionRate(ctx, req.CollectionID, req.Rate); err != nil {
			return UpdateRateResult{}, err
		}
		return res, nil
	}, nil)
}

// Deposit credits escrow. The asset's ledger is created on first deposit.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (settlement.DepositResult, error) {
	key := ledger.AssetKey{CollectionID: req.CollectionID, AssetID: req.AssetID}
	if err := requireIDs(key, req.DepositorID); err != nil {
		return settlement.DepositResult{}, err
	}
	unlock, err := e.locks.LockAsset(key)
	if err != nil {
		return settlement.DepositResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (settlement.DepositResult, error) {
		p, err := loadCollection(ctx, tx, key.CollectionID)
		if err != nil {
			return settlement.DepositResult{}, err
		}
		b, err := tx.Book(ctx, key)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			b = ledger.NewBook(key.CollectionID, key.AssetID, req.DepositorID, req.At)
		case err != nil:
			return settlement.DepositResult{}, fmt.Errorf("read book: %w", err)
		}
		res, err := settlement.Deposit(b, p.RatePerTimeUnit, req.DepositorID, req.Amount, req.At)
		if err != nil {
			return settlement.DepositResult{}, withAsset(err, key)
		}
		return res, tx.PutBook(ctx, b)
	}, nil)
}

// Withdraw returns part of a depositor's post-settlement contribution.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (settlement.WithdrawResult, error) {
	key := ledger.AssetKey{CollectionID: req.CollectionID, AssetID: req.AssetID}
	if err := requireIDs(key, req.DepositorID); err != nil {
		return settlement.WithdrawResult{}, err
	}
	unlock, err := e.locks.LockAsset(key)
	if err != nil {
		return settlement.WithdrawResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (settlement.WithdrawResult, error) {
		p, b, err := loadAsset(ctx, tx, key)
		if err != nil {
			return settlement.WithdrawResult{}, err
		}
		res, err := settlement.Withdraw(b, p.RatePerTimeUnit, req.DepositorID, req.Amount, req.At)
		if err != nil {
			return settlement.WithdrawResult{}, withAsset(err, key)
		}
		return res, tx.PutBook(ctx, b)
	}, nil)
}

// Settle settles accrued tax up to req.At.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (settlement.SettlementResult, error) {
	key := ledger.AssetKey{CollectionID: req.CollectionID, AssetID: req.AssetID}
	if err := requireIDs(key); err != nil {
		return settlement.SettlementResult{}, err
	}
	unlock, err := e.locks.LockAsset(key)
	if err != nil {
		return settlement.SettlementResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (settlement.SettlementResult, error) {
		p, b, err := loadAsset(ctx, tx, key)
		if err != nil {
			return settlement.SettlementResult{}, err
		}
		res, err := settlement.Settle(b, p.RatePerTimeUnit, req.At)
		if err != nil {
			return settlement.SettlementResult{}, withAsset(err, key)
		}
		return res, tx.PutBook(ctx, b)
	}, nil)
}

// ClaimForeclosure transfers an eligible asset to the claimant. A change of
// custodian is written to the custody-transfer outbox in the same
// transaction.
func (e *Engine) ClaimForeclosure(ctx context.Context, req ClaimRequest) (settlement.ClaimResult, error) {
	key := ledger.AssetKey{CollectionID: req.CollectionID, AssetID: req.AssetID}
	if err := requireIDs(key, req.ClaimantID); err != nil {
		return settlement.ClaimResult{}, err
	}
	unlock, err := e.locks.LockAsset(key)
	if err != nil {
		return settlement.ClaimResult{}, err
	}
	defer unlock()

	op := e.prepare(req.operation())
	return execute(ctx, e, op, func(ctx context.Context, tx *store.Tx) (settlement.ClaimResult, error) {
		p, b, err := loadAsset(ctx, tx, key)
		if err != nil {
			return settlement.ClaimResult{}, err
		}
		res, err := settlement.ClaimForeclosure(b, p.RatePerTimeUnit, req.ClaimantID, req.Payment, req.At)
		if err != nil {
			return settlement.ClaimResult{}, withAsset(err, key)
		}
		return res, tx.PutBook(ctx, b)
	}, func(ctx context.Context, tx *store.Tx, res settlement.ClaimResult) error {
		if res.PreviousCustodian == res.NewCustodian {
			return nil
		}
		_, err := tx.EnqueueCustodyTransfer(ctx, store.CustodyTransfer{
			RequestID:     op.RequestID,
			CollectionID:  key.CollectionID,
			AssetID:       key.AssetID,
			FromCustodian: res.PreviousCustodian,
			ToCustodian:   res.NewCustodian,
			At:            req.At,
		})
		return err
	})
}

// prepare fills in a missing request ID.
func (e *Engine) prepare(op ledger.Operation) ledger.Operation {
	if op.RequestID == "" {
		op.RequestID = e.ids.Generate()
	}
	return op
}

// execute runs apply in one transaction and journals its result.
//
// A request ID already in the journal is not applied again: with the same
// content hash the recorded result is returned, otherwise REQUEST_CONFLICT.
// after runs once the journal row exists and may write rows that
// reference it.
func execute[R any](
	ctx context.Context,
	e *Engine,
	op ledger.Operation,
	apply func(context.Context, *store.Tx) (R, error),
	after func(context.Context, *store.Tx, R) error,
) (R, error) {
	var result R
	hash, err := op.Hash()
	if err != nil {
		return result, err
	}

	var seq int64
	duplicate := false
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		rec, err := tx.FindOperation(ctx, op.RequestID)
		switch {
		case err == nil:
			if rec.RequestHash != hash {
				return ledger.NewRequestConflictError(op.RequestID)
			}
			duplicate = true
			seq = rec.Seq
			return store.UnmarshalResult(rec.Result, &result)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find operation: %w", err)
		}

		r, err := apply(ctx, tx)
		if err != nil {
			return err
		}
		if seq, err = tx.AppendOperation(ctx, op, r); err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, tx, r); err != nil {
				return err
			}
		}
		result = r
		return nil
	})

	attrs := []any{
		"kind", op.Kind,
		"request_id", op.RequestID,
		"collection", op.CollectionID,
		"asset", op.AssetID,
		"at", op.At,
	}
	if err != nil {
		e.logger.Debug("operation rejected", append(attrs, "code", ledger.CodeOf(err), "error", err)...)
		var zero R
		return zero, err
	}
	if duplicate {
		e.logger.Debug("duplicate request, returning recorded result", append(attrs, "seq", seq)...)
		return result, nil
	}
	e.logger.Info("operation committed", append(attrs, "seq", seq)...)
	return result, nil
}

func loadCollection(ctx context.Context, tx *store.Tx, collectionID string) (ledger.CollectionParameters, error) {
	p, err := tx.Collection(ctx, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CollectionParameters{}, ledger.NewCollectionNotFoundError(collectionID)
	}
	if err != nil {
		return ledger.CollectionParameters{}, fmt.Errorf("read collection: %w", err)
	}
	return p, nil
}

func loadAsset(ctx context.Context, tx *store.Tx, key ledger.AssetKey) (ledger.CollectionParameters, *ledger.Book, error) {
	p, err := loadCollection(ctx, tx, key.CollectionID)
	if err != nil {
		return ledger.CollectionParameters{}, nil, err
	}
	b, err := tx.Book(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CollectionParameters{}, nil, ledger.NewAssetNotFoundError(key)
	}
	if err != nil {
		return ledger.CollectionParameters{}, nil, fmt.Errorf("read book: %w", err)
	}
	return p, b, nil
}

// requireIDs rejects requests with empty or malformed identifiers.
func requireIDs(key ledger.AssetKey, actorIDs ...string) error {
	if err := ledger.CheckID("collection id", key.CollectionID); err != nil {
		return err
	}
	if err := ledger.CheckID("asset id", key.AssetID); err != nil {
		return err
	}
	for _, id := range actorIDs {
		if err := ledger.CheckID("actor id", id); err != nil {
			return err
		}
	}
	return nil
}

// withAsset attaches key to ledger errors raised without one.
func withAsset(err error, key ledger.AssetKey) error {
	var le *ledger.Error
	if errors.As(err, &le) && le.Asset == (ledger.AssetKey{}) {
		le.Asset = key
	}
	return err
}
