package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/harberger/internal/store"
)

// CustodyTransferer moves an asset to its new custodian outside the
// ledger. Implementations must be idempotent per transfer ID: a transfer
// whose delivery succeeded but was not marked sent is delivered again.
type CustodyTransferer interface {
	TransferCustody(ctx context.Context, t store.CustodyTransfer) error
}

// CustodyTransfererFunc adapts a function to CustodyTransferer.
type CustodyTransfererFunc func(ctx context.Context, t store.CustodyTransfer) error

// TransferCustody calls f.
func (f CustodyTransfererFunc) TransferCustody(ctx context.Context, t store.CustodyTransfer) error {
	return f(ctx, t)
}

// LogTransferer records transfers in the log and delivers nothing. It is
// the CLI default when no asset-transfer backend is wired.
type LogTransferer struct {
	Logger *slog.Logger
}

// TransferCustody logs t.
func (l LogTransferer) TransferCustody(_ context.Context, t store.CustodyTransfer) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("custody transfer",
		"id", t.ID,
		"request_id", t.RequestID,
		"asset", t.Key().String(),
		"from", t.FromCustodian,
		"to", t.ToCustodian,
		"at", t.At,
	)
	return nil
}

// ErrNoTransferer is returned by DispatchCustodyTransfers when the engine
// was built without WithCustodyTransferer.
var ErrNoTransferer = errors.New("no custody transferer configured")

// DispatchResult reports one dispatch pass.
type DispatchResult struct {
	Sent    []store.CustodyTransfer `json:"sent"`
	Pending int                     `json:"pending"`
}

// DispatchCustodyTransfers delivers up to limit pending outbox records in
// order. Delivery stops at the first failure; that record and everything
// after it stay pending for the next pass. A limit of zero or less means
// no limit.
func (e *Engine) DispatchCustodyTransfers(ctx context.Context, limit int) (DispatchResult, error) {
	if e.transferer == nil {
		return DispatchResult{}, ErrNoTransferer
	}
	pending, err := e.store.PendingCustodyTransfers(ctx, limit)
	if err != nil {
		return DispatchResult{}, err
	}

	res := DispatchResult{Sent: []store.CustodyTransfer{}, Pending: len(pending)}
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.transferer.TransferCustody(ctx, t); err != nil {
			e.logger.Warn("custody transfer failed", "id", t.ID, "asset", t.Key().String(), "error", err)
			return res, fmt.Errorf("transfer custody %d: %w", t.ID, err)
		}
		if err := e.store.MarkCustodyTransferSent(ctx, t.ID); err != nil {
			return res, err
		}
		t.Sent = true
		res.Sent = append(res.Sent, t)
		res.Pending--
	}
	return res, nil
}
