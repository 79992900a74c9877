package engine

import (
	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/settlement"
)

// Every request carries an optional RequestID and the caller-supplied time
// At. An empty RequestID is filled from the engine's IDGenerator, which
// makes the request non-repeatable.

// RegisterCollectionRequest creates a collection.
type RegisterCollectionRequest struct {
	RequestID  string
	Collection ledger.CollectionParameters
	At         uint64
}

// UpdateRateRequest changes a collection's tax rate. AuthorityToken must
// equal the collection's AdminAuthorityID.
type UpdateRateRequest struct {
	RequestID      string
	CollectionID   string
	AuthorityToken string
	Rate           uint64
	At             uint64
}

// DepositRequest adds escrow to an asset on behalf of DepositorID. The
// first deposit creates the asset's ledger with DepositorID as custodian.
type DepositRequest struct {
	RequestID    string
	CollectionID string
	AssetID      string
	DepositorID  string
	Amount       uint64
	At           uint64
}

// WithdrawRequest returns part of a depositor's remaining contribution.
type WithdrawRequest struct {
	RequestID    string
	CollectionID string
	AssetID      string
	DepositorID  string
	Amount       uint64
	At           uint64
}

// SettleRequest settles accrued tax without any other change.
type SettleRequest struct {
	RequestID    string
	CollectionID string
	AssetID      string
	At           uint64
}

// ClaimRequest forecloses an eligible asset in favour of ClaimantID.
type ClaimRequest struct {
	RequestID    string
	CollectionID string
	AssetID      string
	ClaimantID   string
	Payment      uint64
	At           uint64
}

// RegisterResult reports a registered collection.
type RegisterResult struct {
	Collection ledger.CollectionParameters `json:"collection"`
}

// AssetSettlement is one asset's settlement during a rate change.
type AssetSettlement struct {
	AssetID    string                      `json:"asset_id"`
	Settlement settlement.SettlementResult `json:"settlement"`
}

// UpdateRateResult reports a rate change and the settlements it forced.
type UpdateRateResult struct {
	CollectionID string            `json:"collection_id"`
	PreviousRate uint64            `json:"previous_rate"`
	Rate         uint64            `json:"rate"`
	Settlements  []AssetSettlement `json:"settlements"`
}

func (r RegisterCollectionRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpRegisterCollection,
		CollectionID: r.Collection.CollectionID,
		ActorID:      r.Collection.AdminAuthorityID,
		Denomination: r.Collection.DenominationAssetID,
		Amount:       r.Collection.RatePerTimeUnit,
		At:           r.At,
	}
}

func (r UpdateRateRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpUpdateRate,
		CollectionID: r.CollectionID,
		ActorID:      r.AuthorityToken,
		Amount:       r.Rate,
		At:           r.At,
	}
}

func (r DepositRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpDeposit,
		CollectionID: r.CollectionID,
		AssetID:      r.AssetID,
		ActorID:      r.DepositorID,
		Amount:       r.Amount,
		At:           r.At,
	}
}

func (r WithdrawRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpWithdraw,
		CollectionID: r.CollectionID,
		AssetID:      r.AssetID,
		ActorID:      r.DepositorID,
		Amount:       r.Amount,
		At:           r.At,
	}
}

func (r SettleRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpSettle,
		CollectionID: r.CollectionID,
		AssetID:      r.AssetID,
		At:           r.At,
	}
}

func (r ClaimRequest) operation() ledger.Operation {
	return ledger.Operation{
		RequestID:    r.RequestID,
		Kind:         ledger.OpClaimForeclosure,
		CollectionID: r.CollectionID,
		AssetID:      r.AssetID,
		ActorID:      r.ClaimantID,
		Amount:       r.Payment,
		At:           r.At,
	}
}
