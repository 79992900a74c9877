package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpKind names a journaled operation.
type OpKind string

const (
	// OpRegisterCollection creates a collection with its admin and rate.
	OpRegisterCollection OpKind = "register_collection"

	// OpUpdateRate settles every book of a collection and stores a new rate.
	OpUpdateRate OpKind = "update_rate"

	// OpDeposit settles an asset and credits a depositor's contribution.
	OpDeposit OpKind = "deposit"

	// OpWithdraw settles an asset and returns part of a contribution.
	OpWithdraw OpKind = "withdraw"

	// OpSettle charges accrued tax up to the request time.
	OpSettle OpKind = "settle"

	// OpClaimForeclosure pays an eligible asset's deficit and takes custody.
	OpClaimForeclosure OpKind = "claim_foreclosure"
)

// DomainRequest separates request hashes from any other SHA-256 use.
// Version suffix enables future algorithm migration.
const DomainRequest = "harberger/request/v1"

// Operation is one journaled request. The journal is the replay source:
// applying every Operation in Seq order to empty state reproduces the
// persisted collections and books.
//
// Field use by kind:
//   - register_collection: ActorID = admin authority, Denomination, Amount = rate
//   - update_rate: ActorID = authority token, Amount = new rate
//   - deposit, withdraw: ActorID = depositor, Amount
//   - settle: no actor, no amount
//   - claim_foreclosure: ActorID = claimant, Amount = payment
type Operation struct {
	Seq          int64  `json:"seq"`
	RequestID    string `json:"request_id"`
	Kind         OpKind `json:"kind"`
	CollectionID string `json:"collection_id"`
	AssetID      string `json:"asset_id,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
	Denomination string `json:"denomination,omitempty"`
	Amount       uint64 `json:"amount"`
	At           uint64 `json:"at"`
}

// Key returns the asset the operation targets.
func (op Operation) Key() AssetKey {
	return AssetKey{CollectionID: op.CollectionID, AssetID: op.AssetID}
}

// canonicalObject excludes Seq and RequestID: the hash identifies what was
// asked, not when or under which ID it was recorded.
func (op Operation) canonicalObject() map[string]any {
	return map[string]any{
		"kind":          string(op.Kind),
		"collection_id": op.CollectionID,
		"asset_id":      op.AssetID,
		"actor_id":      op.ActorID,
		"denomination":  op.Denomination,
		"amount":        op.Amount,
		"at":            op.At,
	}
}

// Hash computes the content hash used to detect request ID reuse.
// Format: hex(SHA256(DomainRequest + 0x00 + canonical JSON)).
func (op Operation) Hash() (string, error) {
	canonical, err := MarshalCanonical(op.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("operation hash: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainRequest))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func (op Operation) MustHash() string {
	h, err := op.Hash()
	if err != nil {
		panic(err)
	}
	return h
}
