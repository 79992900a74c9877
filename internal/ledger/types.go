package ledger

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// AssetState is the foreclosure state of a single asset.
type AssetState string

const (
	// StateActive means the escrow covers all accrued tax.
	StateActive AssetState = "active"

	// StateForeclosureEligible means escrow was exhausted with tax left unpaid.
	// Any party may claim the asset by paying the outstanding deficit.
	StateForeclosureEligible AssetState = "foreclosure_eligible"
)

// Valid reports whether s is a known state.
func (s AssetState) Valid() bool {
	return s == StateActive || s == StateForeclosureEligible
}

// CollectionParameters holds the tax configuration shared by every asset of
// a collection. Assets reference it by CollectionID; it is never copied into
// an AssetLedger.
type CollectionParameters struct {
	CollectionID        string `json:"collection_id"`
	AdminAuthorityID    string `json:"admin_authority_id"`
	DenominationAssetID string `json:"denomination_asset_id"`

	// RatePerTimeUnit is the tax owed per elapsed time unit, in base units of
	// DenominationAssetID.
	RatePerTimeUnit uint64 `json:"rate_per_time_unit"`
}

// Validate checks that required identifiers are present and well formed.
func (p CollectionParameters) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"collection_id", p.CollectionID},
		{"admin_authority_id", p.AdminAuthorityID},
		{"denomination_asset_id", p.DenominationAssetID},
	} {
		if err := CheckID(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// CheckID rejects identifiers that are empty, not valid UTF-8, or not in
// Unicode NFC. Request hashes are computed over NFC text, so an identifier
// is accepted only when its stored bytes equal its hashed form.
func CheckID(field, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%s is required", field)
	case !utf8.ValidString(id):
		return fmt.Errorf("%s %q is not valid UTF-8", field, id)
	case !norm.NFC.IsNormalString(id):
		return fmt.Errorf("%s %q is not in Unicode NFC form", field, id)
	}
	return nil
}

// AssetLedger is the mutable escrow record of one asset.
type AssetLedger struct {
	CollectionID string `json:"collection_id"`
	AssetID      string `json:"asset_id"`
	CustodianID  string `json:"custodian_id"`

	// EscrowBalance is deposits minus settled tax. Always equals the sum of
	// the book's depositor contributions after a committed operation.
	EscrowBalance uint64 `json:"escrow_balance"`

	// Deficit is tax accrued while the escrow was empty and not yet paid.
	// Non-zero exactly when State is StateForeclosureEligible.
	Deficit uint64 `json:"deficit"`

	// LastSettlement is the caller-supplied time of the most recent
	// settlement. It never decreases.
	LastSettlement uint64 `json:"last_settlement"`

	State AssetState `json:"state"`
}

// Key returns the lock and lookup key of the asset.
func (l AssetLedger) Key() AssetKey {
	return AssetKey{CollectionID: l.CollectionID, AssetID: l.AssetID}
}

// DepositorRecord tracks one party's share of an asset's escrow pool.
type DepositorRecord struct {
	CollectionID      string `json:"collection_id"`
	AssetID           string `json:"asset_id"`
	DepositorID       string `json:"depositor_id"`
	AmountContributed uint64 `json:"amount_contributed"`
}

// AssetKey identifies an asset within a collection.
type AssetKey struct {
	CollectionID string
	AssetID      string
}

// String formats the key as "collection/asset".
func (k AssetKey) String() string {
	return k.CollectionID + "/" + k.AssetID
}
