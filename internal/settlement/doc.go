// Package settlement implements the escrow state machine for a single asset.
//
// Every operation here is a pure function of (Book, rate, now, request):
//
//  1. Clone the book
//  2. Settle accrued tax up to now on the clone
//  3. Apply the requested change on the clone
//  4. Check book invariants
//  5. Publish the clone into the caller's book
//
// Any error in steps 1-4 leaves the caller's book untouched, so a failed
// operation has no observable effect. Persistence, locking and idempotency
// live in package engine.
//
// State machine:
//
//	active --(settle with shortfall)--> foreclosure_eligible
//	foreclosure_eligible --(deposit curing deficit)--> active
//	foreclosure_eligible --(ClaimForeclosure)--> active (new custodian)
//
// Deposits carry counterparty risk: a contribution can be consumed entirely
// as tax, and any residue is forfeited when the asset is claimed.
package settlement
