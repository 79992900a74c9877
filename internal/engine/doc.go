// Package engine runs Harberger ledger operations against the store.
//
// The engine is the transactional shell around the pure settlement
// package. It resolves collections and books, serialises writers per
// asset, journals every committed request and feeds the custody-transfer
// outbox.
//
// ARCHITECTURE:
//
// Operation Flow:
//  1. Acquire the asset lock (TryLock; a held lock fails with ASSET_BUSY)
//  2. BEGIN IMMEDIATE
//  3. Look up the request ID in the journal
//  4. Load collection and book, run the settlement function on a clone
//  5. Write book, journal entry and any outbox record
//  6. COMMIT, or ROLLBACK on any error
//
// Nothing is persisted for a failed request. A failed request ID may be
// reused.
//
// CRITICAL PATTERNS:
//
// Single Writer Per Asset:
// Asset operations hold a read lock on their collection and an exclusive
// lock on the asset. Rate changes take the collection write lock because
// they settle every asset of the collection. Locks are never waited on:
// contention is reported to the caller, who decides whether to retry.
//
// Caller-Supplied Time:
// The engine never reads a clock. Every request carries At and the
// accrual interval is measured between stored LastSettlement and At.
package engine
