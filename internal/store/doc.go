// Package store provides SQLite-backed durable storage for escrow ledgers.
//
// Tables:
//   - collections: Tax parameters, one row per collection
//   - asset_ledgers: One row per asset under the taxed regime
//   - depositor_records: Per-(asset, depositor) escrow shares
//   - operations: Append-only journal of every committed request
//   - custody_transfers: Outbox of foreclosure custody changes
//
// # Critical Patterns
//
// Atomic Operations
//   - Every engine operation runs inside one InTx call
//   - Transactions begin IMMEDIATE so a second writer waits or fails
//     instead of reading a ledger that is about to change
//
// Request-Level Idempotency
//   - UNIQUE(request_id) on operations
//   - A replayed request finds its journal row and returns the stored result
//
// Deterministic Ordering
//   - Journal reads ORDER BY seq ASC
//   - Book and depositor reads ORDER BY id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
