// Package ledger provides the record types shared by every other package:
// collection parameters, per-asset ledgers, depositor records and the
// operation journal entries that drive them.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ledger; ledger imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - amounts, rates and timestamps are uint64
//   - Timestamps are supplied by the caller, never read from the wall clock
//   - All JSON tags use snake_case
//   - A Book (ledger + depositor records) is the unit of atomic mutation
package ledger
