// Package store provides SQLite-backed durable storage for issue actions.
//
// The store is an append-only journal:
//   - Repos: registered repositories
//   - Actions: every signed action, tagged with its repository and issue
//
// # Invariants
//
// Idempotent writes
//   - UNIQUE(repo_id, id) with ON CONFLICT DO NOTHING
//   - Receiving the same action twice stores it once
//
// Deterministic reads
//   - All queries order by seq ASC, id ASC COLLATE BINARY
//   - seq is insertion order, and an action is only ever written after its
//     parents, so replaying in seq order is always causally valid
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Action ids are content addresses computed by the cob package; the store
// never derives them.
package store
