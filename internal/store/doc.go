// Package store provides SQLite-backed persistence for query results.
//
// The store keeps, per QueryKey, the last authoritative value and the
// reconnect journal of the Watch that produced it, so a restarted client
// starts every subscription from the same causal point.
//
// # Critical Patterns
//
// Seq-Guarded Upserts:
//   - SaveResult never replaces a record with a higher seq
//   - seq comes from the engine's logical clock, NEVER from timestamps
//
// Deterministic Reads:
//   - ListResults orders by name, args, key COLLATE BINARY
//   - args and value are canonical JSON, so identical queries are
//     byte-identical rows
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
