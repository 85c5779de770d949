// Package storage records an audit trail of task registration attempts.
//
// Drivers:
//   - "file": append-only JSON Lines next to the configured path
//   - "sqlite": SQLite database file (build tag sqlite)
package storage
