// Package database provides SQLite-based storage for onionwatch.
//
// Two databases are kept side by side in the data directory:
//   - onionwatch.db (Store) holds visited targets and their child rows:
//     detected technologies, threat keywords, tags, wallets, screenshots,
//     external intel, the alert and rescan audit logs, and the discovery
//     frontier.
//   - scheduler.db (JobStore) holds the persisted rescan jobs, so that the
//     schedule survives restarts independently of the results.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - each database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets the HTTP API read while a batch is writing
//
// Child collections of a target are always replaced wholesale inside one
// transaction; a visit never leaves a mix of old and new rows behind.
package database
