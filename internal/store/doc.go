// Package store persists sub-projects, commit records, and classifications in
// a SQLite database and guards scan runs with a per-store run lock.
//
// The database is opened with a single connection: every multi-statement write
// runs inside WithTx, and readers close their rows before issuing the next query.
package store
