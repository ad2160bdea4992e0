// Package store provides SQLite-backed durable storage for the experiment
// ledger.
//
// The store owns every persisted row:
//   - meta: named entities (session prototypes, users, streams, blob types,
//     deduplicated session paths)
//   - runs, session, run_session, children, user_session: the run/session
//     hierarchy and the roster snapshots taken when sessions open
//   - log, blobs: append-only data records and their binary attachments
//   - setup: stage markers
//
// # Transactions
//
// Writes accumulate in a single pending transaction that is opened by the
// first write after a commit. Reads go through the same transaction while it
// is pending, so the writer always sees its own rows. Nothing is durable until
// Commit; rows written after the last commit are lost on a crash, which is
// the documented recovery contract: a run or session whose end_time is NULL
// was not closed cleanly.
//
// # Bootstrap
//
// Open creates the schema only when the setup table is missing. Reopening an
// existing file never re-runs table creation and preserves all rows and ids.
//
// # Database Configuration
//
//   - WAL mode for file databases
//   - synchronous from Options (default NORMAL)
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - one open connection: the ledger is single-writer
package store
