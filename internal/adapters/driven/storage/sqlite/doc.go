// Package sqlite provides a SQLite-backed implementation of the
// SnapshotStore driven port.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. A session snapshot is
// stored relationally (sessions, documents, chunks, turns) with the
// serialized vector index kept as an opaque blob, so that a save followed by
// a load reproduces the snapshot exactly.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.regcap/data/sessions.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
