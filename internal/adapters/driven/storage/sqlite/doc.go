// Package sqlite provides the SQLite-backed implementation of the
// DocumentSink driven port.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. All harvested documents
// live in a single documents table keyed by their OAI identifier; the flat
// Dublin Core projection and the structured MARC payload occupy disjoint
// column sets of the same row, so either schema variant can be harvested
// first and re-harvested at will.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
