// Package domain defines the core business entities for oaisync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - HarvestedRecord / Page: one record, one paged response
//   - DublinCoreRow / MarcRow: the two normalized row shapes
//   - Checkpoint: durable per-schema resume state
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
