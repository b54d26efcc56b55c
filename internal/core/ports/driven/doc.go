// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - PageFetcher: issues one paged request against the remote archive
//   - RecordExtractor: normalizes one harvested record per schema
//   - DocumentSink: page-scoped transactional upserts into the store
//   - CheckpointStore: durable per-schema resume state
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or transport package
package driven
