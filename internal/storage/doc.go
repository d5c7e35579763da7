// Package storage persists stagehand's durable state:
//
//   - module settings blobs (global task list, processed-message ledger)
//   - per-character data records (character-scoped task lists)
//
// Records are opaque JSON payloads keyed by module name, and for character
// data additionally by character id, so the schema stays stable while the
// engine evolves.
package storage
