// Package store defines the backend capability contract for lattice and
// the bundled backend implementations.
//
// A lattice hierarchy is persisted as a flat set of string keys mapping
// to byte payloads. Every backend implements the same narrow [Store]
// interface — get, set, delete, delete-by-prefix, list-by-prefix,
// existence check, clear — and any two backends driven through the same
// operation sequence must produce identical key sets. The [Memory]
// backend is the trusted reference model used to verify the others; see
// the verify package for the comparison harness.
//
// # Backends
//
//   - [Memory]: map-backed, the reference model and test default
//   - [Local]: one file per key beneath a root directory
//   - [Zip]: read-only view over a zip archive
//   - [Badger]: embedded badger database, persistent single-host storage
//   - [Dynamo]: one DynamoDB item per key
//   - [GCS]: one Cloud Storage object per key
//
// # Capabilities
//
// Write-once backends cannot remove keys. [Store.SupportsDeletes] is a
// static advertisement of that gap: the hierarchy engine checks it and
// rejects delete operations with [ErrUnsupported] instead of attempting
// a destructive partial delete.
//
// # Errors
//
// Absent keys surface as [ErrNotFound]. Opaque backend failures are
// wrapped in [IOError], preserving the original cause for diagnostics;
// they are never translated into hierarchy-semantic errors.
package store
