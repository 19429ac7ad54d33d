// Package storage persists access tokens between process runs.
//
// A TokenStore keeps one token per key, usually the OAuth client ID. The
// serialized form is produced by a Codec: JSON or CBOR, optionally sealed
// with AES-256-GCM.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-process storage for tests and short-lived tools
//   - storage/file: one file per key on the local filesystem
//   - storage/valkey: Valkey/Redis-compatible shared storage
package storage
