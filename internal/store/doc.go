// Package store provides protected persistence for custodia's device-local state.
//
// Every backend implements domain.RecordStore: a flat map of namespaced string
// records. All methods are concurrency-safe.
//
// The package includes:
//   - MemoryStore, for tests and simulated restarts
//   - FileStore, one 0600 file per record with atomic replace
//   - LevelDBStore, an embedded database with synced writes
//   - SealedStore, which seals each record with scrypt + ChaCha20-Poly1305 and
//     binds it to its record name
//   - LinkStore, the KYC link state as a plain load/save record
package store
