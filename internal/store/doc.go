// Package store provides file-based persistence for heartx's local caches.
//
// Everything here is advisory: the relay holds the authoritative slot set and
// claim/verify records, and every store can be rebuilt by refetching. No store
// ever holds an unlocked private key. Data is serialised as JSON under a
// per-identity directory; all methods are concurrency-safe via internal locking.
//
// The package includes stores for:
//   - Draft selections (DraftFileStore)
//   - The public-key directory snapshot (DirectoryFileStore)
//   - Late-arrival reconciliation state (LateFileStore)
//   - Per-counterpart auxiliary notes (AuxFileStore)
//   - Poll cursors (CursorFileStore)
package store
