// Package store implements the backend contract (C3): persisting
// hash->bytes result entries and hash->holder lock entries, with
// directory, in-memory, NATS key-value, and NATS hybrid object+kv
// variants selected by a connection string.
package store

import (
	"errors"
)

// ErrMissing is returned by Load when no entry exists for the given hash.
var ErrMissing = errors.New("store: missing entry")

// Store is the backend contract every variant implements (§4.2).
// Encoding failures, network errors, and I/O errors must be returned as
// ordinary errors, never panics: the scheduler treats any error from
// CanLoad/Acquire as "unknown state" for the current pass.
type Store interface {
	// Dump encodes value and persists it under hash, atomically with
	// respect to concurrent CanLoad/Load callers.
	Dump(hash string, value any) error
	// Load reads and decodes the entry for hash, returning ErrMissing if
	// absent.
	Load(hash string) (any, error)
	// CanLoad is a non-blocking existence check. May race against
	// concurrent deletes.
	CanLoad(hash string) bool
	// Remove deletes the entry if present, reporting whether it existed.
	Remove(hash string) (bool, error)
	// List enumerates every present result entry's hash.
	List() ([]string, error)
	// GetLock returns a lock handle for hash without acquiring it.
	GetLock(hash string) Lock
	// Cleanup deletes every result entry whose hash is not in active,
	// returning the count removed.
	Cleanup(active map[string]bool) (int, error)
	// RemoveLocks deletes every held lock entry, returning the count
	// removed. Used to recover from crashed workers.
	RemoveLocks() (int, error)
	// ListLocks enumerates every held lock's hash.
	ListLocks() ([]string, error)
	// Close releases any held connections or file handles.
	Close() error
}

// Lock is a per-hash mutual-exclusion primitive (§4.2).
type Lock interface {
	// Acquire atomically creates the lock entry iff absent. Returns true
	// iff this caller now owns it. Never blocks.
	Acquire() (bool, error)
	// Release deletes the lock entry. The caller must own it.
	Release() error
	// IsLocked is an advisory existence check.
	IsLocked() bool
}
