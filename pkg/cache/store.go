package cache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrBackendUnavailable indicates the store could not complete an
	// operation. It never means the entry is absent.
	ErrBackendUnavailable = errors.New("cache backend unavailable")
)

// Store persists cache entries under derived keys.
//
// Implementations must be safe for concurrent use and must behave like
// an associative container: the last Set for a key wins, Get never
// returns a partially written entry, and Delete reports what it removed.
type Store interface {
	// Get returns the entry stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key, replacing any previous entry.
	// Entries that are not Storable are rejected with ErrInvalidEntry.
	Set(ctx context.Context, key string, entry *Entry) error

	// Delete removes the entry under key and returns it, or ErrCacheMiss
	// when nothing was stored.
	Delete(ctx context.Context, key string) (*Entry, error)

	// DeletePrefix removes every entry whose key starts with prefix and
	// returns how many were removed. Used to drop all vary variants of a
	// target at once.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// validateEntry enforces the storage invariant shared by all stores.
func validateEntry(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: cache entry cannot be nil", ErrInvalidEntry)
	}
	if !entry.Storable() {
		return fmt.Errorf("%w: cache entry has neither ttl nor validators", ErrInvalidEntry)
	}
	return nil
}
