// Package store defines the capability contract every lattice backend
// implements, plus the bundled backend implementations.
package store

import (
	"context"
	"sort"
	"strings"
)

// Store is the minimal operation set a backend must provide.
//
// Keys are UTF-8, `/`-delimited, with no leading or trailing slash.
// Single-key operations are atomic from the caller's viewpoint. Prefix
// deletes may be batched internally; a failure partway leaves the true
// partial state visible to later listings. There is no transaction
// across calls.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value stored at key.
	// Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or overwrites the value at key.
	// Writes are visible to subsequent reads by the same caller.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key if present. Deleting an absent key is a
	// no-op, not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key beginning with prefix in one
	// logical call.
	DeletePrefix(ctx context.Context, prefix string) error

	// ListPrefix returns every currently-existing key beginning with
	// prefix. Order is unspecified.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all keys, resetting the backend to the empty state.
	Clear(ctx context.Context) error

	// SupportsDeletes reports whether the backend can remove keys.
	// Write-once backends (archives) return false; callers must reject
	// delete operations up front instead of failing destructively.
	SupportsDeletes() bool
}

// SortedKeys returns the backend's keys under prefix in sorted order.
// Backends make no ordering promise, so cross-backend comparisons go
// through this helper.
func SortedKeys(ctx context.Context, s Store, prefix string) ([]string, error) {
	keys, err := s.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// hasPrefix matches ListPrefix/DeletePrefix semantics: the empty prefix
// matches everything.
func hasPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}
