package kvcache

import "context"

// Store defines the interface for cache storage backends.
// Uses only standard library types, so implementations can satisfy it
// without importing this package.
//
// Implementations are not required to be safe for concurrent use;
// Cache serializes access to them.
type Store interface {
	// List returns a snapshot of every live entry.
	List(ctx context.Context) (map[string]string, error)

	// Add inserts the entry, replacing any existing value.
	Add(ctx context.Context, key, value string) error

	// Delete removes the entry and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Modify replaces the value of an existing entry and reports whether it existed.
	// It never creates an entry.
	Modify(ctx context.Context, key, value string) (bool, error)

	// Get returns the current value, or false if the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Close releases any resources held by the store.
	Close() error
}
