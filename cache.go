// Package kvcache provides a key-value cache over a pluggable storage backend.
//
// Backends implement Store. Two ship with the module: pkg/store/memory keeps
// entries in process memory, and pkg/store/localfs keeps one crash-safe file
// per entry in a directory.
package kvcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Cache serializes access to a Store: writes are exclusive, reads are shared.
// A single Cache should own its Store; share the *Cache, not the Store.
type Cache struct {
	mu    sync.RWMutex
	store Store
	log   *slog.Logger
}

// New wraps s in a Cache.
//
// Example:
//
//	store, _ := localfs.New("/var/cache/kv")
//	cache := kvcache.New(store)
//	defer cache.Close()
//
//	cache.Add(ctx, "user:123", "alice")
//	name, ok, err := cache.Get(ctx, "user:123")
func New(s Store, opts ...Option) *Cache {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Cache{store: s, log: cfg.logger}
}

// List returns a snapshot of all entries.
func (c *Cache) List(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, err := c.store.List(ctx)
	if err != nil {
		return nil, c.fail("list", "", err)
	}
	return m, nil
}

// Add inserts or replaces an entry.
func (c *Cache) Add(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Add(ctx, key, value); err != nil {
		return c.fail("add", key, err)
	}
	return nil
}

// Delete removes an entry. Returns false if there was no entry.
//
//nolint:revive // confusing-naming - standard cache operation
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, c.fail("delete", key, err)
	}
	return ok, nil
}

// Modify replaces the value of an existing entry. Returns false if there was no entry.
func (c *Cache) Modify(ctx context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.store.Modify(ctx, key, value)
	if err != nil {
		return false, c.fail("modify", key, err)
	}
	return ok, nil
}

// Get retrieves a value. Returns false if there is no entry.
//
//nolint:gocritic // unnamedResult - public API signature is intentionally clear without named returns
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return "", false, c.fail("get", key, err)
	}
	return v, ok, nil
}

// Close releases resources held by the store.
//
//nolint:revive // confusing-naming - standard cache operation
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// fail logs a storage malfunction and wraps it with the operation name.
func (c *Cache) fail(op, key string, err error) error {
	c.log.Error("storage failure", "op", op, "key", key, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
