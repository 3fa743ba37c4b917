// Package memory provides a volatile, in-process storage backend for kvcache.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when a key or value is not valid UTF-8 text.
// The store rejects such text so it behaves exactly like the durable backend.
var ErrInvalidUTF8 = errors.New("not valid UTF-8")

// Store keeps entries in a map. Nothing survives the process.
type Store struct {
	m map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{m: make(map[string]string)}
}

// List returns a copy of all entries.
func (s *Store) List(context.Context) (map[string]string, error) {
	return maps.Clone(s.m), nil
}

// Add inserts or replaces an entry.
func (s *Store) Add(_ context.Context, key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	s.m[key] = value
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if _, ok := s.m[key]; !ok {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

// Modify replaces the value of an existing entry.
func (s *Store) Modify(_ context.Context, key, value string) (bool, error) {
	if err := validate(key, value); err != nil {
		return false, err
	}
	if _, ok := s.m[key]; !ok {
		return false, nil
	}
	s.m[key] = value
	return true, nil
}

// Get retrieves a value.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

func validate(key, value string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("key %q: %w", key, ErrInvalidUTF8)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("value for key %q: %w", key, ErrInvalidUTF8)
	}
	return nil
}

// Close is a no-op, provided for interface consistency.
func (*Store) Close() error {
	return nil
}
