// Package memory is an in-process implementation of the storage contract,
// used by tests and by standalone servers run without a Redis instance.
package memory

import (
	"context"
	"sync"

	"github.com/z060142/FireNET/internal/storage"
)

// Storage holds all values in a mutex-guarded map.
type Storage struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ storage.Store = (*Storage)(nil)

// New returns an empty in-memory store.
func New() *Storage {
	return &Storage{values: make(map[string]string)}
}

// Get returns the value under key, or storage.ErrNotFound.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set writes value under key, overwriting any previous value.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Storage) Close() error {
	return nil
}
