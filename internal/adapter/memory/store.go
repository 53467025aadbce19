package memory

import (
	"context"
	"maps"
	"sync"
)

// Store is an in-memory domain.Store for tests and hosts without persistent storage.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// NewStoreWith returns a Store pre-populated with values.
func NewStoreWith(values map[string]string) *Store {
	s := NewStore()
	maps.Copy(s.values, values)
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Ping always succeeds; it lets the store participate in health checks.
func (s *Store) Ping(_ context.Context) error { return nil }

// Values returns a copy of the stored values.
func (s *Store) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
