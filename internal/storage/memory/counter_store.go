package memory

import (
	"context"
	"sync"

	"launchpad-index/internal/storage"
)

// CounterStore is an in-memory implementation of storage.CounterStore.
type CounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewCounterStore creates a new in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[string]int64)}
}

// Increment atomically adds delta and returns the new value.
func (s *CounterStore) Increment(_ context.Context, name string, delta int64) (int64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
	return s.counters[name], nil
}

// GetCounter returns the counter value, 0 when unset.
func (s *CounterStore) GetCounter(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name], nil
}

// SetCounter overwrites the counter value.
func (s *CounterStore) SetCounter(_ context.Context, name string, value int64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] = value
	return nil
}

var _ storage.CounterStore = (*CounterStore)(nil)
