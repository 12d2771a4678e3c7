package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
// A single mutex makes every UpsertMerge an atomic read-modify-write.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TokenRecord // keyed by normalized address
	now     func() time.Time
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]*domain.TokenRecord),
		now:     time.Now,
	}
}

// WithClock overrides the store clock (tests).
func (s *RecordStore) WithClock(now func() time.Time) *RecordStore {
	s.now = now
	return s
}

// Get retrieves a record by address. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(_ context.Context, address string) (*domain.TokenRecord, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.records[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// UpsertMerge applies patch under policy while holding the write lock.
func (s *RecordStore) UpsertMerge(_ context.Context, patch *domain.RecordPatch, policy storage.MergePolicy) (*domain.TokenRecord, error) {
	if patch == nil {
		return nil, storage.ErrInvalidInput
	}
	p := *patch
	if err := storage.ValidatePatch(&p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := storage.Merge(s.records[p.Address], &p, policy, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.records[p.Address] = merged.Clone()
	return merged, nil
}

// List returns records matching filter.
func (s *RecordStore) List(_ context.Context, filter storage.RecordFilter) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	result := make([]*domain.TokenRecord, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r.Clone())
	}
	s.mu.RUnlock()

	return filter.Apply(result), nil
}

// Addresses returns every stored address in ascending order.
func (s *RecordStore) Addresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.records))
	for addr := range s.records {
		result = append(result, addr)
	}
	sort.Strings(result)
	return result, nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ storage.RecordStore = (*RecordStore)(nil)
