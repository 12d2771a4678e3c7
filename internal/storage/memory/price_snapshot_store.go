package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// PriceSnapshotStore is an in-memory implementation of storage.PriceSnapshotStore.
type PriceSnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PriceSnapshot // keyed by address
}

// NewPriceSnapshotStore creates a new in-memory snapshot store.
func NewPriceSnapshotStore() *PriceSnapshotStore {
	return &PriceSnapshotStore{
		data: make(map[string][]*domain.PriceSnapshot),
	}
}

// InsertBulk appends snapshots. Rejects the whole batch on invalid input.
func (s *PriceSnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.Address == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		snapCopy := *snap
		s.data[snap.Address] = append(s.data[snap.Address], &snapCopy)
	}
	return nil
}

// GetByAddress retrieves snapshots within [from, to] (inclusive), ordered by time ASC.
func (s *PriceSnapshotStore) GetByAddress(_ context.Context, address string, from, to time.Time) ([]*domain.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSnapshot
	for _, snap := range s.data[address] {
		if snap.ObservedAt.Before(from) || snap.ObservedAt.After(to) {
			continue
		}
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

var _ storage.PriceSnapshotStore = (*PriceSnapshotStore)(nil)
