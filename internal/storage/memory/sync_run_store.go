package memory

import (
	"context"
	"sync"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// SyncRunStore is an in-memory implementation of storage.SyncRunStore.
type SyncRunStore struct {
	mu     sync.RWMutex
	runs   []*domain.SyncRun // insertion order
	nextID int64
}

// NewSyncRunStore creates a new in-memory run log.
func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{nextID: 1}
}

// Insert appends a run and assigns its ID.
func (s *SyncRunStore) Insert(_ context.Context, run *domain.SyncRun) error {
	if run == nil || run.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = s.nextID
	s.nextID++
	runCopy := *run
	s.runs = append(s.runs, &runCopy)
	return nil
}

// Latest returns the newest run for kind and source. Returns ErrNotFound if none.
func (s *SyncRunStore) Latest(_ context.Context, kind domain.RunKind, source domain.Source) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if r.Kind == kind && r.Source == source {
			runCopy := *r
			return &runCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Recent returns the newest runs, newest first.
func (s *SyncRunStore) Recent(_ context.Context, limit int) ([]*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SyncRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		runCopy := *s.runs[i]
		result = append(result, &runCopy)
	}
	return result, nil
}

var _ storage.SyncRunStore = (*SyncRunStore)(nil)
