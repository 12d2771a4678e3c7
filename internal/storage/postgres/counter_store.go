package postgres

import (
	"context"
	"fmt"

	"launchpad-index/internal/storage"
)

// CounterStore implements storage.CounterStore using PostgreSQL.
type CounterStore struct {
	pool *Pool
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(pool *Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CounterStore = (*CounterStore)(nil)

// Increment atomically adds delta and returns the new value.
func (s *CounterStore) Increment(ctx context.Context, name string, delta int64) (int64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO counters (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			value = counters.value + EXCLUDED.value,
			updated_at = now()
		RETURNING value
	`

	var value int64
	if err := s.pool.QueryRow(ctx, query, name, delta).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return value, nil
}

// GetCounter returns the counter value, 0 when unset.
func (s *CounterStore) GetCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM counters WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	return value, nil
}

// SetCounter overwrites the counter value.
func (s *CounterStore) SetCounter(ctx context.Context, name string, value int64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO counters (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, name, value); err != nil {
		return fmt.Errorf("set counter %s: %w", name, err)
	}
	return nil
}
