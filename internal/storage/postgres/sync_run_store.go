package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// SyncRunStore implements storage.SyncRunStore using PostgreSQL.
type SyncRunStore struct {
	pool *Pool
}

// NewSyncRunStore creates a new SyncRunStore.
func NewSyncRunStore(pool *Pool) *SyncRunStore {
	return &SyncRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncRunStore = (*SyncRunStore)(nil)

const syncRunColumns = `id, kind, source, fetched, written, skipped, started_at, finished_at`

// Insert appends a run and assigns its ID.
func (s *SyncRunStore) Insert(ctx context.Context, run *domain.SyncRun) error {
	if run == nil || run.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sync_runs (kind, source, fetched, written, skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		string(run.Kind),
		string(run.Source),
		run.Fetched,
		run.Written,
		run.Skipped,
		run.StartedAt,
		run.FinishedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// Latest returns the newest run for kind and source. Returns ErrNotFound if none.
func (s *SyncRunStore) Latest(ctx context.Context, kind domain.RunKind, source domain.Source) (*domain.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs
		WHERE kind = $1 AND source = $2
		ORDER BY id DESC
		LIMIT 1`

	run, err := scanSyncRun(s.pool.QueryRow(ctx, query, string(kind), string(source)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest sync run: %w", err)
	}
	return run, nil
}

// Recent returns the newest runs, newest first. limit <= 0 returns all.
func (s *SyncRunStore) Recent(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent sync runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func scanSyncRun(row pgx.Row) (*domain.SyncRun, error) {
	var (
		run          domain.SyncRun
		kind, source string
	)
	if err := row.Scan(
		&run.ID,
		&kind,
		&source,
		&run.Fetched,
		&run.Written,
		&run.Skipped,
		&run.StartedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}
	run.Kind = domain.RunKind(kind)
	run.Source = domain.Source(source)
	return &run, nil
}
