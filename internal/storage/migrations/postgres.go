package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad-index/internal/storage/postgres"
)

// postgresLockKey serializes concurrent migrators through an advisory lock.
const postgresLockKey = 0x6c61756e6368

const postgresVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// RunPostgresMigrations applies every embedded migration not yet recorded in
// schema_migrations. Each migration runs in its own transaction together
// with its version row. Returns the number applied.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) (int, error) {
	all, err := Load(PostgresFS, "postgres")
	if err != nil {
		return 0, err
	}
	if _, err := pool.Exec(ctx, postgresVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range all {
		ok, err := applyPostgres(ctx, pool, m)
		if err != nil {
			return applied, fmt.Errorf("apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(postgresLockKey)); err != nil {
		return false, err
	}

	var done bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	for _, stmt := range m.Statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// PostgresVersions returns the recorded migration versions.
func PostgresVersions(ctx context.Context, pool *postgres.Pool) ([]int, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
