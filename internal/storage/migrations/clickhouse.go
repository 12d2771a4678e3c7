package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "launchpad-index/internal/storage/clickhouse"
)

const clickhouseVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     UInt32,
		name        String,
		applied_at  DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY version`

// RunClickhouseMigrations creates the DSN's database when missing and applies
// every embedded migration not yet recorded in schema_migrations.
// Returns a connection to the target database and the number applied.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, int, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, 0, err
	}
	all, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, 0, err
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, 0, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, 0, fmt.Errorf("connect clickhouse db: %w", err)
	}
	applied, err := applyClickhouse(ctx, conn, all)
	if err != nil {
		conn.Close()
		return nil, 0, err
	}
	return conn, applied, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// applyClickhouse runs pending migrations one statement at a time. ClickHouse
// DDL is not transactional, so a version is recorded only after all of its
// statements succeed.
func applyClickhouse(ctx context.Context, conn *chstore.Conn, all []Migration) (int, error) {
	if err := conn.Exec(ctx, clickhouseVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := ClickhouseVersions(ctx, conn)
	if err != nil {
		return 0, err
	}
	seen := make(map[int]bool, len(done))
	for _, v := range done {
		seen[v] = true
	}

	applied := 0
	for _, m := range pending(all, seen) {
		for _, stmt := range m.Statements {
			if err := conn.Exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %03d_%s: %w", m.Version, m.Name, err)
			}
		}
		if err := conn.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, uint32(m.Version), m.Name); err != nil {
			return applied, fmt.Errorf("record migration %03d_%s: %w", m.Version, m.Name, err)
		}
		applied++
	}
	return applied, nil
}

// ClickhouseVersions returns the recorded migration versions.
func ClickhouseVersions(ctx context.Context, conn *chstore.Conn) ([]int, error) {
	rows, err := conn.Query(ctx, `SELECT DISTINCT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, int(v))
	}
	return out, rows.Err()
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
