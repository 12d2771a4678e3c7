package clickhouse

import (
	"context"
	"fmt"
	"time"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// PriceSnapshotStore implements storage.PriceSnapshotStore using ClickHouse.
// The table is a ReplacingMergeTree on (address, observed_at), so a retried
// batch collapses on merge instead of duplicating history.
type PriceSnapshotStore struct {
	conn *Conn
}

// NewPriceSnapshotStore creates a new PriceSnapshotStore.
func NewPriceSnapshotStore(conn *Conn) *PriceSnapshotStore {
	return &PriceSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSnapshotStore = (*PriceSnapshotStore)(nil)

// InsertBulk appends snapshots in one batch.
func (s *PriceSnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.Address == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_snapshots (
			address, observed_at, chain_id, pair_address, dex_id,
			price_usd, market_cap, volume_24h, liquidity, change_24h
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Address, snap.ObservedAt.UTC(), snap.ChainID, snap.PairAddress, snap.DexID,
			snap.PriceUSD, snap.MarketCap, snap.Volume24h, snap.Liquidity, snap.Change24h,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves snapshots within [from, to] (inclusive), ordered by time ASC.
func (s *PriceSnapshotStore) GetByAddress(ctx context.Context, address string, from, to time.Time) ([]*domain.PriceSnapshot, error) {
	query := `
		SELECT address, observed_at, chain_id, pair_address, dex_id,
			price_usd, market_cap, volume_24h, liquidity, change_24h
		FROM price_snapshots FINAL
		WHERE address = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, address, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots by address: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows chRows) ([]*domain.PriceSnapshot, error) {
	var result []*domain.PriceSnapshot

	for rows.Next() {
		var snap domain.PriceSnapshot
		err := rows.Scan(
			&snap.Address, &snap.ObservedAt, &snap.ChainID, &snap.PairAddress, &snap.DexID,
			&snap.PriceUSD, &snap.MarketCap, &snap.Volume24h, &snap.Liquidity, &snap.Change24h,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price snapshot row: %w", err)
		}
		snap.ObservedAt = snap.ObservedAt.UTC()
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price snapshot rows: %w", err)
	}
	return result, nil
}
