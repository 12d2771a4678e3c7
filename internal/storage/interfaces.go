package storage

import (
	"context"
	"time"

	"launchpad-index/internal/domain"
)

// MergePolicy decides which fields a writer may overwrite on an existing record.
type MergePolicy int

const (
	// MergeListing inserts the record when absent. On an existing record it
	// overwrites every non-price field the patch carries and only those
	// market fields the patch carries. Patch defaults apply on insert only.
	MergeListing MergePolicy = iota

	// MergeMarketOnly updates market fields of an existing record.
	// Returns ErrNotFound when the record does not exist.
	MergeMarketOnly
)

// String returns the policy name.
func (p MergePolicy) String() string {
	switch p {
	case MergeListing:
		return "listing"
	case MergeMarketOnly:
		return "market_only"
	default:
		return "unknown"
	}
}

// RecordStore provides access to canonical token records.
// Every mutation is a single atomic read-modify-write of one record.
type RecordStore interface {
	// Get retrieves a record by normalized address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.TokenRecord, error)

	// UpsertMerge atomically applies patch under policy and returns the stored record.
	// Returns ErrInvalidInput for a nil patch or malformed address.
	UpsertMerge(ctx context.Context, patch *domain.RecordPatch, policy MergePolicy) (*domain.TokenRecord, error)

	// List returns records matching filter, sorted and limited per filter.
	List(ctx context.Context, filter RecordFilter) ([]*domain.TokenRecord, error)

	// Addresses returns every stored address in ascending order.
	Addresses(ctx context.Context) ([]string, error)
}

// CounterStore keeps named analytics counters.
type CounterStore interface {
	// Increment atomically adds delta and returns the new value.
	// Returns ErrUnsupported when the backend has no atomic increment.
	Increment(ctx context.Context, name string, delta int64) (int64, error)

	// GetCounter returns the counter value, 0 when unset.
	GetCounter(ctx context.Context, name string) (int64, error)

	// SetCounter overwrites the counter value.
	SetCounter(ctx context.Context, name string, value int64) error
}

// PriceSnapshotStore provides access to the append-only quote history.
type PriceSnapshotStore interface {
	// InsertBulk appends snapshots.
	InsertBulk(ctx context.Context, snapshots []*domain.PriceSnapshot) error

	// GetByAddress retrieves snapshots for an address within [from, to], ordered by time ASC.
	GetByAddress(ctx context.Context, address string, from, to time.Time) ([]*domain.PriceSnapshot, error)
}

// SyncRunStore keeps the log of run summaries.
type SyncRunStore interface {
	// Insert appends a run and assigns its ID.
	Insert(ctx context.Context, run *domain.SyncRun) error

	// Latest returns the newest run for kind and source. Returns ErrNotFound if none.
	Latest(ctx context.Context, kind domain.RunKind, source domain.Source) (*domain.SyncRun, error)

	// Recent returns the newest runs, newest first. limit <= 0 returns all.
	Recent(ctx context.Context, limit int) ([]*domain.SyncRun, error)
}
