package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

func TestCounterStore_IncrementAndSet(t *testing.T) {
	store := NewCounterStore()
	ctx := context.Background()

	v, err := store.Increment(ctx, "sync.clanker.runs", 2)
	if err != nil || v != 2 {
		t.Fatalf("Increment: v=%d err=%v", v, err)
	}
	v, _ = store.Increment(ctx, "sync.clanker.runs", 3)
	if v != 5 {
		t.Errorf("expected 5, got %d", v)
	}

	if err := store.SetCounter(ctx, "sync.clanker.runs", 10); err != nil {
		t.Fatalf("SetCounter failed: %v", err)
	}
	v, _ = store.GetCounter(ctx, "sync.clanker.runs")
	if v != 10 {
		t.Errorf("expected 10, got %d", v)
	}

	if _, err := store.Increment(ctx, "", 1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceSnapshotStore_RangeQuery(t *testing.T) {
	store := NewPriceSnapshotStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	snaps := []*domain.PriceSnapshot{
		{Address: testAddr, ObservedAt: base.Add(2 * time.Minute), PriceUSD: 1.2},
		{Address: testAddr, ObservedAt: base, PriceUSD: 1.0},
		{Address: testAddr, ObservedAt: base.Add(10 * time.Minute), PriceUSD: 1.5},
		{Address: "0x0000000000000000000000000000000000000001", ObservedAt: base, PriceUSD: 9},
	}
	if err := store.InsertBulk(ctx, snaps); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByAddress(ctx, testAddr, base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(result))
	}
	if result[0].PriceUSD != 1.0 || result[1].PriceUSD != 1.2 {
		t.Errorf("snapshots not ordered by time: %v, %v", result[0].PriceUSD, result[1].PriceUSD)
	}

	if err := store.InsertBulk(ctx, []*domain.PriceSnapshot{nil}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSyncRunStore_LatestAndRecent(t *testing.T) {
	store := NewSyncRunStore()
	ctx := context.Background()

	runs := []*domain.SyncRun{
		{Kind: domain.RunKindSync, Source: domain.SourceClanker, Fetched: 1},
		{Kind: domain.RunKindRefresh, Fetched: 10},
		{Kind: domain.RunKindSync, Source: domain.SourceClanker, Fetched: 2},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if runs[2].ID != 3 {
		t.Errorf("expected ID 3, got %d", runs[2].ID)
	}

	latest, err := store.Latest(ctx, domain.RunKindSync, domain.SourceClanker)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Fetched != 2 {
		t.Errorf("expected newest run, got %+v", latest)
	}

	if _, err := store.Latest(ctx, domain.RunKindSync, domain.SourceDoppler); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	recent, _ := store.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].ID != 3 || recent[1].ID != 2 {
		t.Errorf("unexpected recent runs: %+v", recent)
	}
}
