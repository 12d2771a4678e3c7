package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

const testAddr = "0xabcdef0123456789abcdef0123456789abcdef01"

func ptr[T any](v T) *T {
	return &v
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestRecordStore_InsertAndGet(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	patch := &domain.RecordPatch{
		Address:  testAddr,
		Source:   domain.SourceClanker,
		Name:     ptr("Test Token"),
		Symbol:   ptr("TST"),
		Defaults: domain.RecordDefaults{Handle: "@tst"},
	}

	if _, err := store.UpsertMerge(ctx, patch, storage.MergeListing); err != nil {
		t.Fatalf("UpsertMerge failed: %v", err)
	}

	r, err := store.Get(ctx, testAddr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Name != "Test Token" || r.Symbol != "TST" || r.Handle != "@tst" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on insert")
	}
}

func TestRecordStore_AddressCasingCollapses(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	upper := "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"
	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: upper, Source: domain.SourceClanker, Name: ptr("A")}, storage.MergeListing); err != nil {
		t.Fatalf("UpsertMerge upper failed: %v", err)
	}
	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: testAddr, Source: domain.SourceDoppler, Name: ptr("B")}, storage.MergeListing); err != nil {
		t.Fatalf("UpsertMerge lower failed: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
	r, err := store.Get(ctx, upper)
	if err != nil {
		t.Fatalf("Get by upper-case address failed: %v", err)
	}
	if r.Address != testAddr || r.Name != "B" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestRecordStore_Idempotent(t *testing.T) {
	store := NewRecordStore().WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	patch := &domain.RecordPatch{
		Address: testAddr,
		Source:  domain.SourceClawnch,
		Name:    ptr("Agent"),
		Symbol:  ptr("AGT"),
		Market:  domain.MarketData{MarketCap: ptr(1500.0)},
	}

	first, err := store.UpsertMerge(ctx, patch, storage.MergeListing)
	if err != nil {
		t.Fatalf("first UpsertMerge failed: %v", err)
	}
	second, err := store.UpsertMerge(ctx, patch, storage.MergeListing)
	if err != nil {
		t.Fatalf("second UpsertMerge failed: %v", err)
	}

	if !first.ContentEqual(second) {
		t.Errorf("records differ after re-apply: %+v vs %+v", first, second)
	}
	if !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("UpdatedAt moved on no-op apply: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 record, got %d", store.Len())
	}
}

func TestRecordStore_ListingDoesNotBlankPrice(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: testAddr,
		Source:  domain.SourceClanker,
		Name:    ptr("Old"),
		Market:  domain.MarketData{Price: ptr(1.23), Volume24h: ptr(500.0)},
	}, storage.MergeListing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	r, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: testAddr,
		Source:  domain.SourceCreatorBid,
		Name:    ptr("New"),
	}, storage.MergeListing)
	if err != nil {
		t.Fatalf("UpsertMerge failed: %v", err)
	}

	if r.Market.Price == nil || *r.Market.Price != 1.23 {
		t.Errorf("price should stay 1.23, got %v", r.Market.Price)
	}
	if r.Market.Volume24h == nil || *r.Market.Volume24h != 500.0 {
		t.Errorf("volume should stay 500, got %v", r.Market.Volume24h)
	}
	if r.Name != "New" || r.Source != domain.SourceCreatorBid {
		t.Errorf("non-price fields should be last-write-wins: %+v", r)
	}
}

func TestRecordStore_WriteOnceFields(t *testing.T) {
	store := NewRecordStore().WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address:  testAddr,
		Source:   domain.SourceDoppler,
		Defaults: domain.RecordDefaults{CreatedAt: &created, Karma: 0, Handle: "@a"},
	}, storage.MergeListing)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !first.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt should come from defaults: %v", first.CreatedAt)
	}

	later := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	second, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address:  testAddr,
		Source:   domain.SourceClawnch,
		Defaults: domain.RecordDefaults{CreatedAt: &later, Karma: 100, Handle: "@b"},
	}, storage.MergeListing)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !second.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt is write-once, got %v", second.CreatedAt)
	}
	if second.Karma != 0 || second.Handle != "@a" {
		t.Errorf("defaults must not overwrite stored values: %+v", second)
	}
}

func TestRecordStore_MarketOnlyRequiresRecord(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	_, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: testAddr,
		Market:  domain.MarketData{Price: ptr(2.0)},
	}, storage.MergeMarketOnly)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("market-only merge must not create records")
	}
}

func TestRecordStore_MarketOnlyKeepsIdentity(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: testAddr,
		Source:  domain.SourceTrenches,
		Name:    ptr("Keep"),
	}, storage.MergeListing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	r, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: testAddr,
		Source:  domain.SourceClanker,
		Name:    ptr("Ignored"),
		Market:  domain.MarketData{Price: ptr(3.0)},
	}, storage.MergeMarketOnly)
	if err != nil {
		t.Fatalf("UpsertMerge failed: %v", err)
	}
	if r.Name != "Keep" || r.Source != domain.SourceTrenches {
		t.Errorf("market-only merge touched non-price fields: %+v", r)
	}
	if r.Market.Price == nil || *r.Market.Price != 3.0 {
		t.Errorf("price should be 3.0, got %v", r.Market.Price)
	}
}

func TestRecordStore_ConcurrentMergeKeepsBothFields(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: testAddr, Source: domain.SourceClanker}, storage.MergeListing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.UpsertMerge(ctx, &domain.RecordPatch{Address: testAddr, Name: ptr("Named")}, storage.MergeListing)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.UpsertMerge(ctx, &domain.RecordPatch{Address: testAddr, Karma: ptr(42)}, storage.MergeListing)
		}()
	}
	wg.Wait()

	r, err := store.Get(ctx, testAddr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Name != "Named" || r.Karma != 42 {
		t.Errorf("lost update: name=%q karma=%d", r.Name, r.Karma)
	}
}

func TestRecordStore_InvalidInput(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if _, err := store.UpsertMerge(ctx, nil, storage.MergeListing); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: "0x1234"}, storage.MergeListing); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for short address, got %v", err)
	}
	if _, err := store.Get(ctx, "not-an-address"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_ListFilterAndSort(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	seed := []struct {
		source domain.Source
		volume *float64
	}{
		{domain.SourceClanker, ptr(100.0)},
		{domain.SourceClawnch, ptr(300.0)},
		{domain.SourceClanker, ptr(200.0)},
		{domain.SourceDoppler, nil},
	}
	for i, s := range seed {
		addr := fmt.Sprintf("0x%040x", i+1)
		if _, err := store.UpsertMerge(ctx, &domain.RecordPatch{
			Address: addr,
			Source:  s.source,
			Market:  domain.MarketData{Volume24h: s.volume},
		}, storage.MergeListing); err != nil {
			t.Fatalf("seed %d failed: %v", i, err)
		}
	}

	all, err := store.List(ctx, storage.RecordFilter{SortBy: storage.SortByVolume})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	if *all[0].Market.Volume24h != 300.0 || all[3].Market.Volume24h != nil {
		t.Errorf("unexpected volume order: first=%v last=%v", all[0].Market.Volume24h, all[3].Market.Volume24h)
	}

	clanker, err := store.List(ctx, storage.RecordFilter{Sources: []domain.Source{domain.SourceClanker}, SortBy: storage.SortByVolume, Limit: 1})
	if err != nil {
		t.Fatalf("List by source failed: %v", err)
	}
	if len(clanker) != 1 || *clanker[0].Market.Volume24h != 200.0 {
		t.Errorf("unexpected source filter result: %+v", clanker)
	}

	verified, err := store.List(ctx, storage.RecordFilter{VerifiedOnly: true})
	if err != nil {
		t.Fatalf("List verified failed: %v", err)
	}
	if len(verified) != 1 || verified[0].Source != domain.SourceClawnch {
		t.Errorf("unexpected verified result: %+v", verified)
	}

	addrs, err := store.Addresses(ctx)
	if err != nil {
		t.Fatalf("Addresses failed: %v", err)
	}
	if len(addrs) != 4 || addrs[0] > addrs[1] {
		t.Errorf("addresses should be sorted: %v", addrs)
	}
}

func TestRecordStore_ReturnsCopy(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	r, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: testAddr, Source: domain.SourceClanker, Market: domain.MarketData{Price: ptr(1.0)}}, storage.MergeListing)
	if err != nil {
		t.Fatalf("UpsertMerge failed: %v", err)
	}

	*r.Market.Price = 99
	r.Name = "mutated"

	stored, _ := store.Get(ctx, testAddr)
	if *stored.Market.Price != 1.0 || stored.Name != "" {
		t.Error("store should return copy, not reference")
	}
}
