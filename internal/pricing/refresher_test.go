package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
	"launchpad-index/internal/storage/memory"
)

// fakeQuotes answers from a fixed pair list and fails selected calls.
type fakeQuotes struct {
	mu      sync.Mutex
	pairs   []Pair
	failOn  map[int]bool
	calls   int
	batches [][]string
}

func (f *fakeQuotes) Quote(_ context.Context, addresses []string) ([]Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), addresses...))
	if f.failOn[f.calls] {
		return nil, errors.New("upstream 503")
	}
	return f.pairs, nil
}

func seedAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func seedStore(t *testing.T, n int) *memory.RecordStore {
	t.Helper()
	store := memory.NewRecordStore()
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("Token %d", i)
		_, err := store.UpsertMerge(context.Background(), &domain.RecordPatch{
			Address: seedAddr(i),
			Source:  domain.SourceClanker,
			Name:    &name,
		}, storage.MergeListing)
		require.NoError(t, err)
	}
	return store
}

func newTestRefresher(store storage.RecordStore, quotes QuoteSource, snaps storage.PriceSnapshotStore) *Refresher {
	return NewRefresher(Options{
		Store:      store,
		Quotes:     quotes,
		Snapshots:  snaps,
		BatchPause: -1,
		Clock:      func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func TestRefreshPrices_BatchesOfFive(t *testing.T) {
	store := seedStore(t, 12)
	quotes := &fakeQuotes{}

	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(context.Background())
	require.NoError(t, err)

	require.Len(t, quotes.batches, 3)
	assert.Len(t, quotes.batches[0], 5)
	assert.Len(t, quotes.batches[1], 5)
	assert.Len(t, quotes.batches[2], 2)
	assert.Equal(t, 12, summary.Total)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 12, summary.Unresolved)
}

func TestRefreshPrices_PicksBestLiquidity(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 1)
	snaps := memory.NewPriceSnapshotStore()
	quotes := &fakeQuotes{pairs: []Pair{
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "1.00", Liquidity: liq(500)},
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "2.00", Liquidity: liq(1200), FDV: 2e6},
	}}

	summary, err := newTestRefresher(store, quotes, snaps).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	r, err := store.Get(ctx, seedAddr(1))
	require.NoError(t, err)
	require.NotNil(t, r.Market.Price)
	assert.Equal(t, 2.0, *r.Market.Price)
	assert.Equal(t, 1200.0, *r.Market.Liquidity)
	assert.Equal(t, 2e6, *r.Market.MarketCap)
	assert.Equal(t, "Token 1", r.Name, "market-only merge must not touch identity")

	history, err := snaps.GetByAddress(ctx, seedAddr(1), time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2.0, history[0].PriceUSD)
}

func TestRefreshPrices_FailedBatchContinues(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 7)
	quotes := &fakeQuotes{
		failOn: map[int]bool{1: true},
		pairs: []Pair{
			{ChainID: "base", BaseToken: Token{Address: seedAddr(2)}, PriceUSD: "9", Liquidity: liq(1)},
			{ChainID: "base", BaseToken: Token{Address: seedAddr(6)}, PriceUSD: "3", Liquidity: liq(1)},
		},
	}

	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Errors)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unresolved)

	failed, err := store.Get(ctx, seedAddr(2))
	require.NoError(t, err)
	assert.Nil(t, failed.Market.Price, "address in a failed batch must stay untouched")

	ok, err := store.Get(ctx, seedAddr(6))
	require.NoError(t, err)
	assert.Equal(t, 3.0, *ok.Market.Price)
}

func TestRefreshPrices_UnresolvedKeepsValues(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 1)
	price := 1.23
	_, err := store.UpsertMerge(ctx, &domain.RecordPatch{Address: seedAddr(1), Market: domain.MarketData{Price: &price}}, storage.MergeMarketOnly)
	require.NoError(t, err)

	quotes := &fakeQuotes{pairs: []Pair{
		{ChainID: "solana", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "99", Liquidity: liq(1e9)},
	}}
	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)

	r, err := store.Get(ctx, seedAddr(1))
	require.NoError(t, err)
	assert.Equal(t, 1.23, *r.Market.Price)
}

func TestRefreshPrices_TieLeavesAddressUnchanged(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 1)
	quotes := &fakeQuotes{pairs: []Pair{
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "1", Liquidity: liq(700)},
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "2", Liquidity: liq(700)},
	}}

	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Unresolved)

	r, err := store.Get(ctx, seedAddr(1))
	require.NoError(t, err)
	assert.Nil(t, r.Market.Price)
}

func TestRefreshPrices_TieWithEqualPricesLeavesAddressUnchanged(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 1)
	quotes := &fakeQuotes{pairs: []Pair{
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "1", Liquidity: liq(500), Volume: h24(10)},
		{ChainID: "base", BaseToken: Token{Address: seedAddr(1)}, PriceUSD: "1", Liquidity: liq(500), Volume: h24(99999)},
	}}

	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Unresolved)

	r, err := store.Get(ctx, seedAddr(1))
	require.NoError(t, err)
	assert.Nil(t, r.Market.Price)
	assert.Nil(t, r.Market.Volume24h)
}

func TestRefreshPrices_MissingFieldsKeepSeededValues(t *testing.T) {
	ctx := context.Background()
	addr := seedAddr(1)
	store := memory.NewRecordStore()
	liquidity, volume, change := 5000.0, 777.0, 12.5
	_, err := store.UpsertMerge(ctx, &domain.RecordPatch{
		Address: addr,
		Source:  domain.SourceMoltlaunch,
		Market:  domain.MarketData{Liquidity: &liquidity, Volume24h: &volume, Change24h: &change},
	}, storage.MergeListing)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"pairs":[{"chainId":"base","baseToken":{"address":"%s"},"priceUsd":"0.5","fdv":1000}]}`, addr)
	}))
	defer server.Close()

	quotes := NewDexScreenerClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop())
	summary, err := newTestRefresher(store, quotes, nil).RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	r, err := store.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0.5, *r.Market.Price)
	assert.Equal(t, 1000.0, *r.Market.MarketCap)
	assert.Equal(t, 5000.0, *r.Market.Liquidity)
	assert.Equal(t, 777.0, *r.Market.Volume24h)
	assert.Equal(t, 12.5, *r.Market.Change24h)
}

// brokenAddresses fails to list addresses.
type brokenAddresses struct {
	storage.RecordStore
}

func (brokenAddresses) Addresses(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestRefreshPrices_AddressListFailureReturnsSummary(t *testing.T) {
	quotes := &fakeQuotes{}
	summary, err := newTestRefresher(brokenAddresses{memory.NewRecordStore()}, quotes, nil).
		RefreshPrices(context.Background())

	assert.ErrorContains(t, err, "connection refused")
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.FinishedAt.IsZero())
	assert.Equal(t, 0, quotes.calls)
}

func TestRefreshPrices_RecordsRun(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewSyncRunStore()
	r := NewRefresher(Options{
		Store:      seedStore(t, 2),
		Quotes:     &fakeQuotes{},
		Runs:       runs,
		BatchPause: -1,
	})

	_, err := r.RefreshPrices(ctx)
	require.NoError(t, err)

	run, err := runs.Latest(ctx, domain.RunKindRefresh, "")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Fetched)
}

func TestRefreshPrices_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	quotes := &fakeQuotes{}
	summary, err := newTestRefresher(seedStore(t, 3), quotes, nil).RefreshPrices(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, quotes.calls)
}

func TestNewRefresher_Defaults(t *testing.T) {
	r := NewRefresher(Options{BatchSize: 100})
	assert.Equal(t, DefaultChainID, r.chainID)
	assert.Equal(t, MaxAddressesPerRequest, r.batchSize)
	assert.Equal(t, DefaultBatchPause, r.pause)
}
