// Package query serves filtered and sorted read views of the record store.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/observability"
	"launchpad-index/internal/storage"
)

// ErrInvalidQuery is returned for malformed query arguments.
var ErrInvalidQuery = errors.New("invalid query")

// Direction selects gainers or losers for TopMovers.
type Direction string

const (
	Gainers Direction = "gainers"
	Losers  Direction = "losers"
)

// Limits and cache defaults.
const (
	DefaultLimit     = 50
	MaxLimit         = 500
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Second
)

// Options for creating Service.
type Options struct {
	Store     storage.RecordStore
	Snapshots storage.PriceSnapshotStore // optional, History returns nothing without it
	CacheSize int
	CacheTTL  time.Duration // negative disables caching
	Logger    zerolog.Logger
	Clock     func() time.Time
}

// Service answers read queries. Results are cached for a short TTL and
// shared between callers, so they must be treated as read-only.
type Service struct {
	store     storage.RecordStore
	snapshots storage.PriceSnapshotStore
	cache     *lru.Cache
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// NewService creates a query service.
func NewService(opts Options) *Service {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New(size)

	s := &Service{
		store:     opts.Store,
		snapshots: opts.Snapshots,
		cache:     cache,
		ttl:       opts.CacheTTL,
		logger:    opts.Logger.With().Str("component", "query").Logger(),
		now:       opts.Clock,
	}
	if s.ttl == 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Invalidate drops every cached result. Called after writes.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

// ListByVolume returns records with the highest 24h volume first.
func (s *Service) ListByVolume(ctx context.Context, limit int) ([]*domain.TokenRecord, error) {
	limit = clampLimit(limit)
	return s.list(ctx, fmt.Sprintf("volume:%d", limit), storage.RecordFilter{
		SortBy: storage.SortByVolume,
		Limit:  limit,
	})
}

// BySource returns the newest records last touched by source.
func (s *Service) BySource(ctx context.Context, source domain.Source, limit int) ([]*domain.TokenRecord, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidQuery, source)
	}
	limit = clampLimit(limit)
	return s.list(ctx, fmt.Sprintf("source:%s:%d", source, limit), storage.RecordFilter{
		Sources: []domain.Source{source},
		SortBy:  storage.SortByCreated,
		Limit:   limit,
	})
}

// Verified returns records from verified launch platforms, largest market cap first.
func (s *Service) Verified(ctx context.Context, limit int) ([]*domain.TokenRecord, error) {
	limit = clampLimit(limit)
	return s.list(ctx, fmt.Sprintf("verified:%d", limit), storage.RecordFilter{
		VerifiedOnly: true,
		SortBy:       storage.SortByMarketCap,
		Limit:        limit,
	})
}

// TopMovers returns the n records with the largest positive (gainers) or
// negative (losers) 24h change among priced records.
func (s *Service) TopMovers(ctx context.Context, n int, direction Direction) ([]*domain.TokenRecord, error) {
	if direction != Gainers && direction != Losers {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidQuery, direction)
	}
	n = clampLimit(n)
	key := fmt.Sprintf("movers:%s:%d", direction, n)
	if v, ok := s.cached(key); ok {
		return v.([]*domain.TokenRecord), nil
	}

	records, err := s.store.List(ctx, storage.RecordFilter{
		HasPrice:  true,
		SortBy:    storage.SortByChange,
		Ascending: direction == Losers,
		Limit:     n,
	})
	if err != nil {
		return nil, err
	}

	movers := make([]*domain.TokenRecord, 0, len(records))
	for _, r := range records {
		c := r.Market.Change24h
		if c == nil || (direction == Gainers && *c <= 0) || (direction == Losers && *c >= 0) {
			continue
		}
		movers = append(movers, r)
	}
	s.remember(key, movers)
	return movers, nil
}

// Get returns one record by address in any casing.
func (s *Service) Get(ctx context.Context, address string) (*domain.TokenRecord, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	key := "record:" + addr
	if v, ok := s.cached(key); ok {
		return v.(*domain.TokenRecord), nil
	}

	r, err := s.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.remember(key, r)
	return r, nil
}

// searchItems adapts records to fuzzy.Source.
type searchItems []*domain.TokenRecord

func (items searchItems) String(i int) string {
	r := items[i]
	return strings.ToLower(r.Name + " " + r.Symbol + " " + r.Handle)
}

func (items searchItems) Len() int {
	return len(items)
}

// Search fuzzy-matches q against name, symbol and handle, best match first.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]*domain.TokenRecord, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, fmt.Errorf("%w: empty search", ErrInvalidQuery)
	}
	limit = clampLimit(limit)

	all, err := s.list(ctx, "all", storage.RecordFilter{})
	if err != nil {
		return nil, err
	}

	matches := fuzzy.FindFrom(q, searchItems(all))
	out := make([]*domain.TokenRecord, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		out = append(out, all[m.Index])
	}
	return out, nil
}

// History returns stored price snapshots for address within [from, to].
func (s *Service) History(ctx context.Context, address string, from, to time.Time) ([]*domain.PriceSnapshot, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from after to", ErrInvalidQuery)
	}
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.GetByAddress(ctx, addr, from.UTC(), to.UTC())
}

func (s *Service) list(ctx context.Context, key string, filter storage.RecordFilter) ([]*domain.TokenRecord, error) {
	if v, ok := s.cached(key); ok {
		return v.([]*domain.TokenRecord), nil
	}
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.remember(key, records)
	return records, nil
}

func (s *Service) cached(key string) (any, bool) {
	if s.ttl < 0 {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if ok {
		if e, valid := v.(cacheEntry); valid && s.now().Before(e.expires) {
			observability.RecordCacheLookup(true)
			return e.value, true
		}
		s.cache.Remove(key)
	}
	observability.RecordCacheLookup(false)
	return nil, false
}

func (s *Service) remember(key string, value any) {
	if s.ttl < 0 {
		return
	}
	s.cache.Add(key, cacheEntry{value: value, expires: s.now().Add(s.ttl)})
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}
