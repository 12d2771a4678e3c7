// Package reconcile runs source adapters and merges their listings into
// the canonical record store.
// Flow per run: fetch → normalize → merge → summary.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/ingestion"
	"launchpad-index/internal/normalization"
	"launchpad-index/internal/observability"
	"launchpad-index/internal/storage"
)

// ErrUnknownSource is returned by RunSync for a source without a registered adapter.
var ErrUnknownSource = errors.New("no adapter registered for source")

// Counter names kept in the CounterStore.
const (
	CounterSyncRuns         = "sync_runs"
	CounterListingsUpserted = "listings_upserted"
)

// CounterName returns the per-source counter name, e.g. "sync_runs:clanker".
func CounterName(base string, source domain.Source) string {
	return base + ":" + source.String()
}

// Engine coordinates adapters, the normalizer and the record store.
type Engine struct {
	store      storage.RecordStore
	counters   storage.CounterStore
	runs       storage.SyncRunStore
	normalizer *normalization.Normalizer

	adapters map[domain.Source]ingestion.Adapter
	order    []domain.Source

	maxConcurrent int
	logger        zerolog.Logger
	now           func() time.Time
}

// Options for creating Engine.
type Options struct {
	// Required
	Store      storage.RecordStore
	Normalizer *normalization.Normalizer
	Adapters   []ingestion.Adapter

	// Optional run bookkeeping
	Counters storage.CounterStore
	Runs     storage.SyncRunStore

	MaxConcurrent int // RunAll parallelism, 0 = one goroutine per adapter
	Logger        zerolog.Logger
	Clock         func() time.Time
}

// New creates a new Engine. A later adapter for the same source replaces
// an earlier one.
func New(opts Options) *Engine {
	e := &Engine{
		store:         opts.Store,
		counters:      opts.Counters,
		runs:          opts.Runs,
		normalizer:    opts.Normalizer,
		adapters:      make(map[domain.Source]ingestion.Adapter, len(opts.Adapters)),
		maxConcurrent: opts.MaxConcurrent,
		logger:        opts.Logger.With().Str("component", "reconcile").Logger(),
		now:           opts.Clock,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.normalizer == nil {
		e.normalizer = normalization.NewNormalizer(normalization.Options{Logger: opts.Logger})
	}
	for _, a := range opts.Adapters {
		if _, dup := e.adapters[a.Source()]; !dup {
			e.order = append(e.order, a.Source())
		}
		e.adapters[a.Source()] = a
	}
	return e
}

// Sources returns the registered sources in registration order.
func (e *Engine) Sources() []domain.Source {
	out := make([]domain.Source, len(e.order))
	copy(out, e.order)
	return out
}

// RunSync pulls one source to exhaustion and merges every usable listing.
//
// Rejected listings and failed writes are counted as skipped and never
// abort the run. The only errors are ErrUnknownSource and cancellation of
// ctx; a cancelled run still returns its partial summary.
func (e *Engine) RunSync(ctx context.Context, source domain.Source) (*domain.SyncSummary, error) {
	adapter, ok := e.adapters[source]
	if !ok {
		observability.RecordSyncFailure(source.String())
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	logger := e.logger.With().Str("source", source.String()).Logger()
	summary := &domain.SyncSummary{Source: source, StartedAt: e.now().UTC()}
	start := time.Now()

	// Phase 1: Fetch
	fetched := adapter.FetchListings(ctx)
	summary.Fetched = len(fetched.Listings)
	summary.Pages = fetched.Pages
	summary.PageErrors = fetched.PageErrors
	logger.Debug().Int("listings", summary.Fetched).Int("pages", summary.Pages).Msg("fetched listings")

	// Phase 2+3: Normalize and merge, one listing at a time
	storeFailures := 0
	for i, listing := range fetched.Listings {
		if err := ctx.Err(); err != nil {
			remaining := len(fetched.Listings) - i
			summary.Skipped += remaining
			storeFailures += remaining
			summary.FinishedAt = e.now().UTC()
			observability.RecordSyncFailure(source.String())
			logger.Warn().Err(err).Int("remaining", remaining).Msg("sync cancelled")
			return summary, err
		}

		patch, err := e.normalizer.Normalize(listing)
		if err != nil {
			summary.Rejected++
			summary.Skipped++
			logger.Debug().Err(err).Str("reason", normalization.RejectReason(err)).Msg("listing rejected")
			continue
		}

		if _, err := e.store.UpsertMerge(ctx, patch, storage.MergeListing); err != nil {
			storeFailures++
			summary.Skipped++
			logger.Warn().Err(err).Str("address", patch.Address).Msg("upsert failed, skipping record")
			continue
		}
		summary.Upserted++
	}
	summary.FinishedAt = e.now().UTC()

	// Phase 4: Bookkeeping
	e.bump(ctx, CounterName(CounterSyncRuns, source), 1)
	if summary.Upserted > 0 {
		e.bump(ctx, CounterName(CounterListingsUpserted, source), int64(summary.Upserted))
	}
	e.recordRun(ctx, summary.Run())

	observability.RecordSyncRun(source.String(), summary.Fetched, summary.Upserted,
		summary.Rejected, storeFailures, summary.PageErrors, time.Since(start))

	event := logger.Info()
	if summary.PageErrors > 0 || storeFailures > 0 {
		event = logger.Warn()
	}
	event.
		Int("fetched", summary.Fetched).
		Int("upserted", summary.Upserted).
		Int("skipped", summary.Skipped).
		Int("rejected", summary.Rejected).
		Int("page_errors", summary.PageErrors).
		Dur("duration", time.Since(start)).
		Msg("sync completed")

	return summary, nil
}

// RunAll syncs every registered source concurrently. Per-record atomicity
// of the store makes overlapping sources safe. Summaries are returned in
// registration order; a nil entry means that source was cancelled before it
// produced one.
func (e *Engine) RunAll(ctx context.Context) ([]*domain.SyncSummary, error) {
	summaries := make([]*domain.SyncSummary, len(e.order))

	var g errgroup.Group
	if e.maxConcurrent > 0 {
		g.SetLimit(e.maxConcurrent)
	}
	for i, source := range e.order {
		g.Go(func() error {
			summary, err := e.RunSync(ctx, source)
			summaries[i] = summary
			return err
		})
	}
	err := g.Wait()
	return summaries, err
}

// bump increments a counter, falling back to read-modify-write when the
// store has no atomic increment. Counter failures never fail a run.
func (e *Engine) bump(ctx context.Context, name string, delta int64) {
	if e.counters == nil {
		return
	}

	_, err := e.counters.Increment(ctx, name, delta)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrUnsupported) {
		e.logger.Warn().Err(err).Str("counter", name).Msg("counter increment failed")
		return
	}

	// Degraded path: not atomic across concurrent writers.
	observability.RecordStoreDegraded("counter_increment")
	e.logger.Warn().Str("counter", name).Msg("atomic increment unsupported, using read-modify-write")

	current, err := e.counters.GetCounter(ctx, name)
	if err != nil {
		e.logger.Warn().Err(err).Str("counter", name).Msg("counter read failed")
		return
	}
	if err := e.counters.SetCounter(ctx, name, current+delta); err != nil {
		e.logger.Warn().Err(err).Str("counter", name).Msg("counter write failed")
	}
}

func (e *Engine) recordRun(ctx context.Context, run *domain.SyncRun) {
	if e.runs == nil {
		return
	}
	if err := e.runs.Insert(ctx, run); err != nil {
		e.logger.Warn().Err(err).Str("kind", string(run.Kind)).Msg("failed to record run")
	}
}
