package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/observability"
	"launchpad-index/internal/storage"
)

// Default refresh settings.
const (
	DefaultChainID    = "base"
	DefaultBatchSize  = 5
	DefaultBatchPause = 300 * time.Millisecond
)

// Options for creating Refresher.
type Options struct {
	// Required
	Store  storage.RecordStore
	Quotes QuoteSource

	// Optional
	Snapshots storage.PriceSnapshotStore
	Runs      storage.SyncRunStore

	ChainID    string        // default "base"
	BatchSize  int           // default 5, capped at MaxAddressesPerRequest
	BatchPause time.Duration // default 300ms, negative disables
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// Refresher updates market fields of existing records in rate-limited batches.
type Refresher struct {
	store     storage.RecordStore
	quotes    QuoteSource
	snapshots storage.PriceSnapshotStore
	runs      storage.SyncRunStore

	chainID   string
	batchSize int
	pause     time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(opts Options) *Refresher {
	r := &Refresher{
		store:     opts.Store,
		quotes:    opts.Quotes,
		snapshots: opts.Snapshots,
		runs:      opts.Runs,
		chainID:   opts.ChainID,
		batchSize: opts.BatchSize,
		pause:     opts.BatchPause,
		logger:    opts.Logger.With().Str("component", "pricing").Logger(),
		now:       opts.Clock,
	}
	if r.chainID == "" {
		r.chainID = DefaultChainID
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultBatchSize
	}
	if r.batchSize > MaxAddressesPerRequest {
		r.batchSize = MaxAddressesPerRequest
	}
	switch {
	case r.pause == 0:
		r.pause = DefaultBatchPause
	case r.pause < 0:
		r.pause = 0
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RefreshPrices quotes every known address and merges resolved market data.
//
// A failed batch is counted and skipped; addresses without a usable quote
// keep their stored values. Errors are returned only when the address list
// cannot be read or ctx is cancelled; both still return a summary.
func (r *Refresher) RefreshPrices(ctx context.Context) (*domain.RefreshSummary, error) {
	start := time.Now()
	summary := &domain.RefreshSummary{StartedAt: r.now().UTC()}

	addresses, err := r.store.Addresses(ctx)
	if err != nil {
		observability.RecordRefreshFailure()
		summary.FinishedAt = r.now().UTC()
		summary.Errors = 1
		r.logger.Error().Err(err).Msg("failed to list addresses")
		return summary, err
	}
	summary.Total = len(addresses)
	r.logger.Debug().Int("addresses", summary.Total).Int("batch_size", r.batchSize).Msg("starting price refresh")

	failedBatches := 0
	for i := 0; i < len(addresses); i += r.batchSize {
		if i > 0 && !r.sleep(ctx) {
			return r.abort(ctx, summary)
		}
		if ctx.Err() != nil {
			return r.abort(ctx, summary)
		}

		end := min(i+r.batchSize, len(addresses))
		batch := addresses[i:end]
		summary.Batches++

		if err := r.refreshBatch(ctx, batch, summary); err != nil {
			if ctx.Err() != nil {
				return r.abort(ctx, summary)
			}
			failedBatches++
			summary.Errors += len(batch)
			r.logger.Warn().Err(err).Int("batch", summary.Batches).Int("size", len(batch)).Msg("quote batch failed")
		}
	}
	summary.FinishedAt = r.now().UTC()

	r.recordRun(ctx, summary.Run())
	observability.RecordRefreshRun(summary.Updated, summary.Unresolved, failedBatches, time.Since(start))

	event := r.logger.Info()
	if failedBatches > 0 {
		event = r.logger.Warn()
	}
	event.
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("unresolved", summary.Unresolved).
		Int("errors", summary.Errors).
		Int("batches", summary.Batches).
		Dur("duration", time.Since(start)).
		Msg("price refresh completed")

	return summary, nil
}

// refreshBatch quotes one batch. Only the quote request failing is an
// error; per-address write failures are counted in summary.
func (r *Refresher) refreshBatch(ctx context.Context, batch []string, summary *domain.RefreshSummary) error {
	pairs, err := r.quotes.Quote(ctx, batch)
	if err != nil {
		return err
	}

	observedAt := r.now().UTC()
	selected := SelectBest(pairs, r.chainID, batch)
	var snapshots []*domain.PriceSnapshot

	for _, addr := range batch {
		pair, ok := selected[addr]
		if !ok {
			summary.Unresolved++
			continue
		}

		snap := pair.Snapshot(addr, observedAt)
		patch := &domain.RecordPatch{Address: addr, Market: pair.Market()}
		if _, err := r.store.UpsertMerge(ctx, patch, storage.MergeMarketOnly); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				summary.Unresolved++
				continue
			}
			summary.Errors++
			r.logger.Warn().Err(err).Str("address", addr).Msg("market update failed")
			continue
		}
		summary.Updated++
		snapshots = append(snapshots, snap)
	}

	if r.snapshots != nil && len(snapshots) > 0 {
		if err := r.snapshots.InsertBulk(ctx, snapshots); err != nil {
			r.logger.Warn().Err(err).Int("snapshots", len(snapshots)).Msg("failed to store price snapshots")
		}
	}
	return nil
}

func (r *Refresher) abort(ctx context.Context, summary *domain.RefreshSummary) (*domain.RefreshSummary, error) {
	summary.FinishedAt = r.now().UTC()
	observability.RecordRefreshFailure()
	r.logger.Warn().Err(ctx.Err()).Int("updated", summary.Updated).Msg("price refresh cancelled")
	return summary, ctx.Err()
}

func (r *Refresher) sleep(ctx context.Context) bool {
	if r.pause <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.pause):
		return true
	}
}

func (r *Refresher) recordRun(ctx context.Context, run *domain.SyncRun) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Insert(ctx, run); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(run.Kind)).Msg("failed to record run")
	}
}
