package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
)

// PageFunc fetches the page at zero-based index and reports whether the
// upstream says more pages follow. Cursor-based adapters keep the cursor in
// the closure.
type PageFunc func(ctx context.Context, index int) (items []map[string]any, more bool, err error)

// Pager drives a PageFunc until the upstream is exhausted.
//
// It stops when the upstream reports no more pages, a page is empty, the
// page cap is reached, a page fails or ctx is done. Delay is slept between
// pages, never after the last one.
type Pager struct {
	MaxPages int
	Delay    time.Duration
	Logger   zerolog.Logger
}

// Run collects listings for source.
func (p Pager) Run(ctx context.Context, source domain.Source, fetch PageFunc) *FetchResult {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	result := &FetchResult{Source: source}
	for index := 0; index < maxPages; index++ {
		if index > 0 && p.Delay > 0 {
			select {
			case <-ctx.Done():
				p.Logger.Warn().Int("page", index).Msg("paging cancelled")
				return result
			case <-time.After(p.Delay):
			}
		}
		if ctx.Err() != nil {
			return result
		}

		items, more, err := fetch(ctx, index)
		if err != nil {
			result.PageErrors++
			result.LastError = err
			p.Logger.Warn().Err(err).Int("page", index).Int("collected", len(result.Listings)).
				Msg("page fetch failed, keeping partial result")
			return result
		}
		result.Pages++

		for _, item := range items {
			if item == nil {
				continue
			}
			result.Listings = append(result.Listings, domain.NewRawListing(source, item))
		}

		if len(items) == 0 || !more {
			return result
		}
		if index == maxPages-1 {
			p.Logger.Warn().Int("max_pages", maxPages).Msg("page cap reached")
		}
	}
	return result
}
