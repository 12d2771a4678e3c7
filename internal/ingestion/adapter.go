// Package ingestion pages through upstream launch platforms and emits raw
// listings in each platform's native shape.
package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// Adapter fetches every listing one upstream currently exposes.
//
// FetchListings never fails the run: a page failure stops paging and is
// reported in FetchResult.PageErrors alongside the listings already collected.
type Adapter interface {
	Source() domain.Source
	FetchListings(ctx context.Context) *FetchResult
}

// FetchResult is the bounded output of one adapter run.
type FetchResult struct {
	Source     domain.Source
	Listings   []domain.RawListing
	Pages      int   // pages fetched successfully
	PageErrors int   // failed page fetches (at most one per run)
	LastError  error // cause of the last page failure, for logging
}

// Default adapter settings.
const (
	DefaultMaxPages  = 20
	DefaultPageSize  = 50
	DefaultPageDelay = 200 * time.Millisecond
)

// Config holds the per-upstream settings shared by every adapter.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxPages   int
	PageSize   int
	PageDelay  time.Duration
	Timeout    time.Duration
	MaxRetries int
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

func (c Config) client(logger zerolog.Logger) *httpclient.Client {
	opts := []httpclient.Option{httpclient.WithLogger(logger)}
	if c.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(c.Timeout))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, httpclient.WithMaxRetries(c.MaxRetries))
	}
	if c.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+c.APIKey))
	}
	return httpclient.New(c.BaseURL, opts...)
}

func (c Config) pager(logger zerolog.Logger) Pager {
	return Pager{MaxPages: c.MaxPages, Delay: c.PageDelay, Logger: logger}
}

func adapterLogger(logger zerolog.Logger, source domain.Source) zerolog.Logger {
	return logger.With().Str("component", "adapter").Str("source", source.String()).Logger()
}
