package ingestion

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// ClawnchAdapter pages GET /api/tokens?limit=L&offset=O.
// Response: {"tokens": [...], "total": N}.
type ClawnchAdapter struct {
	client   *httpclient.Client
	pager    Pager
	pageSize int
}

// NewClawnchAdapter creates a Clawnch adapter.
func NewClawnchAdapter(cfg Config, logger zerolog.Logger) *ClawnchAdapter {
	logger = adapterLogger(logger, domain.SourceClawnch)
	return &ClawnchAdapter{client: cfg.client(logger), pager: cfg.pager(logger), pageSize: cfg.pageSize()}
}

// Source returns domain.SourceClawnch.
func (a *ClawnchAdapter) Source() domain.Source {
	return domain.SourceClawnch
}

type clawnchPage struct {
	Tokens []map[string]any `json:"tokens"`
	Total  int              `json:"total"`
}

// FetchListings pages by offset until total is reached or a short page arrives.
func (a *ClawnchAdapter) FetchListings(ctx context.Context) *FetchResult {
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		offset := index * a.pageSize
		q := url.Values{}
		q.Set("limit", strconv.Itoa(a.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page clawnchPage
		if err := a.client.GetJSON(ctx, "/api/tokens", q, &page); err != nil {
			return nil, false, err
		}

		more := len(page.Tokens) == a.pageSize
		if page.Total > 0 {
			more = offset+len(page.Tokens) < page.Total
		}
		return page.Tokens, more, nil
	})
}
