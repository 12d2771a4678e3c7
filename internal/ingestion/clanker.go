package ingestion

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// ClankerAdapter pages GET /api/tokens?sort=desc&page=N.
// Response: {"data": [...], "hasMore": bool}. Pages are 1-based.
type ClankerAdapter struct {
	client *httpclient.Client
	pager  Pager
}

// NewClankerAdapter creates a Clanker adapter.
func NewClankerAdapter(cfg Config, logger zerolog.Logger) *ClankerAdapter {
	logger = adapterLogger(logger, domain.SourceClanker)
	return &ClankerAdapter{client: cfg.client(logger), pager: cfg.pager(logger)}
}

// Source returns domain.SourceClanker.
func (a *ClankerAdapter) Source() domain.Source {
	return domain.SourceClanker
}

type clankerPage struct {
	Data    []map[string]any `json:"data"`
	HasMore bool             `json:"hasMore"`
}

// FetchListings pages until hasMore is false.
func (a *ClankerAdapter) FetchListings(ctx context.Context) *FetchResult {
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		q := url.Values{}
		q.Set("sort", "desc")
		q.Set("page", strconv.Itoa(index+1))

		var page clankerPage
		if err := a.client.GetJSON(ctx, "/api/tokens", q, &page); err != nil {
			return nil, false, err
		}
		return page.Data, page.HasMore, nil
	})
}
