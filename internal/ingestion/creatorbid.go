package ingestion

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// CreatorBidAdapter pages GET /api/agents?page=N&limit=L.
// Response: a bare JSON array; a short page is the last one.
type CreatorBidAdapter struct {
	client   *httpclient.Client
	pager    Pager
	pageSize int
}

// NewCreatorBidAdapter creates a CreatorBid adapter.
func NewCreatorBidAdapter(cfg Config, logger zerolog.Logger) *CreatorBidAdapter {
	logger = adapterLogger(logger, domain.SourceCreatorBid)
	return &CreatorBidAdapter{client: cfg.client(logger), pager: cfg.pager(logger), pageSize: cfg.pageSize()}
}

// Source returns domain.SourceCreatorBid.
func (a *CreatorBidAdapter) Source() domain.Source {
	return domain.SourceCreatorBid
}

// FetchListings pages until a short or empty page.
func (a *CreatorBidAdapter) FetchListings(ctx context.Context) *FetchResult {
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(index+1))
		q.Set("limit", strconv.Itoa(a.pageSize))

		var items []map[string]any
		if err := a.client.GetJSON(ctx, "/api/agents", q, &items); err != nil {
			return nil, false, err
		}
		return items, len(items) >= a.pageSize, nil
	})
}
