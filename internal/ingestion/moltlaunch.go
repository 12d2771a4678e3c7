package ingestion

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// MoltlaunchAdapter pages GET /api/launches?cursor=C&limit=L.
// Response: {"launches":[...],"nextCursor":"..."}; an empty cursor ends paging.
type MoltlaunchAdapter struct {
	client   *httpclient.Client
	pager    Pager
	pageSize int
}

// NewMoltlaunchAdapter creates a Moltlaunch adapter.
func NewMoltlaunchAdapter(cfg Config, logger zerolog.Logger) *MoltlaunchAdapter {
	logger = adapterLogger(logger, domain.SourceMoltlaunch)
	return &MoltlaunchAdapter{client: cfg.client(logger), pager: cfg.pager(logger), pageSize: cfg.pageSize()}
}

// Source returns domain.SourceMoltlaunch.
func (a *MoltlaunchAdapter) Source() domain.Source {
	return domain.SourceMoltlaunch
}

type moltlaunchPage struct {
	Launches   []map[string]any `json:"launches"`
	NextCursor string           `json:"nextCursor"`
}

// FetchListings follows nextCursor until it is empty or repeats.
func (a *MoltlaunchAdapter) FetchListings(ctx context.Context) *FetchResult {
	var cursor string
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(a.pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page moltlaunchPage
		if err := a.client.GetJSON(ctx, "/api/launches", q, &page); err != nil {
			return nil, false, err
		}

		more := page.NextCursor != "" && page.NextCursor != cursor
		cursor = page.NextCursor
		return page.Launches, more, nil
	})
}
