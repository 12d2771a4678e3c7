package ingestion

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// TrenchesAdapter pages GET /api/tokens?page=N&limit=L.
// Response: {"data":{"tokens":[...],"pagination":{"hasMore":bool}}}.
type TrenchesAdapter struct {
	client   *httpclient.Client
	pager    Pager
	pageSize int
}

// NewTrenchesAdapter creates a Trenches adapter.
func NewTrenchesAdapter(cfg Config, logger zerolog.Logger) *TrenchesAdapter {
	logger = adapterLogger(logger, domain.SourceTrenches)
	return &TrenchesAdapter{client: cfg.client(logger), pager: cfg.pager(logger), pageSize: cfg.pageSize()}
}

// Source returns domain.SourceTrenches.
func (a *TrenchesAdapter) Source() domain.Source {
	return domain.SourceTrenches
}

type trenchesPage struct {
	Data struct {
		Tokens     []map[string]any `json:"tokens"`
		Pagination struct {
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	} `json:"data"`
}

// FetchListings pages until pagination.hasMore is false.
func (a *TrenchesAdapter) FetchListings(ctx context.Context) *FetchResult {
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(index+1))
		q.Set("limit", strconv.Itoa(a.pageSize))

		var page trenchesPage
		if err := a.client.GetJSON(ctx, "/api/tokens", q, &page); err != nil {
			return nil, false, err
		}
		return page.Data.Tokens, page.Data.Pagination.HasMore, nil
	})
}
