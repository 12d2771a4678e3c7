package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpclient"
)

// dopplerQuery selects tokens newest first with cursor paging.
const dopplerQuery = `query Tokens($limit: Int!, $after: String) {
  tokens(orderBy: "firstSeenAt", orderDirection: "desc", limit: $limit, after: $after) {
    items {
      address
      name
      symbol
      image
      creatorAddress
      firstSeenAt
      volumeUsd
      pool { marketCapUsd price dailyVolume percentDayChange }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// ErrGraphQL is returned when a GraphQL response carries errors.
var ErrGraphQL = errors.New("graphql error")

// DopplerAdapter pages the Doppler indexer GraphQL endpoint by cursor.
// Response: {"data":{"tokens":{"items":[...],"pageInfo":{"hasNextPage","endCursor"}}}}.
type DopplerAdapter struct {
	client   *httpclient.Client
	pager    Pager
	pageSize int
}

// NewDopplerAdapter creates a Doppler adapter.
func NewDopplerAdapter(cfg Config, logger zerolog.Logger) *DopplerAdapter {
	logger = adapterLogger(logger, domain.SourceDoppler)
	return &DopplerAdapter{client: cfg.client(logger), pager: cfg.pager(logger), pageSize: cfg.pageSize()}
}

// Source returns domain.SourceDoppler.
func (a *DopplerAdapter) Source() domain.Source {
	return domain.SourceDoppler
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type dopplerResponse struct {
	Data struct {
		Tokens struct {
			Items    []map[string]any `json:"items"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"tokens"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchListings follows endCursor until hasNextPage is false.
func (a *DopplerAdapter) FetchListings(ctx context.Context) *FetchResult {
	var cursor string
	return a.pager.Run(ctx, a.Source(), func(ctx context.Context, index int) ([]map[string]any, bool, error) {
		vars := map[string]any{"limit": a.pageSize}
		if cursor != "" {
			vars["after"] = cursor
		}

		var resp dopplerResponse
		if err := a.client.PostJSON(ctx, "/graphql", graphQLRequest{Query: dopplerQuery, Variables: vars}, &resp); err != nil {
			return nil, false, err
		}
		if len(resp.Errors) > 0 {
			msgs := make([]string, len(resp.Errors))
			for i, e := range resp.Errors {
				msgs[i] = e.Message
			}
			return nil, false, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
		}

		info := resp.Data.Tokens.PageInfo
		more := info.HasNextPage && info.EndCursor != "" && info.EndCursor != cursor
		cursor = info.EndCursor
		return resp.Data.Tokens.Items, more, nil
	})
}
