// Package pricing keeps market fields of known records fresh from a
// DexScreener-shaped quote API.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/httpclient"
)

const (
	// DefaultBaseURL is the public DexScreener API.
	DefaultBaseURL = "https://api.dexscreener.com"

	// MaxAddressesPerRequest is the upstream limit for one token query.
	MaxAddressesPerRequest = 30
)

// Token identifies one side of a pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Window holds a per-window figure; only h24 is used.
// A nil H24 means the upstream did not report it.
type Window struct {
	H24 *float64 `json:"h24"`
}

// Liquidity of a pair. A nil USD means the upstream did not report it.
type Liquidity struct {
	USD *float64 `json:"usd"`
}

// Pair is one trading-pair entry of a quote response.
type Pair struct {
	ChainID     string     `json:"chainId"`
	DexID       string     `json:"dexId"`
	PairAddress string     `json:"pairAddress"`
	BaseToken   Token      `json:"baseToken"`
	PriceUSD    string     `json:"priceUsd"`
	FDV         float64    `json:"fdv"`
	MarketCap   float64    `json:"marketCap"`
	Volume      *Window    `json:"volume"`
	PriceChange *Window    `json:"priceChange"`
	Liquidity   *Liquidity `json:"liquidity"`
}

type tokensResponse struct {
	Pairs []Pair `json:"pairs"`
}

// QuoteSource returns every trading pair known for a set of token addresses.
type QuoteSource interface {
	Quote(ctx context.Context, addresses []string) ([]Pair, error)
}

// DexScreenerClient queries GET /latest/dex/tokens/{a,b,...}.
type DexScreenerClient struct {
	client *httpclient.Client
}

// ClientConfig configures DexScreenerClient.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewDexScreenerClient creates a quote client.
func NewDexScreenerClient(cfg ClientConfig, logger zerolog.Logger) *DexScreenerClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts := []httpclient.Option{
		httpclient.WithLogger(logger.With().Str("component", "dexscreener").Logger()),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, httpclient.WithMaxRetries(cfg.MaxRetries))
	}
	return &DexScreenerClient{client: httpclient.New(base, opts...)}
}

// Quote fetches all pairs for addresses in one request.
func (c *DexScreenerClient) Quote(ctx context.Context, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxAddressesPerRequest {
		return nil, fmt.Errorf("quote: %d addresses exceeds limit %d", len(addresses), MaxAddressesPerRequest)
	}

	var resp tokensResponse
	if err := c.client.GetJSON(ctx, "/latest/dex/tokens/"+strings.Join(addresses, ","), nil, &resp); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return resp.Pairs, nil
}

var _ QuoteSource = (*DexScreenerClient)(nil)
