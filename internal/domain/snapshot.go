package domain

import "time"

// PriceSnapshot is one resolved quote for an address.
// Corresponds to price_snapshots table in ClickHouse.
type PriceSnapshot struct {
	Address     string
	ObservedAt  time.Time
	ChainID     string
	PairAddress string
	DexID       string
	PriceUSD    float64
	MarketCap   float64
	Volume24h   float64
	Liquidity   float64
	Change24h   float64
}
