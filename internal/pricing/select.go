package pricing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"launchpad-index/internal/domain"
)

// quote is a pair that passed validation for one address.
type quote struct {
	pair      Pair
	liquidity float64
}

// SelectBest picks, per address, the pair on chainID with the highest
// liquidity. Pairs for other chains, other addresses or without a positive
// price are ignored. When several pairs share the top liquidity the address
// is left out, so its stored values stay untouched this cycle.
func SelectBest(pairs []Pair, chainID string, addresses []string) map[string]Pair {
	wanted := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		wanted[strings.ToLower(a)] = true
	}

	best := make(map[string]quote)
	tied := make(map[string]bool)
	for _, p := range pairs {
		if !strings.EqualFold(p.ChainID, chainID) {
			continue
		}
		addr := strings.ToLower(p.BaseToken.Address)
		if !wanted[addr] {
			continue
		}
		if _, ok := p.price(); !ok {
			continue
		}

		liq, _ := p.LiquidityUSD()
		cur, seen := best[addr]
		switch {
		case !seen || liq > cur.liquidity:
			best[addr] = quote{pair: p, liquidity: liq}
			delete(tied, addr)
		case liq == cur.liquidity:
			tied[addr] = true
		}
	}

	out := make(map[string]Pair, len(best))
	for addr, q := range best {
		if !tied[addr] {
			out[addr] = q.pair
		}
	}
	return out
}

// LiquidityUSD returns the pair's USD liquidity and whether it was reported.
func (p Pair) LiquidityUSD() (float64, bool) {
	if p.Liquidity == nil || p.Liquidity.USD == nil {
		return 0, false
	}
	return *p.Liquidity.USD, true
}

func (w *Window) h24() (float64, bool) {
	if w == nil || w.H24 == nil {
		return 0, false
	}
	return *w.H24, true
}

func (p Pair) price() (float64, bool) {
	price, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUSD), 64)
	if err != nil || price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, false
	}
	return price, true
}

// fullyDiluted is fdv first, marketCap as fallback.
func (p Pair) fullyDiluted() float64 {
	if p.FDV > 0 {
		return p.FDV
	}
	return p.MarketCap
}

// Market returns the market fields the pair actually carries. Figures the
// upstream omitted stay nil and never overwrite stored values.
func (p Pair) Market() domain.MarketData {
	var m domain.MarketData
	if price, ok := p.price(); ok {
		m.Price = &price
	}
	if mcap := p.fullyDiluted(); mcap > 0 {
		m.MarketCap = &mcap
	}
	if vol, ok := p.Volume.h24(); ok {
		m.Volume24h = &vol
	}
	if liq, ok := p.LiquidityUSD(); ok {
		m.Liquidity = &liq
	}
	if chg, ok := p.PriceChange.h24(); ok {
		m.Change24h = &chg
	}
	return m
}

// Snapshot converts a selected pair into a price snapshot for address.
// Figures the upstream omitted are stored as zero.
func (p Pair) Snapshot(address string, observedAt time.Time) *domain.PriceSnapshot {
	price, _ := p.price()
	vol, _ := p.Volume.h24()
	liq, _ := p.LiquidityUSD()
	chg, _ := p.PriceChange.h24()
	return &domain.PriceSnapshot{
		Address:     address,
		ObservedAt:  observedAt.UTC(),
		ChainID:     p.ChainID,
		PairAddress: p.PairAddress,
		DexID:       p.DexID,
		PriceUSD:    price,
		MarketCap:   p.fullyDiluted(),
		Volume24h:   vol,
		Liquidity:   liq,
		Change24h:   chg,
	}
}
