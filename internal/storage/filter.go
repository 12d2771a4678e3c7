package storage

import (
	"sort"

	"launchpad-index/internal/domain"
)

// SortField selects the ordering of List results.
type SortField string

const (
	SortByVolume    SortField = "volume"
	SortByMarketCap SortField = "market_cap"
	SortByChange    SortField = "change"
	SortByCreated   SortField = "created"
	SortByKarma     SortField = "karma"
)

// IsValid checks if the sort field is known.
func (f SortField) IsValid() bool {
	switch f {
	case SortByVolume, SortByMarketCap, SortByChange, SortByCreated, SortByKarma:
		return true
	}
	return false
}

// RecordFilter selects records for List.
// Zero values mean "no constraint"; nil thresholds are not applied.
type RecordFilter struct {
	Sources      []domain.Source
	VerifiedOnly bool
	HasPrice     bool
	MinVolume    *float64
	MinLiquidity *float64
	MinMarketCap *float64

	SortBy    SortField // default: address ASC
	Ascending bool
	Limit     int // 0 = unlimited
}

// Match reports whether r satisfies the filter predicates.
func (f RecordFilter) Match(r *domain.TokenRecord) bool {
	if len(f.Sources) > 0 && !containsSource(f.Sources, r.Source) {
		return false
	}
	if f.VerifiedOnly && !r.Verified() {
		return false
	}
	if f.HasPrice && r.Market.Price == nil {
		return false
	}
	if !atLeast(r.Market.Volume24h, f.MinVolume) {
		return false
	}
	if !atLeast(r.Market.Liquidity, f.MinLiquidity) {
		return false
	}
	if !atLeast(r.Market.MarketCap, f.MinMarketCap) {
		return false
	}
	return true
}

// Apply filters, sorts and limits records in place, for backends that
// evaluate filters in process.
func (f RecordFilter) Apply(records []*domain.TokenRecord) []*domain.TokenRecord {
	out := records[:0]
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	SortRecords(out, f.SortBy, f.Ascending)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortRecords orders records by field. Records missing the sort value go
// last regardless of direction; ties break on address.
func SortRecords(records []*domain.TokenRecord, field SortField, ascending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch field {
		case SortByVolume:
			return lessNullable(a.Market.Volume24h, b.Market.Volume24h, ascending, a.Address, b.Address)
		case SortByMarketCap:
			return lessNullable(a.Market.MarketCap, b.Market.MarketCap, ascending, a.Address, b.Address)
		case SortByChange:
			return lessNullable(a.Market.Change24h, b.Market.Change24h, ascending, a.Address, b.Address)
		case SortByCreated:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				if ascending {
					return a.CreatedAt.Before(b.CreatedAt)
				}
				return a.CreatedAt.After(b.CreatedAt)
			}
		case SortByKarma:
			if a.Karma != b.Karma {
				if ascending {
					return a.Karma < b.Karma
				}
				return a.Karma > b.Karma
			}
		}
		return a.Address < b.Address
	})
}

func lessNullable(a, b *float64, ascending bool, addrA, addrB string) bool {
	switch {
	case a == nil && b == nil:
		return addrA < addrB
	case a == nil:
		return false
	case b == nil:
		return true
	case *a == *b:
		return addrA < addrB
	case ascending:
		return *a < *b
	default:
		return *a > *b
	}
}

func atLeast(v, min *float64) bool {
	if min == nil {
		return true
	}
	return v != nil && *v >= *min
}

func containsSource(sources []domain.Source, s domain.Source) bool {
	for _, x := range sources {
		if x == s {
			return true
		}
	}
	return false
}
