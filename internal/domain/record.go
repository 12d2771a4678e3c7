package domain

import "time"

// MarketData holds the volatile market fields of a record.
// A nil field means "unknown"; it is never used to blank a stored value.
type MarketData struct {
	Price       *float64 // USD
	MarketCap   *float64 // USD, fully diluted
	Volume24h   *float64 // USD
	Liquidity   *float64 // USD
	Change24h   *float64 // percent
	HolderCount *int64
}

// IsEmpty reports whether no market field is set.
func (m MarketData) IsEmpty() bool {
	return m.Price == nil && m.MarketCap == nil && m.Volume24h == nil &&
		m.Liquidity == nil && m.Change24h == nil && m.HolderCount == nil
}

// Overlay returns m with every non-nil field of o applied on top.
func (m MarketData) Overlay(o MarketData) MarketData {
	if o.Price != nil {
		m.Price = o.Price
	}
	if o.MarketCap != nil {
		m.MarketCap = o.MarketCap
	}
	if o.Volume24h != nil {
		m.Volume24h = o.Volume24h
	}
	if o.Liquidity != nil {
		m.Liquidity = o.Liquidity
	}
	if o.Change24h != nil {
		m.Change24h = o.Change24h
	}
	if o.HolderCount != nil {
		m.HolderCount = o.HolderCount
	}
	return m
}

// TokenRecord is the canonical, source-agnostic representation of one
// token or agent, keyed by its normalized address.
// Corresponds to token_records table in PostgreSQL.
type TokenRecord struct {
	Address     string     // PK, lowercase 0x-hex, write-once
	Name        string     // display name
	Symbol      string     // ticker
	Handle      string     // social handle, "@symbol" when not supplied
	AvatarURL   *string    // image URL (nullable)
	Karma       int        // reputation score
	Source      Source     // last source to touch non-price fields
	Market      MarketData // volatile fields owned by the price refresher
	CreatedAt   time.Time  // first seen, write-once
	UpdatedAt   time.Time  // last write from any writer
	TokenizedAt *time.Time // when an off-chain agent became a token (nullable)
}

// Clone returns a deep copy of r.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.AvatarURL = cloneString(r.AvatarURL)
	c.TokenizedAt = cloneTime(r.TokenizedAt)
	c.Market = MarketData{
		Price:       cloneFloat(r.Market.Price),
		MarketCap:   cloneFloat(r.Market.MarketCap),
		Volume24h:   cloneFloat(r.Market.Volume24h),
		Liquidity:   cloneFloat(r.Market.Liquidity),
		Change24h:   cloneFloat(r.Market.Change24h),
		HolderCount: cloneInt64(r.Market.HolderCount),
	}
	return &c
}

// Verified reports whether the record's last source is a verified launch platform.
func (r *TokenRecord) Verified() bool {
	return r.Source.IsVerifiedPlatform()
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ContentEqual reports whether r and o hold the same values, ignoring UpdatedAt.
func (r *TokenRecord) ContentEqual(o *TokenRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Address == o.Address &&
		r.Name == o.Name &&
		r.Symbol == o.Symbol &&
		r.Handle == o.Handle &&
		eqString(r.AvatarURL, o.AvatarURL) &&
		r.Karma == o.Karma &&
		r.Source == o.Source &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		eqTime(r.TokenizedAt, o.TokenizedAt) &&
		eqFloat(r.Market.Price, o.Market.Price) &&
		eqFloat(r.Market.MarketCap, o.Market.MarketCap) &&
		eqFloat(r.Market.Volume24h, o.Market.Volume24h) &&
		eqFloat(r.Market.Liquidity, o.Market.Liquidity) &&
		eqFloat(r.Market.Change24h, o.Market.Change24h) &&
		eqInt64(r.Market.HolderCount, o.Market.HolderCount)
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
