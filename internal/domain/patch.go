package domain

import "time"

// RecordPatch is a partial update for one record.
//
// Pointer fields are applied only when non-nil. Defaults never overwrite
// stored values.
type RecordPatch struct {
	Address string // normalized address, required
	Source  Source // empty for market-only writers

	Name        *string
	Symbol      *string
	Handle      *string
	AvatarURL   *string
	Karma       *int
	TokenizedAt *time.Time
	Market      MarketData

	Defaults RecordDefaults
}

// RecordDefaults are applied on insert. Handle also fills a stored record
// whose handle is still empty.
type RecordDefaults struct {
	Handle    string
	Karma     int
	CreatedAt *time.Time // upstream launch time; store clock when nil
}

// NewRecord builds the record a patch creates when no record exists.
func (p *RecordPatch) NewRecord(now time.Time) *TokenRecord {
	r := &TokenRecord{
		Address:   p.Address,
		Source:    p.Source,
		Handle:    p.Defaults.Handle,
		Karma:     p.Defaults.Karma,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Defaults.CreatedAt != nil && !p.Defaults.CreatedAt.IsZero() && p.Defaults.CreatedAt.Before(now) {
		r.CreatedAt = p.Defaults.CreatedAt.UTC()
	}
	p.applyFields(r)
	r.Market = r.Market.Overlay(p.Market)
	return r
}

// ApplyListing overlays the patch on an existing record: supplied
// non-price fields win, market fields change only where supplied.
// Address and CreatedAt are never touched.
func (p *RecordPatch) ApplyListing(r *TokenRecord) {
	if p.Source != "" {
		r.Source = p.Source
	}
	p.applyFields(r)
	if r.Handle == "" {
		r.Handle = p.Defaults.Handle
	}
	r.Market = r.Market.Overlay(p.Market)
}

// ApplyMarket overlays only the market fields.
func (p *RecordPatch) ApplyMarket(r *TokenRecord) {
	r.Market = r.Market.Overlay(p.Market)
}

func (p *RecordPatch) applyFields(r *TokenRecord) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Symbol != nil {
		r.Symbol = *p.Symbol
	}
	if p.Handle != nil {
		r.Handle = *p.Handle
	}
	if p.AvatarURL != nil {
		r.AvatarURL = cloneString(p.AvatarURL)
	}
	if p.Karma != nil {
		r.Karma = *p.Karma
	}
	if p.TokenizedAt != nil {
		r.TokenizedAt = cloneTime(p.TokenizedAt)
	}
}
