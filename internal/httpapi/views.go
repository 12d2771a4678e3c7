package httpapi

import (
	"time"

	"launchpad-index/internal/domain"
)

// TokenView is the JSON shape of a record.
type TokenView struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Symbol      string     `json:"symbol"`
	Handle      string     `json:"handle"`
	AvatarURL   *string    `json:"avatar_url"`
	Karma       int        `json:"karma"`
	Source      string     `json:"source"`
	Verified    bool       `json:"verified"`
	PriceUSD    *float64   `json:"price_usd"`
	MarketCap   *float64   `json:"market_cap"`
	Volume24h   *float64   `json:"volume_24h"`
	Liquidity   *float64   `json:"liquidity"`
	Change24h   *float64   `json:"change_24h"`
	HolderCount *int64     `json:"holder_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	TokenizedAt *time.Time `json:"tokenized_at"`
}

func newTokenView(r *domain.TokenRecord) TokenView {
	return TokenView{
		Address:     r.Address,
		Name:        r.Name,
		Symbol:      r.Symbol,
		Handle:      r.Handle,
		AvatarURL:   r.AvatarURL,
		Karma:       r.Karma,
		Source:      r.Source.String(),
		Verified:    r.Verified(),
		PriceUSD:    r.Market.Price,
		MarketCap:   r.Market.MarketCap,
		Volume24h:   r.Market.Volume24h,
		Liquidity:   r.Market.Liquidity,
		Change24h:   r.Market.Change24h,
		HolderCount: r.Market.HolderCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		TokenizedAt: r.TokenizedAt,
	}
}

func newTokenViews(records []*domain.TokenRecord) []TokenView {
	out := make([]TokenView, 0, len(records))
	for _, r := range records {
		out = append(out, newTokenView(r))
	}
	return out
}

// SnapshotView is the JSON shape of one price snapshot.
type SnapshotView struct {
	ObservedAt  time.Time `json:"observed_at"`
	PairAddress string    `json:"pair_address"`
	DexID       string    `json:"dex_id"`
	PriceUSD    float64   `json:"price_usd"`
	MarketCap   float64   `json:"market_cap"`
	Volume24h   float64   `json:"volume_24h"`
	Liquidity   float64   `json:"liquidity"`
	Change24h   float64   `json:"change_24h"`
}

func newSnapshotViews(snapshots []*domain.PriceSnapshot) []SnapshotView {
	out := make([]SnapshotView, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, SnapshotView{
			ObservedAt:  s.ObservedAt,
			PairAddress: s.PairAddress,
			DexID:       s.DexID,
			PriceUSD:    s.PriceUSD,
			MarketCap:   s.MarketCap,
			Volume24h:   s.Volume24h,
			Liquidity:   s.Liquidity,
			Change24h:   s.Change24h,
		})
	}
	return out
}

// RunView is the JSON shape of a persisted run.
type RunView struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source,omitempty"`
	Fetched    int       `json:"fetched"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
}

func newRunView(r *domain.SyncRun) RunView {
	return RunView{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Source:     r.Source.String(),
		Fetched:    r.Fetched,
		Written:    r.Written,
		Skipped:    r.Skipped,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   r.FinishedAt.Sub(r.StartedAt).String(),
	}
}
