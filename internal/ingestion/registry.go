package ingestion

import (
	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
)

// Settings selects and configures the adapters to build.
// Sources without an entry are not built.
type Settings map[domain.Source]Config

// Build returns one adapter per configured source in AllSources order.
// Sources without an adapter implementation are ignored.
func Build(settings Settings, logger zerolog.Logger) []Adapter {
	var adapters []Adapter
	for _, source := range domain.AllSources {
		cfg, ok := settings[source]
		if !ok || cfg.BaseURL == "" {
			continue
		}
		if a := newAdapter(source, cfg, logger); a != nil {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

func newAdapter(source domain.Source, cfg Config, logger zerolog.Logger) Adapter {
	switch source {
	case domain.SourceClanker:
		return NewClankerAdapter(cfg, logger)
	case domain.SourceClawnch:
		return NewClawnchAdapter(cfg, logger)
	case domain.SourceCreatorBid:
		return NewCreatorBidAdapter(cfg, logger)
	case domain.SourceDoppler:
		return NewDopplerAdapter(cfg, logger)
	case domain.SourceTrenches:
		return NewTrenchesAdapter(cfg, logger)
	case domain.SourceMoltlaunch:
		return NewMoltlaunchAdapter(cfg, logger)
	case domain.SourceMoltbook:
		return NewMoltbookAdapter(cfg, logger)
	default:
		return nil
	}
}
