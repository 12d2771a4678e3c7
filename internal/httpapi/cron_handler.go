package httpapi

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi/httputil"
	"launchpad-index/internal/reconcile"
)

// Syncer runs source syncs. Implemented by *reconcile.Engine.
type Syncer interface {
	RunSync(ctx context.Context, source domain.Source) (*domain.SyncSummary, error)
	RunAll(ctx context.Context) ([]*domain.SyncSummary, error)
}

// PriceRefresher runs price refreshes. Implemented by *pricing.Refresher.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context) (*domain.RefreshSummary, error)
}

// CronHandler exposes the secret-guarded run triggers.
// Every completed run invalidates the query cache and is pushed to the stream.
type CronHandler struct {
	syncer    Syncer
	refresher PriceRefresher
	onRun     func(Event)
	logger    zerolog.Logger
}

func NewCronHandler(syncer Syncer, refresher PriceRefresher, onRun func(Event), logger zerolog.Logger) *CronHandler {
	if onRun == nil {
		onRun = func(Event) {}
	}
	return &CronHandler{
		syncer:    syncer,
		refresher: refresher,
		onRun:     onRun,
		logger:    logger.With().Str("component", "cron").Logger(),
	}
}

func (h *CronHandler) Root() string {
	return "/cron"
}

func (h *CronHandler) SetRoutes(_ *gin.RouterGroup, cron *gin.RouterGroup) {
	cron.POST("/sync", h.syncAll)
	cron.POST("/sync/:source", h.syncOne)
	cron.POST("/update-prices", h.updatePrices)
}

func (h *CronHandler) syncOne(c *gin.Context) {
	source := domain.Source(c.Param("source"))
	if !source.IsValid() {
		httputil.BadRequest(c, "unknown source: "+source.String())
		return
	}

	summary, err := h.syncer.RunSync(c.Request.Context(), source)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnknownSource) {
			httputil.NotFound(c, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("source", source.String()).Msg("sync trigger failed")
		httputil.InternalError(c, err.Error())
		return
	}
	h.onRun(Event{Type: "sync", Data: summary})
	httputil.Success(c, summary)
}

func (h *CronHandler) syncAll(c *gin.Context) {
	summaries, err := h.syncer.RunAll(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("sync-all trigger failed")
		httputil.InternalError(c, err.Error())
		return
	}
	h.onRun(Event{Type: "sync", Data: summaries})
	httputil.Success(c, summaries)
}

func (h *CronHandler) updatePrices(c *gin.Context) {
	if h.refresher == nil {
		httputil.NotFound(c, "price refresh not configured")
		return
	}
	summary, err := h.refresher.RefreshPrices(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("price trigger failed")
		httputil.InternalError(c, err.Error())
		return
	}
	h.onRun(Event{Type: "refresh", Data: summary})
	httputil.Success(c, summary)
}
