package httpapi

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi/httputil"
	"launchpad-index/internal/storage"
)

// RecentRunsLimit bounds the run log returned by /status.
const RecentRunsLimit = 20

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status        string             `json:"status"`
	Uptime        string             `json:"uptime"`
	StartedAt     time.Time          `json:"started_at"`
	StreamClients int                `json:"stream_clients"`
	LastSync      map[string]RunView `json:"last_sync"`
	LastRefresh   *RunView           `json:"last_refresh,omitempty"`
	Recent        []RunView          `json:"recent"`
}

// StatusHandler reports the latest run per task.
type StatusHandler struct {
	runs      storage.SyncRunStore
	sources   []domain.Source
	hub       *Hub
	startedAt time.Time
}

func NewStatusHandler(runs storage.SyncRunStore, sources []domain.Source, hub *Hub) *StatusHandler {
	return &StatusHandler{
		runs:      runs,
		sources:   sources,
		hub:       hub,
		startedAt: time.Now().UTC(),
	}
}

func (h *StatusHandler) Root() string {
	return "/status"
}

func (h *StatusHandler) SetRoutes(pub *gin.RouterGroup, _ *gin.RouterGroup) {
	pub.GET("", h.status)
}

func (h *StatusHandler) status(c *gin.Context) {
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt: h.startedAt,
		LastSync:  make(map[string]RunView),
		Recent:    []RunView{},
	}
	if h.hub != nil {
		resp.StreamClients = h.hub.Count()
	}
	if h.runs == nil {
		httputil.Success(c, resp)
		return
	}

	ctx := c.Request.Context()
	for _, source := range h.sources {
		run, err := h.runs.Latest(ctx, domain.RunKindSync, source)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			httputil.InternalError(c, err.Error())
			return
		}
		resp.LastSync[source.String()] = newRunView(run)
	}

	run, err := h.runs.Latest(ctx, domain.RunKindRefresh, "")
	switch {
	case err == nil:
		v := newRunView(run)
		resp.LastRefresh = &v
	case !errors.Is(err, storage.ErrNotFound):
		httputil.InternalError(c, err.Error())
		return
	}

	recent, err := h.runs.Recent(ctx, RecentRunsLimit)
	if err != nil {
		httputil.InternalError(c, err.Error())
		return
	}
	for _, r := range recent {
		resp.Recent = append(resp.Recent, newRunView(r))
	}
	httputil.Success(c, resp)
}
