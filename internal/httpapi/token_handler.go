package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi/httputil"
	"launchpad-index/internal/query"
	"launchpad-index/internal/storage"
)

// DefaultHistoryWindow is the history range when "from" is omitted.
const DefaultHistoryWindow = 24 * time.Hour

// TokenHandler serves read views of the record store.
type TokenHandler struct {
	query *query.Service
}

func NewTokenHandler(svc *query.Service) *TokenHandler {
	return &TokenHandler{query: svc}
}

func (h *TokenHandler) Root() string {
	return "/tokens"
}

func (h *TokenHandler) SetRoutes(pub *gin.RouterGroup, _ *gin.RouterGroup) {
	pub.GET("", h.listByVolume)
	pub.GET("/search", h.search)
	pub.GET("/verified", h.verified)
	pub.GET("/movers", h.movers)
	pub.GET("/source/:source", h.bySource)
	pub.GET("/:address", h.get)
	pub.GET("/:address/history", h.history)
}

func (h *TokenHandler) listByVolume(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	records, err := h.query.ListByVolume(c.Request.Context(), limit)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenViews(records))
}

func (h *TokenHandler) search(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	records, err := h.query.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenViews(records))
}

func (h *TokenHandler) verified(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	records, err := h.query.Verified(c.Request.Context(), limit)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenViews(records))
}

func (h *TokenHandler) movers(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	direction := query.Direction(c.DefaultQuery("direction", string(query.Gainers)))
	records, err := h.query.TopMovers(c.Request.Context(), limit, direction)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenViews(records))
}

func (h *TokenHandler) bySource(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	records, err := h.query.BySource(c.Request.Context(), domain.Source(c.Param("source")), limit)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenViews(records))
}

func (h *TokenHandler) get(c *gin.Context) {
	record, err := h.query.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newTokenView(record))
}

func (h *TokenHandler) history(c *gin.Context) {
	to := time.Now().UTC()
	if v := c.Query("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			httputil.BadRequest(c, "invalid to: "+err.Error())
			return
		}
		to = t
	}
	from := to.Add(-DefaultHistoryWindow)
	if v := c.Query("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			httputil.BadRequest(c, "invalid from: "+err.Error())
			return
		}
		from = t
	}

	snapshots, err := h.query.History(c.Request.Context(), c.Param("address"), from, to)
	if err != nil {
		queryError(c, err)
		return
	}
	httputil.Success(c, newSnapshotViews(snapshots))
}

// limitParam reads ?limit. Zero means the service default.
func limitParam(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		httputil.BadRequest(c, "invalid limit")
		return 0, false
	}
	return n, true
}

// parseTimeParam accepts RFC3339 or unix seconds.
func parseTimeParam(v string) (time.Time, error) {
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func queryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidQuery), errors.Is(err, storage.ErrInvalidInput):
		httputil.BadRequest(c, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(c, err.Error())
	default:
		httputil.InternalError(c, err.Error())
	}
}
