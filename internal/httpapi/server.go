// Package httpapi exposes the query views, the cron triggers, the run
// status and the live run stream over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi/httputil"
	"launchpad-index/internal/observability"
	"launchpad-index/internal/query"
	"launchpad-index/internal/storage"
)

const APIVersion = "v1"

// Options for creating Server.
type Options struct {
	// Required
	Query  *query.Service
	Syncer Syncer

	// Optional
	Refresher  PriceRefresher
	Runs       storage.SyncRunStore
	Sources    []domain.Source // sources listed by /status
	Hub        *Hub
	CronSecret string // empty refuses every trigger
	Addr       string // default ":8080"
	Logger     zerolog.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger zerolog.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer builds the router. Call Start to listen.
func NewServer(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "http").Logger(),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Notify invalidates cached views and pushes ev to stream clients.
// Used after every run, whether triggered over HTTP or by the scheduler.
func (s *Server) Notify(ev Event) {
	s.opts.Query.Invalidate()
	if s.opts.Hub != nil {
		s.opts.Hub.Broadcast(ev)
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders("Authorization", "X-Cron-Secret")
	r.Use(cors.New(corsConf))

	r.Use(MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	pub := r.Group("/api/" + APIVersion)
	cron := r.Group("/api/"+APIVersion, CronAuth(s.opts.CronSecret))

	if s.opts.Hub != nil {
		pub.GET("/stream", s.opts.Hub.Handle)
	}

	handlers := []httputil.RouteHandler{
		NewTokenHandler(s.opts.Query),
		NewStatusHandler(s.opts.Runs, s.opts.Sources, s.opts.Hub),
		NewCronHandler(s.opts.Syncer, s.opts.Refresher, s.Notify, s.logger),
	}
	for _, h := range handlers {
		h.SetRoutes(pub.Group(h.Root()), cron.Group(h.Root()))
	}
	return r
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	s.logger.Info().Str("addr", s.opts.Addr).Msg("http server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to 5s for in-flight requests.
func (s *Server) Stop() error {
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	s.logger.Info().Msg("http server stopped gracefully")
	return nil
}
