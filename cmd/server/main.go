// Package main provides the service binary that runs all components together:
// - HTTP API: token views, cron triggers, run status, live stream, metrics
// - Scheduler (optional): per-source syncs and the price refresh on intervals
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/app"
	"launchpad-index/internal/config"
	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi"
	"launchpad-index/internal/logging"
	"launchpad-index/internal/scheduler"
)

// Server holds all components of the service.
type Server struct {
	cfg    *config.Config
	app    *app.App
	api    *httpapi.Server
	logger zerolog.Logger
}

func main() {
	cfg, err := config.Load("server", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
	}
	defer a.Close()

	hub := httpapi.NewHub(httpapi.DefaultStreamConfig(), logger)
	api := httpapi.NewServer(httpapi.Options{
		Query:      a.Query,
		Syncer:     a.Engine,
		Refresher:  a.Refresher,
		Runs:       a.Stores.Runs,
		Sources:    a.Engine.Sources(),
		Hub:        hub,
		CronSecret: cfg.HTTP.CronSecret,
		Addr:       cfg.HTTP.Addr,
		Logger:     logger,
	})
	if cfg.HTTP.CronSecret == "" {
		logger.Warn().Msg("CRON_SECRET is not set, every trigger request will be refused")
	}

	server := &Server{cfg: cfg, app: a, api: api, logger: logger}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}

// Run starts the HTTP API and, when enabled, the scheduler.
// It returns when ctx is cancelled or the API fails to listen.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.api.Start(); err != nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	defer s.api.Stop()

	if !s.cfg.Scheduler.Enabled {
		s.logger.Info().Msg("scheduler disabled, runs are triggered over HTTP only")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	}

	sched := scheduler.New(s.logger, s.tasks()...)
	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(ctx) }()

	select {
	case <-ctx.Done():
		<-schedDone
		return ctx.Err()
	case err := <-errCh:
		return err
	case err := <-schedDone:
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return ctx.Err()
	}
}

// tasks returns one sync task per registered source plus the price refresh.
func (s *Server) tasks() []scheduler.Task {
	interval := s.cfg.Scheduler.SyncInterval.Duration

	var tasks []scheduler.Task
	for _, source := range s.app.Engine.Sources() {
		tasks = append(tasks, scheduler.Task{
			Name:     "sync:" + source.String(),
			Interval: interval,
			Run:      s.syncTask(source),
		})
	}
	tasks = append(tasks, scheduler.Task{
		Name:     "refresh",
		Interval: s.cfg.Scheduler.PriceInterval.Duration,
		Run:      s.refreshTask,
	})
	return tasks
}

func (s *Server) syncTask(source domain.Source) func(context.Context) error {
	return func(ctx context.Context) error {
		summary, err := s.app.Engine.RunSync(ctx, source)
		if summary != nil {
			s.api.Notify(httpapi.Event{Type: "sync", Data: summary})
		}
		return err
	}
}

func (s *Server) refreshTask(ctx context.Context) error {
	summary, err := s.app.Refresher.RefreshPrices(ctx)
	if summary != nil {
		s.api.Notify(httpapi.Event{Type: "refresh", Data: summary})
	}
	return err
}
