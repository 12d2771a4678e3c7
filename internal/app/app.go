// Package app wires stores, adapters and engines from configuration.
// Both binaries build their components through it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"launchpad-index/internal/config"
	"launchpad-index/internal/ingestion"
	"launchpad-index/internal/normalization"
	"launchpad-index/internal/pricing"
	"launchpad-index/internal/query"
	"launchpad-index/internal/reconcile"
	"launchpad-index/internal/storage"
	chstore "launchpad-index/internal/storage/clickhouse"
	"launchpad-index/internal/storage/memory"
	"launchpad-index/internal/storage/migrations"
	mongostore "launchpad-index/internal/storage/mongo"
	pgstore "launchpad-index/internal/storage/postgres"
)

// Stores holds every storage implementation the service uses.
type Stores struct {
	Records   storage.RecordStore
	Counters  storage.CounterStore
	Snapshots storage.PriceSnapshotStore
	Runs      storage.SyncRunStore
}

// App is the assembled service.
type App struct {
	Stores    *Stores
	Engine    *reconcile.Engine
	Refresher *pricing.Refresher
	Query     *query.Service

	cleanup func()
}

// New connects the configured stores, applies migrations and builds the engines.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	stores, cleanup, err := CreateStores(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	adapters := ingestion.Build(cfg.AdapterSettings(), logger)
	if len(adapters) == 0 {
		logger.Warn().Msg("no source adapters configured, set <SOURCE>_API_URL to enable one")
	}

	engine := reconcile.New(reconcile.Options{
		Store:         stores.Records,
		Normalizer:    normalization.NewNormalizer(normalization.Options{EthUSD: cfg.Pricing.EthUSD, Logger: logger}),
		Adapters:      adapters,
		Counters:      stores.Counters,
		Runs:          stores.Runs,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		Logger:        logger,
	})

	refresher := pricing.NewRefresher(pricing.Options{
		Store:      stores.Records,
		Quotes:     pricing.NewDexScreenerClient(cfg.QuoteClient(), logger),
		Snapshots:  stores.Snapshots,
		Runs:       stores.Runs,
		ChainID:    cfg.Pricing.ChainID,
		BatchSize:  cfg.Pricing.BatchSize,
		BatchPause: cfg.Pricing.BatchPause.Duration,
		Logger:     logger,
	})

	svc := query.NewService(query.Options{
		Store:     stores.Records,
		Snapshots: stores.Snapshots,
		CacheSize: cfg.Query.CacheSize,
		CacheTTL:  cfg.Query.CacheTTL.Duration,
		Logger:    logger,
	})

	return &App{
		Stores:    stores,
		Engine:    engine,
		Refresher: refresher,
		Query:     svc,
		cleanup:   cleanup,
	}, nil
}

// Close releases store connections.
func (a *App) Close() {
	a.cleanup()
}

// CreateStores opens the record store backend and the snapshot store.
// The returned cleanup closes every opened connection.
func CreateStores(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (*Stores, func(), error) {
	var (
		stores  = &Stores{}
		closers []func()
		cleanup = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	switch cfg.Backend {
	case config.BackendMemory:
		stores.Records = memory.NewRecordStore()
		stores.Counters = memory.NewCounterStore()
		stores.Runs = memory.NewSyncRunStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("postgres migrations done")
		stores.Records = pgstore.NewRecordStore(pool)
		stores.Counters = pgstore.NewCounterStore(pool)
		stores.Runs = pgstore.NewSyncRunStore(pool)

	case config.BackendMongo:
		db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Close(ctx)
		})
		if err := db.EnsureIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		stores.Records = mongostore.NewRecordStore(db)
		stores.Counters = mongostore.NewCounterStore(db)
		stores.Runs = mongostore.NewSyncRunStore(db)

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.ClickHouseDSN == "" {
		stores.Snapshots = memory.NewPriceSnapshotStore()
	} else {
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("clickhouse migrations done")
		closers = append(closers, func() { conn.Close() })
		stores.Snapshots = chstore.NewPriceSnapshotStore(conn)
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Bool("clickhouse", cfg.ClickHouseDSN != "").
		Msg("stores ready")
	return stores, cleanup, nil
}
