// Package config loads service settings.
//
// Precedence, lowest first: built-in defaults, the TOML file named by
// CONFIG_FILE, a .env file, process environment, command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/ingestion"
	"launchpad-index/internal/pricing"
	"launchpad-index/internal/query"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Duration is a time.Duration read from TOML strings such as "300ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Log       LogConfig               `toml:"log"`
	HTTP      HTTPConfig              `toml:"http"`
	Store     StoreConfig             `toml:"store"`
	Sources   map[string]SourceConfig `toml:"sources"`
	Pricing   PricingConfig           `toml:"pricing"`
	Query     QueryConfig             `toml:"query"`
	Scheduler SchedulerConfig         `toml:"scheduler"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type HTTPConfig struct {
	Addr       string `toml:"addr"`
	CronSecret string `toml:"cron_secret"`
}

type StoreConfig struct {
	Backend       string `toml:"backend"`
	PostgresDSN   string `toml:"postgres_dsn"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	ClickHouseDSN string `toml:"clickhouse_dsn"` // empty keeps snapshots in memory
}

type SourceConfig struct {
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"`
	MaxPages   int      `toml:"max_pages"`
	PageSize   int      `toml:"page_size"`
	PageDelay  Duration `toml:"page_delay"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

type PricingConfig struct {
	BaseURL    string   `toml:"base_url"`
	ChainID    string   `toml:"chain_id"`
	BatchSize  int      `toml:"batch_size"`
	BatchPause Duration `toml:"batch_pause"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
	EthUSD     float64  `toml:"eth_usd"`
}

type QueryConfig struct {
	CacheSize int      `toml:"cache_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

type SchedulerConfig struct {
	Enabled       bool     `toml:"enabled"`
	SyncInterval  Duration `toml:"sync_interval"`
	PriceInterval Duration `toml:"price_interval"`
	MaxConcurrent int      `toml:"max_concurrent"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend:       BackendMemory,
			MongoDatabase: "launchpad_index",
		},
		Sources: map[string]SourceConfig{},
		Pricing: PricingConfig{
			BaseURL:    pricing.DefaultBaseURL,
			ChainID:    pricing.DefaultChainID,
			BatchSize:  pricing.DefaultBatchSize,
			BatchPause: Duration{pricing.DefaultBatchPause},
		},
		Query: QueryConfig{
			CacheSize: query.DefaultCacheSize,
			CacheTTL:  Duration{query.DefaultCacheTTL},
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SyncInterval:  Duration{15 * time.Minute},
			PriceInterval: Duration{5 * time.Minute},
			MaxConcurrent: 3,
		},
	}
}

// Load builds the configuration for a binary. args are the command-line
// arguments without the program name; unknown flags are an error.
// extra registers binary-specific flags on the same flag set.
func Load(name string, args []string, extra ...func(*flag.FlagSet)) (*Config, error) {
	// A missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFile overlays a TOML file on cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg. Per-source settings use
// the upper-case source tag as prefix, e.g. CLANKER_API_URL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	e.str("HTTP_ADDR", &c.HTTP.Addr)
	e.str("CRON_SECRET", &c.HTTP.CronSecret)

	e.str("STORE_BACKEND", &c.Store.Backend)
	e.str("POSTGRES_DSN", &c.Store.PostgresDSN)
	e.str("MONGO_URI", &c.Store.MongoURI)
	e.str("MONGO_DATABASE", &c.Store.MongoDatabase)
	e.str("CLICKHOUSE_DSN", &c.Store.ClickHouseDSN)

	if c.Sources == nil {
		c.Sources = map[string]SourceConfig{}
	}
	for _, source := range domain.AllSources {
		prefix := strings.ToUpper(source.String()) + "_"
		sc := c.Sources[source.String()]
		before := sc
		e.str(prefix+"API_URL", &sc.BaseURL)
		e.str(prefix+"API_KEY", &sc.APIKey)
		e.integer(prefix+"MAX_PAGES", &sc.MaxPages)
		e.integer(prefix+"PAGE_SIZE", &sc.PageSize)
		e.duration(prefix+"PAGE_DELAY", &sc.PageDelay)
		e.duration(prefix+"TIMEOUT", &sc.Timeout)
		e.integer(prefix+"MAX_RETRIES", &sc.MaxRetries)
		if sc != before {
			c.Sources[source.String()] = sc
		}
	}

	e.str("PRICE_API_URL", &c.Pricing.BaseURL)
	e.str("PRICE_CHAIN_ID", &c.Pricing.ChainID)
	e.integer("PRICE_BATCH_SIZE", &c.Pricing.BatchSize)
	e.duration("PRICE_BATCH_PAUSE", &c.Pricing.BatchPause)
	e.duration("PRICE_TIMEOUT", &c.Pricing.Timeout)
	e.integer("PRICE_MAX_RETRIES", &c.Pricing.MaxRetries)
	e.float("ETH_USD", &c.Pricing.EthUSD)

	e.integer("QUERY_CACHE_SIZE", &c.Query.CacheSize)
	e.duration("QUERY_CACHE_TTL", &c.Query.CacheTTL)

	e.boolean("SCHEDULER_ENABLED", &c.Scheduler.Enabled)
	e.duration("SYNC_INTERVAL", &c.Scheduler.SyncInterval)
	e.duration("PRICE_INTERVAL", &c.Scheduler.PriceInterval)
	e.integer("SYNC_MAX_CONCURRENT", &c.Scheduler.MaxConcurrent)

	return e.err
}

// RegisterFlags binds the most commonly overridden settings to fs.
// Flag defaults are the values already loaded.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.HTTP.Addr, "http-addr", c.HTTP.Addr, "HTTP listen address")
	fs.StringVar(&c.Store.Backend, "store", c.Store.Backend, "Record store backend (memory, postgres, mongo)")
	fs.StringVar(&c.Store.PostgresDSN, "postgres-dsn", c.Store.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&c.Store.MongoURI, "mongo-uri", c.Store.MongoURI, "MongoDB connection URI")
	fs.StringVar(&c.Store.ClickHouseDSN, "clickhouse-dsn", c.Store.ClickHouseDSN, "ClickHouse connection string for price history")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level")
	fs.DurationVar(&c.Scheduler.SyncInterval.Duration, "sync-interval", c.Scheduler.SyncInterval.Duration, "Source sync interval")
	fs.DurationVar(&c.Scheduler.PriceInterval.Duration, "price-interval", c.Scheduler.PriceInterval.Duration, "Price refresh interval")
	fs.BoolVar(&c.Scheduler.Enabled, "scheduler", c.Scheduler.Enabled, "Run syncs and refreshes in-process")
	fs.Float64Var(&c.Pricing.EthUSD, "eth-usd", c.Pricing.EthUSD, "ETH/USD rate for ETH-denominated listings (0 drops them)")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("config: postgres backend requires POSTGRES_DSN")
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("config: mongo backend requires MONGO_URI")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	for name := range c.Sources {
		if !domain.Source(name).IsValid() {
			return fmt.Errorf("config: unknown source %q", name)
		}
	}
	if c.Pricing.EthUSD < 0 {
		return errors.New("config: eth_usd must not be negative")
	}
	if c.Scheduler.Enabled && (c.Scheduler.SyncInterval.Duration <= 0 || c.Scheduler.PriceInterval.Duration <= 0) {
		return errors.New("config: scheduler intervals must be positive")
	}
	return nil
}

// AdapterSettings converts the per-source settings for ingestion.Build.
func (c *Config) AdapterSettings() ingestion.Settings {
	settings := make(ingestion.Settings, len(c.Sources))
	for name, sc := range c.Sources {
		settings[domain.Source(name)] = ingestion.Config{
			BaseURL:    sc.BaseURL,
			APIKey:     sc.APIKey,
			MaxPages:   sc.MaxPages,
			PageSize:   sc.PageSize,
			PageDelay:  sc.PageDelay.Duration,
			Timeout:    sc.Timeout.Duration,
			MaxRetries: sc.MaxRetries,
		}
	}
	return settings
}

// QuoteClient returns the price API client settings.
func (c *Config) QuoteClient() pricing.ClientConfig {
	return pricing.ClientConfig{
		BaseURL:    c.Pricing.BaseURL,
		Timeout:    c.Pricing.Timeout.Duration,
		MaxRetries: c.Pricing.MaxRetries,
	}
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		dst.Duration = d
	}
}
