package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/pricing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, pricing.DefaultChainID, cfg.Pricing.ChainID)
	assert.Equal(t, pricing.DefaultBatchSize, cfg.Pricing.BatchSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Pricing.BatchPause.Duration)
	assert.Empty(t, cfg.AdapterSettings())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[http]
addr = ":9000"

[store]
backend = "postgres"
postgres_dsn = "postgres://localhost/idx"

[sources.clanker]
base_url = "https://clanker.example"
max_pages = 5
page_delay = "1s"

[pricing]
batch_pause = "750ms"
eth_usd = 3200.5
`)
	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Pricing.BatchPause.Duration)
	assert.Equal(t, 3200.5, cfg.Pricing.EthUSD)
	assert.Equal(t, pricing.DefaultChainID, cfg.Pricing.ChainID, "untouched defaults survive")

	settings := cfg.AdapterSettings()
	require.Contains(t, settings, domain.SourceClanker)
	assert.Equal(t, "https://clanker.example", settings[domain.SourceClanker].BaseURL)
	assert.Equal(t, 5, settings[domain.SourceClanker].MaxPages)
	assert.Equal(t, time.Second, settings[domain.SourceClanker].PageDelay)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
	assert.Error(t, cfg.LoadFile(writeFile(t, "[pricing]\nbatch_pause = \"soon\"\n")))
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.LoadFile(writeFile(t, `
[sources.doppler]
base_url = "https://file.example"
max_pages = 3
`)))

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"DOPPLER_API_URL":   "https://env.example",
		"MOLTBOOK_API_URL":  "https://moltbook.example",
		"MOLTBOOK_TIMEOUT":  "15s",
		"CRON_SECRET":       "abc",
		"PRICE_BATCH_PAUSE": "-1s",
		"SCHEDULER_ENABLED": "false",
		"LOG_LEVEL":         "  ",
	})))

	assert.Equal(t, "https://env.example", cfg.Sources["doppler"].BaseURL)
	assert.Equal(t, 3, cfg.Sources["doppler"].MaxPages)
	assert.Equal(t, 15*time.Second, cfg.Sources["moltbook"].Timeout.Duration)
	assert.Equal(t, "abc", cfg.HTTP.CronSecret)
	assert.Equal(t, -time.Second, cfg.Pricing.BatchPause.Duration)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "info", cfg.Log.Level, "blank values are ignored")
	assert.NotContains(t, cfg.Sources, "clanker", "unset sources stay absent")
}

func TestApplyEnvBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"PRICE_BATCH_SIZE": "five"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRICE_BATCH_SIZE")
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"HTTP_ADDR": ":7000"})))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-http-addr", ":7100", "-sync-interval", "1m"}))

	assert.Equal(t, ":7100", cfg.HTTP.Addr)
	assert.Equal(t, time.Minute, cfg.Scheduler.SyncInterval.Duration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"mongo without uri", func(c *Config) { c.Store.Backend = BackendMongo }},
		{"unknown source", func(c *Config) { c.Sources["myspace"] = SourceConfig{BaseURL: "x"} }},
		{"negative eth", func(c *Config) { c.Pricing.EthUSD = -1 }},
		{"zero interval", func(c *Config) { c.Scheduler.PriceInterval.Duration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", writeFile(t, "[http]\naddr = \":1111\"\n"))
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CLANKER_API_URL", "https://clanker.example")

	cfg, err := Load("server", []string{"-eth-usd", "2500"})
	require.NoError(t, err)
	assert.Equal(t, ":1111", cfg.HTTP.Addr)
	assert.Equal(t, 2500.0, cfg.Pricing.EthUSD)
	assert.Equal(t, "https://clanker.example", cfg.Sources["clanker"].BaseURL)
}
