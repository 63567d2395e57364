package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

const sampleTOML = `
log_level = "debug"

[kalshi]
api_key = "key-id"
rsa_private_key_path = "/secrets/kalshi.pem"
max_pages = 3

[[series]]
ticker = "KXBTCD"
underlying = "BTC-USD"

[[series]]
ticker = "KXBTC"
underlying = "BTC-USD"

[[series]]
ticker = "KXETHD"
underlying = "ETH-USD"

[reference]
sources = ["coinbase", "kraken"]
tolerance = 0.01
source_timeout = "2s"

[reference.kraken.symbol_map]
"BTC-USD" = "XBTUSD"

[pricing.volatility]
"ETH-USD" = 0.75

[cycle]
interval = "15m"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strikearb.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Kalshi.MaxPages)
	assert.Equal(t, 200, cfg.Kalshi.PageLimit)
	assert.Equal(t, []string{"coinbase", "kraken"}, cfg.Reference.Sources)
	assert.Equal(t, 2*time.Second, cfg.Reference.SourceTimeout.Duration)
	assert.Equal(t, "XBTUSD", cfg.Reference.Kraken.SymbolMap["BTC-USD"])
	assert.Equal(t, 0.75, cfg.Pricing.Volatility["ETH-USD"])
	assert.Equal(t, 0.6, cfg.Pricing.DefaultVolatility)
	assert.Equal(t, 15*time.Minute, cfg.Cycle.Interval.Duration)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Underlyings())
	assert.True(t, cfg.Kalshi.HasCredentials())
	assert.False(t, cfg.Execution.Live)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STRIKEARB_SIGNAL_MIN_EDGE_BPS", "75")
	t.Setenv("STRIKEARB_EXECUTION_LIVE", "true")
	t.Setenv("STRIKEARB_REFERENCE_SOURCES", "kraken, binance")
	t.Setenv("STRIKEARB_CYCLE_LOCK_TTL", "90s")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.Signal.MinEdgeBps)
	assert.True(t, cfg.Execution.Live)
	assert.Equal(t, []string{"kraken", "binance"}, cfg.Reference.Sources)
	assert.Equal(t, 90*time.Second, cfg.Cycle.LockTTL.Duration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Pricing.DefaultVolatility = 0
	cfg.Reference.Sources = []string{"coinbase", "bitstamp"}
	cfg.Reference.Quorum = 3
	cfg.Risk.PerRunOrderCap = 0
	cfg.Cycle.LockBackend = "etcd"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "series: at least one")
	assert.Contains(t, msg, "default_volatility must be > 0")
	assert.Contains(t, msg, `unknown source "bitstamp"`)
	assert.Contains(t, msg, "quorum 3 exceeds 2")
	assert.Contains(t, msg, "per_run_order_cap")
	assert.Contains(t, msg, `unknown lock_backend "etcd"`)
}

func TestValidate_LedgerRetentionCoversInterval(t *testing.T) {
	cfg := Defaults()
	cfg.Series = []SeriesConfig{{Ticker: "KXBTCD", Underlying: "BTC-USD"}}
	cfg.Cycle.Interval = duration{15 * time.Minute}

	cfg.Cycle.LedgerRetention = duration{time.Minute}
	require.Error(t, cfg.Validate())
	assert.Contains(t, cfg.Validate().Error(), "ledger_retention")

	cfg.Cycle.LedgerRetention = duration{}
	assert.NoError(t, cfg.Validate())

	cfg.Cycle.LedgerRetention = duration{15 * time.Minute}
	assert.NoError(t, cfg.Validate())
}

func TestValidateLive_RequiresCredentials(t *testing.T) {
	cfg := Defaults()
	assert.ErrorIs(t, cfg.ValidateLive(), domain.ErrMissingCredentials)

	cfg.Kalshi.ApiKey = "id"
	cfg.Kalshi.EncryptedKeyPath = "/secrets/key.enc.json"
	assert.NoError(t, cfg.ValidateLive())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Kalshi.ApiKey = "key-id"
	cfg.Kalshi.KeyPassword = "hunter2"
	cfg.S3.SecretKey = "secret"
	cfg.Pricing.Volatility["BTC-USD"] = 0.5

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Kalshi.ApiKey)
	assert.Equal(t, "***", out.Kalshi.KeyPassword)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "", out.S3.AccessKey)
	assert.Equal(t, "key-id", cfg.Kalshi.ApiKey)

	out.Pricing.Volatility["BTC-USD"] = 9
	assert.Equal(t, 0.5, cfg.Pricing.Volatility["BTC-USD"])
}

func TestStatePaths(t *testing.T) {
	s := StateConfig{Dir: "/var/lib/strikearb/"}
	assert.Equal(t, "/var/lib/strikearb/risk_state.json", s.RiskStatePath())
	assert.Equal(t, "/var/lib/strikearb/snapshots.jsonl", s.SnapshotPath())
	assert.Equal(t, "/var/lib/strikearb/cycle.lock", s.LockPath())
}
