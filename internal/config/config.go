// Package config defines the top-level configuration for the strike arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STRIKEARB_* environment variables.
type Config struct {
	Kalshi    KalshiConfig    `toml:"kalshi"`
	Series    []SeriesConfig  `toml:"series"`
	Reference ReferenceConfig `toml:"reference"`
	Pricing   PricingConfig   `toml:"pricing"`
	Signal    SignalConfig    `toml:"signal"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Retry     RetryConfig     `toml:"retry"`
	Cycle     CycleConfig     `toml:"cycle"`
	State     StateConfig     `toml:"state"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Metrics   MetricsConfig   `toml:"metrics"`
	LogLevel  string          `toml:"log_level"`
	LogFile   string          `toml:"log_file"`
}

// KalshiConfig holds Kalshi exchange endpoints and credentials.
type KalshiConfig struct {
	BaseURL           string   `toml:"base_url"`
	ApiKey            string   `toml:"api_key"`
	RsaPrivateKeyPath string   `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string   `toml:"encrypted_key_path"`
	KeyPassword       string   `toml:"key_password"`
	Timeout           duration `toml:"timeout"`
	PageLimit         int      `toml:"page_limit"`
	MaxPages          int      `toml:"max_pages"`
}

// HasCredentials reports whether enough is configured to sign requests.
func (k KalshiConfig) HasCredentials() bool {
	return k.ApiKey != "" && (k.RsaPrivateKeyPath != "" || k.EncryptedKeyPath != "")
}

// SeriesConfig ties a venue series to the underlying it references.
type SeriesConfig struct {
	Ticker     string `toml:"ticker"`
	Underlying string `toml:"underlying"`
}

// ReferenceConfig configures the spot price sources and reconciliation.
type ReferenceConfig struct {
	Sources       []string     `toml:"sources"`
	Quorum        int          `toml:"quorum"`
	Tolerance     float64      `toml:"tolerance"`
	SourceTimeout duration     `toml:"source_timeout"`
	Coinbase      SourceConfig `toml:"coinbase"`
	Kraken        SourceConfig `toml:"kraken"`
	Binance       SourceConfig `toml:"binance"`
}

// SourceConfig is the per-source endpoint and symbol mapping.
type SourceConfig struct {
	BaseURL   string            `toml:"base_url"`
	SymbolMap map[string]string `toml:"symbol_map"`
}

// PricingConfig holds annualised volatility assumptions.
type PricingConfig struct {
	DefaultVolatility float64            `toml:"default_volatility"`
	Volatility        map[string]float64 `toml:"volatility"`
}

// SignalConfig holds the edge threshold.
type SignalConfig struct {
	MinEdgeBps float64 `toml:"min_edge_bps"`
}

// RiskConfig holds the kill switch location and the hard caps. Notional
// caps are in dollars, size caps in contracts.
type RiskConfig struct {
	KillSwitchPath    string  `toml:"kill_switch_path"`
	PerMarketCap      float64 `toml:"per_market_cap"`
	PerRunOrderCap    int     `toml:"per_run_order_cap"`
	PerRunNotionalCap float64 `toml:"per_run_notional_cap"`
	MaxOrderSize      int64   `toml:"max_order_size"`
}

// ExecutionConfig controls live submission.
type ExecutionConfig struct {
	Live      bool     `toml:"live"`
	OrderSize int64    `toml:"order_size"`
	Timeout   duration `toml:"timeout"`
}

// RetryConfig is the bounded retry policy for every network call.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   duration `toml:"base_delay"`
	Multiplier  float64  `toml:"multiplier"`
	MaxDelay    duration `toml:"max_delay"`
}

// CycleConfig holds cadence, overlap protection and catalog horizon.
type CycleConfig struct {
	Interval        duration `toml:"interval"`
	MinHorizon      duration `toml:"min_horizon"`
	LockBackend     string   `toml:"lock_backend"`
	LockTTL         duration `toml:"lock_ttl"`
	LedgerRetention duration `toml:"ledger_retention"`
	RecentFills     int      `toml:"recent_fills"`
}

// StateConfig locates the durable state directory.
type StateConfig struct {
	Dir string `toml:"dir"`
}

// RiskStatePath returns the RiskState document path.
func (s StateConfig) RiskStatePath() string {
	return strings.TrimRight(s.Dir, "/") + "/risk_state.json"
}

// SnapshotPath returns the JSON-lines snapshot history path.
func (s StateConfig) SnapshotPath() string {
	return strings.TrimRight(s.Dir, "/") + "/snapshots.jsonl"
}

// LockPath returns the cycle lock file path.
func (s StateConfig) LockPath() string {
	return strings.TrimRight(s.Dir, "/") + "/cycle.lock"
}

// PostgresConfig holds the optional snapshot database.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the lock backend and
// the optional snapshot stream. An empty Stream disables the stream.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Stream     string `toml:"stream"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig locates the node-exporter textfile written after each cycle.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:   "https://api.elections.kalshi.com/trade-api/v2",
			Timeout:   duration{10 * time.Second},
			PageLimit: 200,
			MaxPages:  10,
		},
		Reference: ReferenceConfig{
			Sources:       []string{"coinbase", "kraken", "binance"},
			Quorum:        2,
			Tolerance:     0.005,
			SourceTimeout: duration{5 * time.Second},
			Coinbase:      SourceConfig{BaseURL: "https://api.coinbase.com"},
			Kraken:        SourceConfig{BaseURL: "https://api.kraken.com"},
			Binance:       SourceConfig{BaseURL: "wss://stream.binance.com:9443/ws"},
		},
		Pricing: PricingConfig{
			DefaultVolatility: 0.6,
			Volatility:        map[string]float64{},
		},
		Signal: SignalConfig{MinEdgeBps: 50},
		Risk: RiskConfig{
			KillSwitchPath:    "./state/KILL",
			PerMarketCap:      100,
			PerRunOrderCap:    5,
			PerRunNotionalCap: 250,
			MaxOrderSize:      100,
		},
		Execution: ExecutionConfig{
			Live:      false,
			OrderSize: 10,
			Timeout:   duration{10 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   duration{250 * time.Millisecond},
			Multiplier:  2,
			MaxDelay:    duration{2 * time.Second},
		},
		Cycle: CycleConfig{
			Interval:        duration{5 * time.Minute},
			MinHorizon:      duration{30 * time.Minute},
			LockBackend:     "file",
			LockTTL:         duration{10 * time.Minute},
			LedgerRetention: duration{7 * 24 * time.Hour},
			RecentFills:     20,
		},
		State: StateConfig{Dir: "./state"},
		Postgres: PostgresConfig{
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "strikearb",
			Prefix:         "snapshots",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"ambiguous_order", "kill_switch", "order_confirmed", "cycle_error"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownSources = map[string]bool{
	"coinbase": true,
	"kraken":   true,
	"binance":  true,
}

var validLockBackends = map[string]bool{
	"file":  true,
	"redis": true,
	"none":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Every problem reported here
// is fatal for a cycle.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.PageLimit < 1 || c.Kalshi.PageLimit > 1000 {
		errs = append(errs, fmt.Sprintf("kalshi: page_limit must be 1-1000, got %d", c.Kalshi.PageLimit))
	}
	if c.Kalshi.MaxPages < 1 {
		errs = append(errs, "kalshi: max_pages must be >= 1")
	}
	if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
		errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
	}

	// Series
	if len(c.Series) == 0 {
		errs = append(errs, "series: at least one [[series]] entry is required")
	}
	for i, s := range c.Series {
		if s.Ticker == "" || s.Underlying == "" {
			errs = append(errs, fmt.Sprintf("series[%d]: ticker and underlying must both be set", i))
		}
	}

	// Reference
	if len(c.Reference.Sources) == 0 {
		errs = append(errs, "reference: at least one source is required")
	}
	for _, s := range c.Reference.Sources {
		if !knownSources[s] {
			errs = append(errs, fmt.Sprintf("reference: unknown source %q (valid: coinbase, kraken, binance)", s))
		}
	}
	if c.Reference.Quorum < 1 {
		errs = append(errs, "reference: quorum must be >= 1")
	}
	if c.Reference.Quorum > len(c.Reference.Sources) {
		errs = append(errs, fmt.Sprintf("reference: quorum %d exceeds %d configured sources", c.Reference.Quorum, len(c.Reference.Sources)))
	}
	if c.Reference.Tolerance <= 0 {
		errs = append(errs, "reference: tolerance must be > 0")
	}
	if c.Reference.SourceTimeout.Duration <= 0 {
		errs = append(errs, "reference: source_timeout must be > 0")
	}

	// Pricing
	if !positiveFinite(c.Pricing.DefaultVolatility) {
		errs = append(errs, fmt.Sprintf("pricing: default_volatility must be > 0, got %v", c.Pricing.DefaultVolatility))
	}
	for u, v := range c.Pricing.Volatility {
		if !positiveFinite(v) {
			errs = append(errs, fmt.Sprintf("pricing: volatility for %s must be > 0, got %v", u, v))
		}
	}

	// Signal
	if c.Signal.MinEdgeBps < 0 {
		errs = append(errs, "signal: min_edge_bps must be >= 0")
	}

	// Risk
	if c.Risk.KillSwitchPath == "" {
		errs = append(errs, "risk: kill_switch_path must not be empty")
	}
	if c.Risk.PerMarketCap <= 0 {
		errs = append(errs, "risk: per_market_cap must be > 0")
	}
	if c.Risk.PerRunOrderCap < 1 {
		errs = append(errs, "risk: per_run_order_cap must be >= 1")
	}
	if c.Risk.PerRunNotionalCap <= 0 {
		errs = append(errs, "risk: per_run_notional_cap must be > 0")
	}
	if c.Risk.MaxOrderSize < 1 {
		errs = append(errs, "risk: max_order_size must be >= 1")
	}

	// Execution
	if c.Execution.OrderSize < 1 {
		errs = append(errs, "execution: order_size must be >= 1")
	}
	if c.Execution.Timeout.Duration <= 0 {
		errs = append(errs, "execution: timeout must be > 0")
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry: max_attempts must be >= 1")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry: multiplier must be >= 1")
	}

	// Cycle
	if c.Cycle.Interval.Duration <= 0 {
		errs = append(errs, "cycle: interval must be > 0")
	}
	if c.Cycle.MinHorizon.Duration < 0 {
		errs = append(errs, "cycle: min_horizon must be >= 0")
	}
	if !validLockBackends[c.Cycle.LockBackend] {
		errs = append(errs, fmt.Sprintf("cycle: unknown lock_backend %q (valid: file, redis, none)", c.Cycle.LockBackend))
	}
	if c.Cycle.LockTTL.Duration <= 0 {
		errs = append(errs, "cycle: lock_ttl must be > 0")
	}
	if r := c.Cycle.LedgerRetention.Duration; r < 0 || (r > 0 && r < c.Cycle.Interval.Duration) {
		errs = append(errs, "cycle: ledger_retention must be 0 or at least interval")
	}

	// State
	if c.State.Dir == "" {
		errs = append(errs, "state: dir must not be empty")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, "postgres: dsn must be set when enabled")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if (c.Cycle.LockBackend == "redis" || c.Redis.Stream != "") && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when lock_backend is redis or stream is set")
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateLive checks the extra requirements for live submission.
func (c *Config) ValidateLive() error {
	if !c.Kalshi.HasCredentials() {
		return fmt.Errorf("config: kalshi api_key and a private key path: %w", domain.ErrMissingCredentials)
	}
	return nil
}

// Underlyings returns the distinct underlyings across configured series in
// configuration order.
func (c *Config) Underlyings() []string {
	seen := make(map[string]bool, len(c.Series))
	var out []string
	for _, s := range c.Series {
		if !seen[s.Underlying] {
			seen[s.Underlying] = true
			out = append(out, s.Underlying)
		}
	}
	return out
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
