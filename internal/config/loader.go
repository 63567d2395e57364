package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STRIKEARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STRIKEARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "STRIKEARB_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "STRIKEARB_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "STRIKEARB_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "STRIKEARB_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "STRIKEARB_KALSHI_KEY_PASSWORD")
	setDuration(&cfg.Kalshi.Timeout, "STRIKEARB_KALSHI_TIMEOUT")
	setInt(&cfg.Kalshi.PageLimit, "STRIKEARB_KALSHI_PAGE_LIMIT")
	setInt(&cfg.Kalshi.MaxPages, "STRIKEARB_KALSHI_MAX_PAGES")

	// ── Reference ──
	setStringSlice(&cfg.Reference.Sources, "STRIKEARB_REFERENCE_SOURCES")
	setInt(&cfg.Reference.Quorum, "STRIKEARB_REFERENCE_QUORUM")
	setFloat64(&cfg.Reference.Tolerance, "STRIKEARB_REFERENCE_TOLERANCE")
	setDuration(&cfg.Reference.SourceTimeout, "STRIKEARB_REFERENCE_SOURCE_TIMEOUT")

	// ── Pricing / signal ──
	setFloat64(&cfg.Pricing.DefaultVolatility, "STRIKEARB_PRICING_DEFAULT_VOLATILITY")
	setFloat64(&cfg.Signal.MinEdgeBps, "STRIKEARB_SIGNAL_MIN_EDGE_BPS")

	// ── Risk ──
	setStr(&cfg.Risk.KillSwitchPath, "STRIKEARB_RISK_KILL_SWITCH_PATH")
	setFloat64(&cfg.Risk.PerMarketCap, "STRIKEARB_RISK_PER_MARKET_CAP")
	setInt(&cfg.Risk.PerRunOrderCap, "STRIKEARB_RISK_PER_RUN_ORDER_CAP")
	setFloat64(&cfg.Risk.PerRunNotionalCap, "STRIKEARB_RISK_PER_RUN_NOTIONAL_CAP")
	setInt64(&cfg.Risk.MaxOrderSize, "STRIKEARB_RISK_MAX_ORDER_SIZE")

	// ── Execution ──
	setBool(&cfg.Execution.Live, "STRIKEARB_EXECUTION_LIVE")
	setInt64(&cfg.Execution.OrderSize, "STRIKEARB_EXECUTION_ORDER_SIZE")
	setDuration(&cfg.Execution.Timeout, "STRIKEARB_EXECUTION_TIMEOUT")

	// ── Retry ──
	setInt(&cfg.Retry.MaxAttempts, "STRIKEARB_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.BaseDelay, "STRIKEARB_RETRY_BASE_DELAY")
	setFloat64(&cfg.Retry.Multiplier, "STRIKEARB_RETRY_MULTIPLIER")
	setDuration(&cfg.Retry.MaxDelay, "STRIKEARB_RETRY_MAX_DELAY")

	// ── Cycle / state ──
	setDuration(&cfg.Cycle.Interval, "STRIKEARB_CYCLE_INTERVAL")
	setDuration(&cfg.Cycle.MinHorizon, "STRIKEARB_CYCLE_MIN_HORIZON")
	setStr(&cfg.Cycle.LockBackend, "STRIKEARB_CYCLE_LOCK_BACKEND")
	setDuration(&cfg.Cycle.LockTTL, "STRIKEARB_CYCLE_LOCK_TTL")
	setStr(&cfg.State.Dir, "STRIKEARB_STATE_DIR")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "STRIKEARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "STRIKEARB_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "STRIKEARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STRIKEARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STRIKEARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STRIKEARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STRIKEARB_REDIS_PASSWORD")
	setStr(&cfg.Redis.Stream, "STRIKEARB_REDIS_STREAM")
	setInt(&cfg.Redis.DB, "STRIKEARB_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "STRIKEARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "STRIKEARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STRIKEARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STRIKEARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "STRIKEARB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "STRIKEARB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "STRIKEARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STRIKEARB_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "STRIKEARB_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STRIKEARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STRIKEARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STRIKEARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STRIKEARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Metrics.TextfilePath, "STRIKEARB_METRICS_TEXTFILE_PATH")
	setStr(&cfg.LogLevel, "STRIKEARB_LOG_LEVEL")
	setStr(&cfg.LogFile, "STRIKEARB_LOG_FILE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
