package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/strikearb/internal/blob/s3"
	"github.com/alanyoungcy/strikearb/internal/cache/redis"
	"github.com/alanyoungcy/strikearb/internal/config"
	"github.com/alanyoungcy/strikearb/internal/crypto"
	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/executor"
	"github.com/alanyoungcy/strikearb/internal/metrics"
	"github.com/alanyoungcy/strikearb/internal/notify"
	"github.com/alanyoungcy/strikearb/internal/platform/kalshi"
	"github.com/alanyoungcy/strikearb/internal/pricing"
	"github.com/alanyoungcy/strikearb/internal/refprice"
	"github.com/alanyoungcy/strikearb/internal/retry"
	"github.com/alanyoungcy/strikearb/internal/service"
	"github.com/alanyoungcy/strikearb/internal/store/filestore"
	"github.com/alanyoungcy/strikearb/internal/store/postgres"
)

// Dependencies bundles everything a command needs. Optional parts are nil
// when their backend is not configured or the command does not use them.
type Dependencies struct {
	Kalshi  *kalshi.Client
	Catalog *service.CatalogService
	Prices  *service.PriceService
	Signals *service.SignalService
	Risk    *service.RiskService

	// Executor is only built for live cycles.
	Executor *executor.Executor

	State   *filestore.StateStore
	Journal *filestore.SnapshotLog
	Sinks   []domain.SnapshotSink
	Lock    domain.LockManager

	Blob     *s3blob.Writer
	Metrics  *metrics.Cycle
	Notifier *notify.Notifier

	Retry retry.Policy
}

// WireOptions selects which optional parts Wire builds.
type WireOptions struct {
	// Live builds the signing client and the executor. It fails with
	// domain.ErrMissingCredentials when no credentials are configured.
	Live bool
	// Sinks connects the optional snapshot backends and the cycle lock.
	Sinks bool
	// Blob connects object storage even when it is not a snapshot sink.
	Blob bool
}

// Wire constructs the concrete implementations from cfg and returns them with
// a cleanup function that releases connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts WireOptions) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Duration,
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.Retry.MaxDelay.Duration,
		Logger:      logger,
	}
	deps := &Dependencies{Retry: policy}

	// --- Venue ---
	deps.Kalshi = kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey,
		kalshi.WithTimeout(cfg.Kalshi.Timeout.Duration),
		kalshi.WithLogger(logger),
	)
	if opts.Live {
		if err := cfg.ValidateLive(); err != nil {
			return fail(err)
		}
		pemBytes, err := crypto.LoadKey(crypto.KeyConfig{
			PEMPath:          cfg.Kalshi.RsaPrivateKeyPath,
			EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
			KeyPassword:      cfg.Kalshi.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: kalshi key: %w", err))
		}
		if err := deps.Kalshi.SetRSAPrivateKey(pemBytes); err != nil {
			return fail(fmt.Errorf("wire: kalshi key: %w", err))
		}
	}

	// --- Services ---
	underlyings := make(map[string]string, len(cfg.Series))
	for _, s := range cfg.Series {
		underlyings[s.Ticker] = s.Underlying
	}
	deps.Catalog = service.NewCatalogService(deps.Kalshi, service.CatalogConfig{
		PageLimit:   cfg.Kalshi.PageLimit,
		MaxPages:    cfg.Kalshi.MaxPages,
		MinHorizon:  cfg.Cycle.MinHorizon.Duration,
		Underlyings: underlyings,
	}, policy, logger)

	deps.Prices = service.NewPriceService(priceSources(cfg), service.PriceConfig{
		Quorum:        cfg.Reference.Quorum,
		Tolerance:     cfg.Reference.Tolerance,
		SourceTimeout: cfg.Reference.SourceTimeout.Duration,
	}, policy, logger)

	deps.Signals = service.NewSignalService(service.SignalConfig{
		MinEdgeBps: cfg.Signal.MinEdgeBps,
		Vols: pricing.VolTable{
			Default:       cfg.Pricing.DefaultVolatility,
			PerUnderlying: cfg.Pricing.Volatility,
		},
	}, logger)

	deps.Risk = service.NewRiskService(service.RiskConfig{
		KillSwitchPath:    cfg.Risk.KillSwitchPath,
		PerMarketCap:      cfg.Risk.PerMarketCap,
		PerRunOrderCap:    cfg.Risk.PerRunOrderCap,
		PerRunNotionalCap: cfg.Risk.PerRunNotionalCap,
		MaxOrderSize:      cfg.Risk.MaxOrderSize,
	}, logger)

	// --- Local state ---
	deps.State = filestore.NewStateStore(cfg.State.RiskStatePath())
	deps.Journal = filestore.NewSnapshotLog(cfg.State.SnapshotPath())

	if opts.Live {
		deps.Executor = executor.NewExecutor(deps.Kalshi, deps.Risk, deps.State,
			cfg.Execution.Timeout.Duration, policy, logger)
	}

	deps.Metrics = metrics.NewCycle()
	deps.Notifier = notify.NewNotifier(senders(cfg), cfg.Notify.Events, logger)

	if !opts.Sinks && !opts.Blob {
		return deps, cleanup, nil
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Blob = s3blob.NewWriter(s3Client)
		if opts.Sinks {
			deps.Sinks = append(deps.Sinks, s3blob.NewSnapshotSink(deps.Blob))
		}
	}

	if !opts.Sinks {
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Sinks = append(deps.Sinks, postgres.NewSnapshotStore(pgClient.Pool()))
	}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Cycle.LockBackend == "redis" || cfg.Redis.Stream != "" {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		redisClient = c
		if cfg.Redis.Stream != "" {
			deps.Sinks = append(deps.Sinks, redis.NewSnapshotStream(c, cfg.Redis.Stream))
		}
	}

	// --- Cycle lock ---
	switch cfg.Cycle.LockBackend {
	case "file":
		deps.Lock = filestore.NewFileLock(cfg.State.Dir)
	case "redis":
		deps.Lock = redis.NewLockManager(redisClient)
	}

	return deps, cleanup, nil
}

// priceSources builds the configured reference sources in configuration
// order. Validate has already rejected unknown names.
func priceSources(cfg *config.Config) []domain.PriceSource {
	timeout := cfg.Reference.SourceTimeout.Duration
	var out []domain.PriceSource
	for _, name := range cfg.Reference.Sources {
		switch name {
		case "coinbase":
			out = append(out, refprice.NewCoinbase(cfg.Reference.Coinbase.BaseURL, timeout, cfg.Reference.Coinbase.SymbolMap))
		case "kraken":
			out = append(out, refprice.NewKraken(cfg.Reference.Kraken.BaseURL, timeout, cfg.Reference.Kraken.SymbolMap))
		case "binance":
			out = append(out, refprice.NewBinance(cfg.Reference.Binance.BaseURL, timeout, cfg.Reference.Binance.SymbolMap))
		}
	}
	return out
}

func senders(cfg *config.Config) []notify.Sender {
	var out []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return out
}
