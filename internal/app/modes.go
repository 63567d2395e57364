package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/strikearb/internal/blob/s3"
	"github.com/alanyoungcy/strikearb/internal/cycle"
	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/notify"
)

// ErrNotAmbiguous is returned by Resolve for a ledger entry that is not
// awaiting reconciliation.
var ErrNotAmbiguous = errors.New("app: order is not ambiguous")

// ErrUnknownOrder is returned by Resolve when the key is not in the ledger.
var ErrUnknownOrder = errors.New("app: no ledger entry for key")

// ErrBlobDisabled is returned by Archive when object storage is not enabled.
var ErrBlobDisabled = errors.New("app: s3 is not enabled")

func (a *App) newRunner(deps *Dependencies, live bool) *cycle.Runner {
	series := make([]string, 0, len(a.cfg.Series))
	for _, s := range a.cfg.Series {
		series = append(series, s.Ticker)
	}

	d := cycle.Deps{
		Catalog: deps.Catalog,
		Quotes:  deps.Kalshi,
		Prices:  deps.Prices,
		Signals: deps.Signals,
		Risk:    deps.Risk,
		Store:   deps.State,
		Journal: deps.Journal,
		Sinks:   deps.Sinks,
		Lock:    deps.Lock,
		Metrics: deps.Metrics,
	}
	if live && deps.Executor != nil {
		d.Executor = deps.Executor
	}
	if deps.Kalshi.CanTrade() {
		d.Portfolio = deps.Kalshi
	}
	if deps.Notifier.Enabled() {
		d.Reporter = deps.Notifier
	}

	return cycle.NewRunner(cycle.Config{
		Series:          series,
		Interval:        a.cfg.Cycle.Interval.Duration,
		OrderSize:       a.cfg.Execution.OrderSize,
		LockTTL:         a.cfg.Cycle.LockTTL.Duration,
		LedgerRetention: a.cfg.Cycle.LedgerRetention.Duration,
		RecentFills:     a.cfg.Cycle.RecentFills,
		MetricsPath:     a.cfg.Metrics.TextfilePath,
	}, d, deps.Retry, a.logger)
}

// Scan prices every open market and returns the report without loading or
// writing any state.
func (a *App) Scan(ctx context.Context) (cycle.ScanReport, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, WireOptions{})
	if err != nil {
		return cycle.ScanReport{}, fmt.Errorf("app: wire: %w", err)
	}
	a.onClose(cleanup)

	return a.newRunner(deps, false).Scan(ctx)
}

// Trade runs one full cycle. It is a dry run unless live is requested by the
// caller or by execution.live.
func (a *App) Trade(ctx context.Context, opts cycle.TradeOptions) (domain.PortfolioSnapshot, error) {
	opts.Live = opts.Live || a.cfg.Execution.Live

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, WireOptions{Live: opts.Live, Sinks: true})
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("app: wire: %w", err)
	}
	a.onClose(cleanup)

	a.logger.InfoContext(ctx, "app: trade cycle starting",
		slog.Bool("live", opts.Live),
		slog.Int("sinks", len(deps.Sinks)),
	)
	return a.newRunner(deps, opts.Live).Trade(ctx, opts)
}

// Resolve records the operator's verdict on an ambiguous order. A confirmed
// order's notional is booked into the market's exposure; a failed order
// books nothing. Either way the market is no longer suspended.
func (a *App) Resolve(ctx context.Context, key string, status domain.OrderStatus) (domain.Order, error) {
	if status != domain.OrderStatusConfirmed && status != domain.OrderStatusFailed {
		return domain.Order{}, fmt.Errorf("app: resolve: status must be confirmed or failed, got %q", status)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, WireOptions{Sinks: true})
	if err != nil {
		return domain.Order{}, fmt.Errorf("app: wire: %w", err)
	}
	a.onClose(cleanup)

	if deps.Lock != nil {
		unlock, err := deps.Lock.Acquire(ctx, "cycle.lock", a.cfg.Cycle.LockTTL.Duration)
		if err != nil {
			return domain.Order{}, fmt.Errorf("app: resolve: %w", err)
		}
		defer unlock()
	}

	state, err := deps.State.Load(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("app: resolve: %w", err)
	}
	o, ok := state.Ledger[key]
	if !ok {
		return domain.Order{}, fmt.Errorf("app: resolve %s: %w", key, ErrUnknownOrder)
	}
	if o.Status != domain.OrderStatusAmbiguous {
		return o, fmt.Errorf("app: resolve %s is %s: %w", key, o.Status, ErrNotAmbiguous)
	}

	o.Status = status
	o.Message = "resolved by operator"
	o.UpdatedAt = time.Now().UTC()
	state.Ledger[key] = o
	if status == domain.OrderStatusConfirmed {
		// Run counters are reset when the next cycle id starts; only the
		// exposure carries over.
		deps.Risk.Commit(state, o)
	}
	state.UpdatedAt = o.UpdatedAt

	if err := deps.State.Save(ctx, state); err != nil {
		return domain.Order{}, fmt.Errorf("app: resolve: %w", err)
	}

	a.logger.InfoContext(ctx, "app: ambiguous order resolved",
		slog.String("key", key),
		slog.String("market", o.MarketID),
		slog.String("status", string(status)),
	)
	if deps.Notifier.Enabled() {
		msg := fmt.Sprintf("%s %s x%d @ %.2f resolved %s", o.MarketID, o.Side, o.Size, o.LimitPrice, status)
		if err := deps.Notifier.Notify(ctx, notify.EventAmbiguousOrder, "Ambiguous order resolved", msg); err != nil {
			a.logger.WarnContext(ctx, "app: notification failed", slog.String("error", err.Error()))
		}
	}
	return o, nil
}

// Archive uploads the snapshot history and a copy of the risk state to
// object storage.
func (a *App) Archive(ctx context.Context) (s3blob.ArchiveResult, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, WireOptions{Blob: true})
	if err != nil {
		return s3blob.ArchiveResult{}, fmt.Errorf("app: wire: %w", err)
	}
	a.onClose(cleanup)

	if deps.Blob == nil {
		return s3blob.ArchiveResult{}, ErrBlobDisabled
	}
	return s3blob.NewArchiver(deps.Blob, deps.Journal, deps.State.Path(), a.logger).Run(ctx)
}
