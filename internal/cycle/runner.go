// Package cycle runs one scan or trade cycle end to end: catalog, reference
// prices, pricing, signals, risk gating, execution and the snapshot.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/executor"
	"github.com/alanyoungcy/strikearb/internal/retry"
	"github.com/alanyoungcy/strikearb/internal/service"
)

// State is a step of the cycle state machine.
type State string

const (
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
	StatePricing      State = "pricing"
	StateSignaling    State = "signaling"
	StateRiskGating   State = "risk_gating"
	StateExecuting    State = "executing"
	StateSnapshotting State = "snapshotting"
)

// Catalog lists priceable markets for a series.
type Catalog interface {
	OpenMarkets(ctx context.Context, series string) ([]domain.Market, []domain.SkippedMarket, error)
}

// Aggregator reconciles one reference price per underlying.
type Aggregator interface {
	Reconcile(ctx context.Context, underlying string) (domain.ReferencePrice, error)
}

// SignalGenerator turns a market, price and quote into a Signal.
type SignalGenerator interface {
	Generate(m domain.Market, ref domain.ReferencePrice, q domain.Quote, now time.Time) (domain.Signal, error)
}

// RiskManager gates candidates and books outcomes.
type RiskManager interface {
	KillSwitchActive() bool
	Check(ctx context.Context, state *domain.RiskState, c domain.Candidate) *domain.Rejection
	Reserve(state *domain.RiskState, c domain.Candidate)
}

// OrderExecutor submits approved candidates.
type OrderExecutor interface {
	Execute(ctx context.Context, state *domain.RiskState, cycleID string, c domain.Candidate) (domain.Order, error)
}

// Reporter receives the finished snapshot for alerting.
type Reporter interface {
	CycleReport(ctx context.Context, snap domain.PortfolioSnapshot) error
}

// MetricsWriter exports the finished snapshot.
type MetricsWriter interface {
	Observe(snap domain.PortfolioSnapshot)
	WriteTextfile(path string) error
}

// Config tunes the runner.
type Config struct {
	Series          []string
	Interval        time.Duration
	OrderSize       int64
	LockKey         string
	LockTTL         time.Duration
	LedgerRetention time.Duration
	RecentFills     int
	MetricsPath     string
}

// Deps are the runner's collaborators. Executor, Lock, Portfolio, Metrics
// and Reporter are optional.
type Deps struct {
	Catalog   Catalog
	Quotes    domain.Venue
	Prices    Aggregator
	Signals   SignalGenerator
	Risk      RiskManager
	Executor  OrderExecutor
	Store     domain.StateStore
	Journal   domain.SnapshotSink
	Sinks     []domain.SnapshotSink
	Lock      domain.LockManager
	Portfolio domain.PortfolioReader
	Metrics   MetricsWriter
	Reporter  Reporter
}

// TradeOptions select the mode of one trade cycle.
type TradeOptions struct {
	Live    bool
	CycleID string
}

// ScanReport is the read-only output of Scan.
type ScanReport struct {
	GeneratedAt     time.Time               `json:"generated_at"`
	MarketsScanned  int                     `json:"markets_scanned"`
	ReferencePrices []domain.ReferencePrice `json:"reference_prices"`
	Signals         []domain.Signal         `json:"signals"`
	Skipped         []domain.SkippedMarket  `json:"skipped"`
	Errors          []string                `json:"errors,omitempty"`
}

// Runner executes cycles. It is not safe for concurrent use; overlapping
// processes are kept apart by the cycle lock.
type Runner struct {
	cfg    Config
	deps   Deps
	retry  retry.Policy
	logger *slog.Logger
	now    func() time.Time
	state  State
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, deps Deps, policy retry.Policy, logger *slog.Logger) *Runner {
	if cfg.LockKey == "" {
		cfg.LockKey = "cycle.lock"
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		retry:  policy,
		logger: logger.With(slog.String("component", "cycle")),
		now:    time.Now,
		state:  StateIdle,
	}
}

// State returns the current step.
func (r *Runner) State() State { return r.state }

func (r *Runner) enter(ctx context.Context, s State) {
	if r.state != s {
		r.logger.DebugContext(ctx, "cycle: state", slog.String("from", string(r.state)), slog.String("to", string(s)))
	}
	r.state = s
}

// CycleID derives the id for a cycle started at t: the UTC start of its
// interval slot, so a retried invocation in the same slot reuses the id.
func CycleID(t time.Time, interval time.Duration) string {
	t = t.UTC()
	if interval > 0 {
		t = t.Truncate(interval)
	}
	return t.Format("20060102T1504Z")
}

// IsFatalConfig reports whether err aborts a cycle because of configuration
// rather than runtime state.
func IsFatalConfig(err error) bool {
	return errors.Is(err, domain.ErrInvalidVolatility) ||
		errors.Is(err, domain.ErrNoSources) ||
		errors.Is(err, domain.ErrMissingCredentials)
}

// candidateFunc is called for every actionable signal during evaluation. A
// returned error aborts the cycle.
type candidateFunc func(ctx context.Context, sig domain.Signal) error

type evaluation struct {
	marketsScanned int
	refs           []domain.ReferencePrice
	signals        []domain.Signal
	skipped        []domain.SkippedMarket
	errs           []string
}

// evaluate runs Scanning, Pricing and Signaling. Each underlying is
// reconciled once, before any of its markets is priced, and that price is
// reused for all of them. Per-market failures are recorded as skipped.
func (r *Runner) evaluate(ctx context.Context, now time.Time, onCandidate candidateFunc) (*evaluation, error) {
	ev := &evaluation{}

	r.enter(ctx, StateScanning)
	byUnderlying := make(map[string][]domain.Market)
	var order []string
	for _, s := range r.cfg.Series {
		markets, skipped, err := r.deps.Catalog.OpenMarkets(ctx, s)
		ev.skipped = append(ev.skipped, skipped...)
		ev.marketsScanned += len(markets) + len(skipped)
		if err != nil {
			r.logger.ErrorContext(ctx, "cycle: catalog failed", slog.String("series", s), slog.String("error", err.Error()))
			ev.errs = append(ev.errs, err.Error())
		}
		for _, m := range markets {
			if _, seen := byUnderlying[m.Underlying]; !seen {
				order = append(order, m.Underlying)
			}
			byUnderlying[m.Underlying] = append(byUnderlying[m.Underlying], m)
		}
	}

	for _, underlying := range order {
		if err := ctx.Err(); err != nil {
			return ev, fmt.Errorf("cycle: %w", err)
		}

		r.enter(ctx, StatePricing)
		ref, err := r.deps.Prices.Reconcile(ctx, underlying)
		if err != nil {
			return ev, fmt.Errorf("cycle: reconcile %s: %w", underlying, err)
		}
		ev.refs = append(ev.refs, ref)

		markets := byUnderlying[underlying]
		if !ref.Reliable {
			for _, m := range markets {
				ev.skipped = append(ev.skipped, domain.SkippedMarket{
					MarketID: m.ID, Stage: "pricing", Reason: "reference price unreliable: " + ref.Reason,
				})
			}
			continue
		}

		for _, m := range markets {
			r.enter(ctx, StateSignaling)
			q, err := retry.Value(ctx, r.retry, "quote "+m.ID, func(ctx context.Context) (domain.Quote, error) {
				return r.deps.Quotes.GetQuote(ctx, m.ID)
			})
			if err != nil {
				r.logger.WarnContext(ctx, "cycle: quote failed", slog.String("market", m.ID), slog.String("error", err.Error()))
				ev.skipped = append(ev.skipped, domain.SkippedMarket{MarketID: m.ID, Stage: "quote", Reason: err.Error()})
				continue
			}

			sig, err := r.deps.Signals.Generate(m, ref, q, now)
			if err != nil {
				if IsFatalConfig(err) {
					return ev, fmt.Errorf("cycle: price %s: %w", m.ID, err)
				}
				r.logger.WarnContext(ctx, "cycle: pricing failed", slog.String("market", m.ID), slog.String("error", err.Error()))
				ev.skipped = append(ev.skipped, domain.SkippedMarket{MarketID: m.ID, Stage: "signal", Reason: err.Error()})
				continue
			}
			ev.signals = append(ev.signals, sig)

			if onCandidate != nil && sig.Action.Actionable() {
				if err := onCandidate(ctx, sig); err != nil {
					return ev, err
				}
			}
		}
	}
	return ev, nil
}

// Scan runs the read-only half of a cycle. It never takes the lock, loads
// state, gates, or places orders.
func (r *Runner) Scan(ctx context.Context) (ScanReport, error) {
	now := r.now().UTC()
	defer r.enter(ctx, StateIdle)

	ev, err := r.evaluate(ctx, now, nil)
	report := ScanReport{
		GeneratedAt:     r.now().UTC(),
		MarketsScanned:  ev.marketsScanned,
		ReferencePrices: ev.refs,
		Signals:         ev.signals,
		Skipped:         ev.skipped,
		Errors:          ev.errs,
	}
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	return report, err
}

// Trade runs a full cycle and returns its snapshot. A held lock returns
// domain.ErrLockHeld and does nothing else. Once state is loaded the
// snapshot is always written, even when the cycle aborts.
func (r *Runner) Trade(ctx context.Context, opts TradeOptions) (snap domain.PortfolioSnapshot, err error) {
	started := r.now().UTC()
	cycleID := opts.CycleID
	if cycleID == "" {
		cycleID = CycleID(started, r.cfg.Interval)
	}
	live := opts.Live && r.deps.Executor != nil
	log := r.logger.With(slog.String("cycle_id", cycleID), slog.Bool("live", live))
	defer r.enter(ctx, StateIdle)

	if r.deps.Lock != nil {
		unlock, lerr := r.deps.Lock.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
		if lerr != nil {
			if errors.Is(lerr, domain.ErrLockHeld) {
				log.WarnContext(ctx, "cycle: another cycle holds the lock, skipping")
			}
			return domain.PortfolioSnapshot{}, lerr
		}
		defer unlock()
	}

	r.enter(ctx, StateScanning)
	state, err := r.deps.Store.Load(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("cycle: load state: %w", err)
	}
	if keys := executor.Reconcile(state); len(keys) > 0 {
		log.WarnContext(ctx, "cycle: pending orders from an interrupted run marked ambiguous", slog.Int("count", len(keys)))
	}
	if r.cfg.LedgerRetention > 0 {
		state.PruneLedger(started.Add(-r.cfg.LedgerRetention), cycleID)
	}
	state.ResetRun(cycleID)

	work := state
	mode := domain.ModeLive
	if !live {
		work = state.Clone()
		mode = domain.ModeDryRun
	}

	snap = domain.PortfolioSnapshot{
		CycleID:   cycleID,
		Mode:      mode,
		StartedAt: started,
	}

	onCandidate := func(ctx context.Context, sig domain.Signal) error {
		cand, ok := service.Candidate(sig, r.cfg.OrderSize)
		if !ok {
			return nil
		}

		r.enter(ctx, StateRiskGating)
		if rej := r.deps.Risk.Check(ctx, work, cand); rej != nil {
			snap.Rejections = append(snap.Rejections, *rej)
			return nil
		}

		if !live {
			r.deps.Risk.Reserve(work, cand)
			snap.DryRunOrders = append(snap.DryRunOrders, cand)
			return nil
		}

		r.enter(ctx, StateExecuting)
		order, xerr := r.deps.Executor.Execute(ctx, work, cycleID, cand)
		switch {
		case errors.Is(xerr, executor.ErrDuplicate):
			log.InfoContext(ctx, "cycle: order already attempted this cycle",
				slog.String("market", cand.MarketID), slog.String("status", string(order.Status)))
		case xerr != nil:
			return fmt.Errorf("cycle: execute %s: %w", cand.MarketID, xerr)
		}
		return nil
	}

	ev, runErr := r.evaluate(ctx, started, onCandidate)
	snap.MarketsScanned = ev.marketsScanned
	snap.ReferencePrices = ev.refs
	snap.Signals = ev.signals
	snap.Skipped = ev.skipped
	snap.Errors = ev.errs
	if runErr != nil {
		log.ErrorContext(ctx, "cycle: aborted", slog.String("error", runErr.Error()))
		snap.Errors = append(snap.Errors, runErr.Error())
	}

	return r.finish(ctx, log, state, work, snap, runErr)
}

// finish is the Snapshotting step: persist state, build and fan out the
// snapshot. The persisted state is the working state in live mode and the
// untouched original in dry-run mode.
func (r *Runner) finish(
	ctx context.Context,
	log *slog.Logger,
	state, work *domain.RiskState,
	snap domain.PortfolioSnapshot,
	runErr error,
) (domain.PortfolioSnapshot, error) {
	r.enter(ctx, StateSnapshotting)
	// Snapshot writes must survive a cancelled cycle context.
	wctx := context.WithoutCancel(ctx)

	killed := work.KillSwitchActive || r.deps.Risk.KillSwitchActive()
	state.KillSwitchActive = killed
	snap.KillSwitchActive = killed
	state.UpdatedAt = r.now().UTC()

	fatal := runErr
	if err := r.deps.Store.Save(wctx, state); err != nil {
		log.ErrorContext(ctx, "cycle: save state failed", slog.String("error", err.Error()))
		snap.Errors = append(snap.Errors, err.Error())
		fatal = errors.Join(fatal, fmt.Errorf("cycle: save state: %w", err))
	}

	snap.RecentOrders = ordersForCycle(state, snap.CycleID)
	snap.AmbiguousOrders = sortOrders(state.Ambiguous())
	r.portfolio(wctx, log, &snap)
	snap.GeneratedAt = r.now().UTC()

	if err := r.deps.Journal.Append(wctx, snap); err != nil {
		log.ErrorContext(ctx, "cycle: append snapshot failed", slog.String("error", err.Error()))
		fatal = errors.Join(fatal, fmt.Errorf("cycle: append snapshot: %w", err))
	}
	for _, sink := range r.deps.Sinks {
		if err := sink.Append(wctx, snap); err != nil {
			log.WarnContext(ctx, "cycle: snapshot sink failed", slog.String("sink", sink.Name()), slog.String("error", err.Error()))
		}
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.Observe(snap)
		if r.cfg.MetricsPath != "" {
			if err := r.deps.Metrics.WriteTextfile(r.cfg.MetricsPath); err != nil {
				log.WarnContext(ctx, "cycle: metrics textfile failed", slog.String("error", err.Error()))
			}
		}
	}
	if r.deps.Reporter != nil {
		if err := r.deps.Reporter.CycleReport(wctx, snap); err != nil {
			log.WarnContext(ctx, "cycle: notification failed", slog.String("error", err.Error()))
		}
	}

	log.InfoContext(ctx, "cycle: finished",
		slog.String("mode", string(snap.Mode)),
		slog.Int("markets", snap.MarketsScanned),
		slog.Int("signals", len(snap.Signals)),
		slog.Int("rejections", len(snap.Rejections)),
		slog.Int("dry_run_orders", len(snap.DryRunOrders)),
		slog.Int("orders", len(snap.RecentOrders)),
		slog.Int("ambiguous", len(snap.AmbiguousOrders)),
		slog.Bool("kill_switch", snap.KillSwitchActive),
	)
	return snap, fatal
}

// portfolio fills balance, positions and fills when the venue exposes them.
// Failures are recorded, not fatal.
func (r *Runner) portfolio(ctx context.Context, log *slog.Logger, snap *domain.PortfolioSnapshot) {
	p := r.deps.Portfolio
	if p == nil {
		return
	}
	note := func(what string, err error) {
		log.WarnContext(ctx, "cycle: portfolio read failed", slog.String("what", what), slog.String("error", err.Error()))
		snap.Errors = append(snap.Errors, what+": "+err.Error())
	}

	if bal, err := p.Balance(ctx); err != nil {
		note("balance", err)
	} else {
		snap.Balance = &bal
	}
	if pos, err := p.Positions(ctx); err != nil {
		note("positions", err)
	} else {
		snap.OpenPositions = pos
	}
	if fills, err := p.Fills(ctx, r.cfg.RecentFills); err != nil {
		note("fills", err)
	} else {
		snap.RecentFills = fills
	}
}

func ordersForCycle(state *domain.RiskState, cycleID string) []domain.Order {
	var out []domain.Order
	for _, o := range state.Ledger {
		if o.CycleID == cycleID {
			out = append(out, o)
		}
	}
	return sortOrders(out)
}

func sortOrders(orders []domain.Order) []domain.Order {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].IdempotencyKey < orders[j].IdempotencyKey
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders
}
