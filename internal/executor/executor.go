package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/retry"
)

// ErrDuplicate is returned when the idempotency key is already in the ledger.
var ErrDuplicate = errors.New("executor: duplicate idempotency key")

// Committer books confirmed orders into the risk state. It is implemented by
// service.RiskService.
type Committer interface {
	Commit(state *domain.RiskState, o domain.Order)
}

// statusCoder is implemented by venue errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Executor submits risk-approved candidates to the venue. Every attempt is
// written to the ledger and persisted before the request leaves the
// process, so a crash between the two is recovered as ambiguous rather
// than retried.
type Executor struct {
	placer  domain.OrderPlacer
	risk    Committer
	store   domain.StateStore
	timeout time.Duration
	retry   retry.Policy
	logger  *slog.Logger
	now     func() time.Time
}

// NewExecutor creates an Executor. timeout bounds each venue request; the
// retry policy is narrowed to rate-limit responses, the only failure that
// proves the order was not accepted.
func NewExecutor(
	placer domain.OrderPlacer,
	risk Committer,
	store domain.StateStore,
	timeout time.Duration,
	policy retry.Policy,
	logger *slog.Logger,
) *Executor {
	policy.Retryable = rateLimited
	return &Executor{
		placer:  placer,
		risk:    risk,
		store:   store,
		timeout: timeout,
		retry:   policy,
		logger:  logger.With(slog.String("component", "executor")),
		now:     time.Now,
	}
}

// Execute places one candidate for cycleID and returns the final ledger
// entry. A duplicate key returns the existing entry with ErrDuplicate and
// sends nothing. Any other returned error means the write-ahead save failed
// and no request was sent.
func (e *Executor) Execute(ctx context.Context, state *domain.RiskState, cycleID string, c domain.Candidate) (domain.Order, error) {
	state.Normalize()
	key := IdempotencyKey(c.MarketID, cycleID, c.Side)
	log := e.logger.With(
		slog.String("key", key),
		slog.String("market", c.MarketID),
		slog.String("side", string(c.Side)),
	)

	if prev, ok := Seen(state, key); ok {
		log.InfoContext(ctx, "executor: duplicate key, not resubmitting", slog.String("status", string(prev.Status)))
		return prev, ErrDuplicate
	}

	now := e.now().UTC()
	order := domain.Order{
		IdempotencyKey: key,
		MarketID:       c.MarketID,
		Side:           c.Side,
		Size:           c.Size,
		LimitPrice:     c.LimitPrice,
		Status:         domain.OrderStatusPending,
		CycleID:        cycleID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	state.Ledger[key] = order
	if err := e.store.Save(ctx, state); err != nil {
		delete(state.Ledger, key)
		return order, fmt.Errorf("executor: write-ahead %s: %w", key, err)
	}

	res, err := retry.Value(ctx, e.retry, "place "+c.MarketID, func(ctx context.Context) (domain.OrderResult, error) {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		return e.placer.PlaceOrder(ctx, domain.OrderRequest{
			MarketID:       c.MarketID,
			Side:           c.Side,
			Size:           c.Size,
			LimitPrice:     c.LimitPrice,
			IdempotencyKey: key,
		})
	})

	order.Status = Classify(err)
	order.UpdatedAt = e.now().UTC()
	if err != nil {
		order.Message = err.Error()
	} else {
		order.VenueOrderID = res.OrderID
		order.Message = res.VenueStatus
	}
	state.Ledger[key] = order
	e.risk.Commit(state, order)

	switch order.Status {
	case domain.OrderStatusConfirmed:
		log.InfoContext(ctx, "executor: order confirmed",
			slog.String("venue_order_id", res.OrderID),
			slog.Int64("size", c.Size),
			slog.Float64("limit", c.LimitPrice),
		)
	case domain.OrderStatusAmbiguous:
		log.ErrorContext(ctx, "executor: order outcome unknown, market suspended", slog.String("error", order.Message))
	default:
		log.WarnContext(ctx, "executor: order failed", slog.String("error", order.Message))
	}

	if err := e.store.Save(ctx, state); err != nil {
		log.ErrorContext(ctx, "executor: save after outcome failed", slog.String("error", err.Error()))
	}
	return order, nil
}

// Classify maps a venue outcome to an order status. Only a definite
// rejection is failed; anything that may have reached the matching engine
// without a confirmed reply is ambiguous.
func Classify(err error) domain.OrderStatus {
	if err == nil {
		return domain.OrderStatusConfirmed
	}
	if errors.Is(err, domain.ErrInvalidOrder) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrSigningFailed) {
		return domain.OrderStatusFailed
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		switch {
		case code == http.StatusRequestTimeout || code == http.StatusConflict:
			return domain.OrderStatusAmbiguous
		case code >= 400 && code < 500:
			return domain.OrderStatusFailed
		}
	}
	return domain.OrderStatusAmbiguous
}

func rateLimited(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	var sc statusCoder
	return errors.As(err, &sc) && sc.HTTPStatus() == http.StatusTooManyRequests
}
