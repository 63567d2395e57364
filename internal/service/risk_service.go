package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// RiskConfig holds the tunable parameters for pre-trade risk checks.
type RiskConfig struct {
	KillSwitchPath    string
	PerMarketCap      float64
	PerRunOrderCap    int
	PerRunNotionalCap float64
	MaxOrderSize      int64
}

// RiskService gates candidate orders against the kill switch and the
// exposure caps held in RiskState.
type RiskService struct {
	cfg    RiskConfig
	logger *slog.Logger
	stat   func(string) (os.FileInfo, error)
}

// NewRiskService creates a RiskService with all required dependencies.
func NewRiskService(cfg RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk_service")),
		stat:   os.Stat,
	}
}

// KillSwitchActive reports whether the kill-switch file exists. The file is
// stat'ed on every call and never cached. A stat error other than "not
// exist" counts as active.
func (s *RiskService) KillSwitchActive() bool {
	if s.cfg.KillSwitchPath == "" {
		return false
	}
	_, err := s.stat(s.cfg.KillSwitchPath)
	if err == nil {
		return true
	}
	return !errors.Is(err, fs.ErrNotExist)
}

// Check runs the gates in order and returns the first rejection, or nil
// when the candidate may proceed:
//
//  1. Kill switch file present
//  2. Market suspended by an unresolved ambiguous order
//  3. Per-market exposure plus candidate notional above the cap
//  4. Per-run order count at the cap
//  5. Per-run notional plus candidate notional above the cap
//  6. Candidate size above the per-order cap
//
// A present kill switch also latches state.KillSwitchActive for the cycle.
func (s *RiskService) Check(ctx context.Context, state *domain.RiskState, c domain.Candidate) *domain.Rejection {
	notional := c.Notional()
	reject := func(reason domain.RejectReason, detail string) *domain.Rejection {
		s.logger.WarnContext(ctx, "risk_service: candidate rejected",
			slog.String("market", c.MarketID),
			slog.String("side", string(c.Side)),
			slog.String("reason", string(reason)),
			slog.String("detail", detail),
		)
		return &domain.Rejection{
			Reason:            reason,
			MarketID:          c.MarketID,
			Side:              c.Side,
			CandidateNotional: notional,
			Detail:            detail,
		}
	}

	if s.KillSwitchActive() {
		state.KillSwitchActive = true
		return reject(domain.RejectKillSwitch, "kill switch file present: "+s.cfg.KillSwitchPath)
	}
	if state.MarketSuspended(c.MarketID) {
		return reject(domain.RejectMarketSuspended, "unresolved ambiguous order on market")
	}
	if exp := state.PerMarketExposure[c.MarketID]; exp+notional > s.cfg.PerMarketCap {
		return reject(domain.RejectPerMarketCap,
			fmt.Sprintf("exposure %.2f + %.2f exceeds cap %.2f", exp, notional, s.cfg.PerMarketCap))
	}
	if state.PerRunOrdersPlaced >= s.cfg.PerRunOrderCap {
		return reject(domain.RejectPerRunOrderCap,
			fmt.Sprintf("%d orders placed, cap %d", state.PerRunOrdersPlaced, s.cfg.PerRunOrderCap))
	}
	if state.PerRunNotional+notional > s.cfg.PerRunNotionalCap {
		return reject(domain.RejectPerRunNotionalCap,
			fmt.Sprintf("run notional %.2f + %.2f exceeds cap %.2f", state.PerRunNotional, notional, s.cfg.PerRunNotionalCap))
	}
	if c.Size > s.cfg.MaxOrderSize {
		return reject(domain.RejectMaxOrderSize,
			fmt.Sprintf("size %d exceeds cap %d", c.Size, s.cfg.MaxOrderSize))
	}
	return nil
}

// Commit books a confirmed order into the exposure map and the per-run
// counters. Orders in any other status leave the counters untouched; an
// ambiguous order's cost is unknown until it is resolved.
func (s *RiskService) Commit(state *domain.RiskState, o domain.Order) {
	if o.Status != domain.OrderStatusConfirmed {
		return
	}
	state.Normalize()
	state.PerMarketExposure[o.MarketID] += o.Notional()
	state.PerRunOrdersPlaced++
	state.PerRunNotional += o.Notional()
}

// Reserve books an approved candidate the way Commit books a confirmed order.
// Dry runs use it on a cloned state so later candidates see the caps they
// would hit live.
func (s *RiskService) Reserve(state *domain.RiskState, c domain.Candidate) {
	s.Commit(state, domain.Order{
		MarketID:   c.MarketID,
		Side:       c.Side,
		Size:       c.Size,
		LimitPrice: c.LimitPrice,
		Status:     domain.OrderStatusConfirmed,
	})
}
