package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/pricing"
)

// SignalConfig holds the edge threshold and volatility assumptions.
type SignalConfig struct {
	MinEdgeBps float64
	Vols       pricing.VolTable
}

// SignalService compares model probabilities with venue quotes.
type SignalService struct {
	cfg    SignalConfig
	logger *slog.Logger
}

// NewSignalService creates a SignalService.
func NewSignalService(cfg SignalConfig, logger *slog.Logger) *SignalService {
	return &SignalService{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "signal_service")),
	}
}

// Generate builds the Signal for one market. Buying YES costs the ask;
// buying NO costs one minus the YES bid. The side with the larger edge is
// recommended and only acted on when its edge strictly exceeds the
// threshold. A pricing error is returned unchanged so the caller can tell
// configuration faults (domain.ErrInvalidVolatility) from per-market ones.
func (s *SignalService) Generate(m domain.Market, ref domain.ReferencePrice, q domain.Quote, now time.Time) (domain.Signal, error) {
	if !ref.Reliable {
		return domain.Signal{}, fmt.Errorf("signal_service: %s: %w", m.ID, domain.ErrUnreliablePrice)
	}

	vol, err := s.cfg.Vols.For(m.Underlying)
	if err != nil {
		return domain.Signal{}, err
	}
	years := pricing.YearsBetween(now, m.ExpiresAt)
	p, err := pricing.Probability(m.StrikeType, ref.Price, m.Strike, years, vol)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("signal_service: %s: %w", m.ID, err)
	}

	sig := domain.Signal{
		MarketID:           m.ID,
		Underlying:         m.Underlying,
		StrikeType:         m.StrikeType,
		Strike:             m.Strike,
		ModelProbability:   p,
		ReferencePriceUsed: ref.Price,
		YearsToExpiry:      years,
		BestBid:            q.BestBid,
		BestAsk:            q.BestAsk,
		Action:             domain.ActionHold,
		CreatedAt:          now.UTC(),
	}

	hasAsk := q.BestAsk > 0
	hasBid := q.BestBid > 0
	edgeYes := (p - q.BestAsk) * 10_000
	edgeNo := (q.BestBid - p) * 10_000

	switch {
	case hasAsk && (!hasBid || edgeYes >= edgeNo):
		sig.SideRecommended, sig.EdgeBps = domain.SideYes, edgeYes
	case hasBid:
		sig.SideRecommended, sig.EdgeBps = domain.SideNo, edgeNo
	default:
		sig.Reason = "no quote"
		return sig, nil
	}

	switch {
	case !q.TwoSided():
		sig.Reason = "one-sided quote"
	case sig.EdgeBps > s.cfg.MinEdgeBps:
		if sig.SideRecommended == domain.SideYes {
			sig.Action = domain.ActionBuyYes
		} else {
			sig.Action = domain.ActionBuyNo
		}
	default:
		sig.Reason = fmt.Sprintf("edge %.1f bps not above %.1f bps", sig.EdgeBps, s.cfg.MinEdgeBps)
	}

	s.logger.Debug("signal_service: signal generated",
		slog.String("market", m.ID),
		slog.Float64("p", p),
		slog.Float64("edge_bps", sig.EdgeBps),
		slog.String("action", string(sig.Action)),
	)
	return sig, nil
}

// Candidate turns an actionable signal into an order proposal of size
// contracts at the signal's entry price.
func Candidate(sig domain.Signal, size int64) (domain.Candidate, bool) {
	if !sig.Action.Actionable() {
		return domain.Candidate{}, false
	}
	return domain.Candidate{
		MarketID:   sig.MarketID,
		Side:       sig.SideRecommended,
		Size:       size,
		LimitPrice: sig.EntryPrice(),
	}, true
}
