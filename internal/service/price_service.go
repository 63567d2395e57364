package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/retry"
)

// PriceConfig holds the reconciliation parameters for reference prices.
type PriceConfig struct {
	Quorum        int
	Tolerance     float64
	SourceTimeout time.Duration
}

// PriceService reconciles independent spot sources into one reference price
// per underlying per cycle.
type PriceService struct {
	sources []domain.PriceSource
	cfg     PriceConfig
	retry   retry.Policy
	logger  *slog.Logger
	now     func() time.Time
}

// NewPriceService creates a PriceService with all required dependencies.
func NewPriceService(
	sources []domain.PriceSource,
	cfg PriceConfig,
	policy retry.Policy,
	logger *slog.Logger,
) *PriceService {
	if cfg.Quorum < 1 {
		cfg.Quorum = 2
	}
	return &PriceService{
		sources: sources,
		cfg:     cfg,
		retry:   policy,
		logger:  logger.With(slog.String("component", "price_service")),
		now:     time.Now,
	}
}

// Reconcile queries every source in turn and reduces the survivors to their
// median. The result is unreliable when fewer than the quorum answered or
// when the survivors disagree by more than the tolerance. The only error
// returned is domain.ErrNoSources; source failures degrade reliability
// instead.
func (s *PriceService) Reconcile(ctx context.Context, underlying string) (domain.ReferencePrice, error) {
	if len(s.sources) == 0 {
		return domain.ReferencePrice{}, fmt.Errorf("price_service: %s: %w", underlying, domain.ErrNoSources)
	}

	ref := domain.ReferencePrice{
		Underlying: underlying,
		Sources:    make([]domain.SourceObservation, 0, len(s.sources)),
	}

	var prices []float64
	for _, src := range s.sources {
		obs := s.observe(ctx, src, underlying)
		ref.Sources = append(ref.Sources, obs)
		if obs.OK() {
			prices = append(prices, obs.Price)
		}
	}
	ref.ReconciledAt = s.now().UTC()

	if len(prices) > 0 {
		ref.Price = median(prices)
	}

	switch {
	case len(prices) < s.cfg.Quorum:
		ref.Reason = fmt.Sprintf("quorum not met: %d of %d sources, need %d", len(prices), len(s.sources), s.cfg.Quorum)
	default:
		dev := maxRelativeDeviation(prices, ref.Price)
		if dev > s.cfg.Tolerance {
			ref.Reason = fmt.Sprintf("sources disagree: deviation %.5f exceeds tolerance %.5f", dev, s.cfg.Tolerance)
		} else {
			ref.Reliable = true
		}
	}

	if !ref.Reliable {
		s.logger.WarnContext(ctx, "price_service: reference price unreliable",
			slog.String("underlying", underlying),
			slog.String("reason", ref.Reason),
			slog.Int("sources_ok", len(prices)),
		)
	} else {
		s.logger.InfoContext(ctx, "price_service: reference price reconciled",
			slog.String("underlying", underlying),
			slog.Float64("price", ref.Price),
			slog.Int("sources_ok", len(prices)),
		)
	}
	return ref, nil
}

// observe fetches one source under its own timeout and retry budget. Every
// outcome is recorded, successful or not.
func (s *PriceService) observe(ctx context.Context, src domain.PriceSource, underlying string) domain.SourceObservation {
	obs := domain.SourceObservation{Source: src.Name()}

	q, err := retry.Value(ctx, s.retry, src.Name()+" spot "+underlying, func(ctx context.Context) (domain.SpotQuote, error) {
		if s.cfg.SourceTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
			defer cancel()
		}
		return src.SpotPrice(ctx, underlying)
	})
	if err != nil {
		obs.Error = err.Error()
		s.logger.WarnContext(ctx, "price_service: source dropped",
			slog.String("source", src.Name()),
			slog.String("underlying", underlying),
			slog.String("error", err.Error()),
		)
		return obs
	}
	if !(q.Price > 0) || math.IsInf(q.Price, 0) {
		obs.Error = fmt.Sprintf("invalid price %v", q.Price)
		return obs
	}

	obs.Price = q.Price
	obs.ObservedAt = q.ObservedAt
	return obs
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// maxRelativeDeviation is the widest pairwise spread relative to the median.
func maxRelativeDeviation(xs []float64, mid float64) float64 {
	if len(xs) < 2 || mid <= 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return (hi - lo) / mid
}
