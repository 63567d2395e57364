package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/retry"
)

// CatalogConfig bounds catalog scans.
type CatalogConfig struct {
	PageLimit  int
	MaxPages   int
	MinHorizon time.Duration
	// Underlyings maps a series ticker to the underlying it references.
	Underlyings map[string]string
}

// CatalogService lists priceable markets for a series.
type CatalogService struct {
	venue  domain.Venue
	cfg    CatalogConfig
	retry  retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a CatalogService with all required dependencies.
func NewCatalogService(
	venue domain.Venue,
	cfg CatalogConfig,
	policy retry.Policy,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		venue:  venue,
		cfg:    cfg,
		retry:  policy,
		logger: logger.With(slog.String("component", "catalog_service")),
		now:    time.Now,
	}
}

// OpenMarkets pages through a series until the cursor runs out or the page
// cap is hit. Contracts that cannot be priced are returned as skipped.
func (s *CatalogService) OpenMarkets(ctx context.Context, series string) ([]domain.Market, []domain.SkippedMarket, error) {
	underlying, ok := s.cfg.Underlyings[series]
	if !ok {
		return nil, nil, fmt.Errorf("catalog_service: series %q has no configured underlying", series)
	}

	var (
		markets []domain.Market
		skipped []domain.SkippedMarket
		cursor  string
		pages   int
	)
	cutoff := s.now().Add(s.cfg.MinHorizon)

	for {
		page, err := retry.Value(ctx, s.retry, "list "+series, func(ctx context.Context) (domain.MarketPage, error) {
			return s.venue.ListOpenMarkets(ctx, series, cursor, s.cfg.PageLimit)
		})
		if err != nil {
			return markets, skipped, fmt.Errorf("catalog_service: list %s page %d: %w", series, pages+1, err)
		}
		pages++

		for _, m := range page.Markets {
			m.Underlying = underlying
			if reason := s.exclude(m, cutoff); reason != "" {
				skipped = append(skipped, domain.SkippedMarket{MarketID: m.ID, Stage: "catalog", Reason: reason})
				continue
			}
			markets = append(markets, m)
		}

		cursor = page.NextCursor
		if cursor == "" {
			break
		}
		if s.cfg.MaxPages > 0 && pages >= s.cfg.MaxPages {
			s.logger.WarnContext(ctx, "catalog_service: page cap reached, scan truncated",
				slog.String("series", series),
				slog.Int("max_pages", s.cfg.MaxPages),
			)
			break
		}
	}

	s.logger.InfoContext(ctx, "catalog_service: series listed",
		slog.String("series", series),
		slog.Int("pages", pages),
		slog.Int("markets", len(markets)),
		slog.Int("skipped", len(skipped)),
	)
	return markets, skipped, nil
}

func (s *CatalogService) exclude(m domain.Market, cutoff time.Time) string {
	switch {
	case !m.StrikeType.Valid():
		return fmt.Sprintf("unsupported strike type %q", m.StrikeType)
	case m.Strike <= 0:
		return "missing strike"
	case m.ExpiresAt.IsZero():
		return "missing expiry"
	case !m.ExpiresAt.After(cutoff):
		return fmt.Sprintf("expires within minimum horizon %s", s.cfg.MinHorizon)
	default:
		return ""
	}
}
