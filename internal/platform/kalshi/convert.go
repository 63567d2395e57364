package kalshi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// toMarket maps a Kalshi market onto the venue-neutral model. Strike types
// other than the four threshold variants pass through unchanged so the
// catalog can report them as skipped.
func toMarket(series string, m KalshiMarket) domain.Market {
	out := domain.Market{
		ID:     m.Ticker,
		Series: series,
		Title:  m.Title,
	}

	switch m.StrikeType {
	case "greater", "greater_or_equal":
		out.StrikeType = domain.StrikeAbove
		out.Strike = m.FloorStrike
	case "less", "less_or_equal":
		out.StrikeType = domain.StrikeBelow
		out.Strike = m.CapStrike
	default:
		out.StrikeType = domain.StrikeType(m.StrikeType)
	}

	out.ExpiresAt = parseTime(m.CloseTime)
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = parseTime(m.ExpirationTime)
	}
	return out
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// bestLevel returns the highest price with resting quantity.
func bestLevel(levels [][]int64) (int64, bool) {
	var best int64
	found := false
	for _, lvl := range levels {
		if len(lvl) < 2 || lvl[1] <= 0 {
			continue
		}
		if !found || lvl[0] > best {
			best = lvl[0]
			found = true
		}
	}
	return best, found
}

func centsToDollars(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

func dollarsToCents(d float64) int64 {
	return decimal.NewFromFloat(d).Mul(hundred).Round(0).IntPart()
}
