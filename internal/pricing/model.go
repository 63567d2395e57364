// Package pricing converts a reference price into the probability that a
// binary strike contract settles YES, using the lognormal d2 term.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// YearSeconds is the length of the year used to annualise time to expiry.
const YearSeconds = 365 * 24 * 60 * 60

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// D2 computes (ln(S/K) - σ²T/2) / (σ√T).
func D2(spot, strike, years, vol float64) (float64, error) {
	if err := validate(spot, strike, years, vol); err != nil {
		return 0, err
	}
	return (math.Log(spot/strike) - 0.5*vol*vol*years) / (vol * math.Sqrt(years)), nil
}

// ProbabilityAbove returns Φ(d2), the model probability that the underlying
// settles above the strike.
func ProbabilityAbove(spot, strike, years, vol float64) (float64, error) {
	d2, err := D2(spot, strike, years, vol)
	if err != nil {
		return 0, err
	}
	return clamp01(NormCDF(d2)), nil
}

// Probability returns the YES probability for a contract of the given
// strike type.
func Probability(st domain.StrikeType, spot, strike, years, vol float64) (float64, error) {
	above, err := ProbabilityAbove(spot, strike, years, vol)
	if err != nil {
		return 0, err
	}
	switch st {
	case domain.StrikeAbove:
		return above, nil
	case domain.StrikeBelow:
		return clamp01(1 - above), nil
	default:
		return 0, fmt.Errorf("pricing: unsupported strike type %q: %w", st, domain.ErrInvalidInput)
	}
}

// YearsBetween returns the fraction of a 365-day year from now to expiry.
// The result is negative once expiry has passed.
func YearsBetween(now, expiry time.Time) float64 {
	return expiry.Sub(now).Seconds() / YearSeconds
}

func validate(spot, strike, years, vol float64) error {
	if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return fmt.Errorf("pricing: sigma=%v: %w", vol, domain.ErrInvalidVolatility)
	}
	if !(years > 0) || math.IsInf(years, 0) {
		return fmt.Errorf("pricing: T=%v: %w", years, domain.ErrNonPositiveTenor)
	}
	if !finitePositive(spot) || !finitePositive(strike) {
		return fmt.Errorf("pricing: S=%v K=%v: %w", spot, strike, domain.ErrInvalidInput)
	}
	return nil
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
