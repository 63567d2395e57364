package pricing

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// VolTable maps underlyings to annualised volatility with a fallback.
type VolTable struct {
	Default       float64
	PerUnderlying map[string]float64
}

// For returns the volatility to use for underlying, failing with
// domain.ErrInvalidVolatility when the configured value is unusable.
func (t VolTable) For(underlying string) (float64, error) {
	v, ok := t.PerUnderlying[underlying]
	if !ok {
		v = t.Default
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("pricing: volatility for %s: %w", underlying, domain.ErrInvalidVolatility)
	}
	return v, nil
}
