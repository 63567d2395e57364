package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func TestProbabilityAbove_InUnitInterval(t *testing.T) {
	spots := []float64{1e-6, 1, 100, 67000, 1e9}
	strikes := []float64{1e-6, 1, 65000, 1e9}
	tenors := []float64{1e-9, 1.0 / 365, 0.0192, 1, 50}
	vols := []float64{1e-6, 0.2, 0.6, 3, 50}

	for _, s := range spots {
		for _, k := range strikes {
			for _, tt := range tenors {
				for _, v := range vols {
					p, err := ProbabilityAbove(s, k, tt, v)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, p, 0.0)
					assert.LessOrEqual(t, p, 1.0)
				}
			}
		}
	}
}

func TestProbabilityAbove_DecreasingInStrike(t *testing.T) {
	prev := 2.0
	for k := 60000.0; k <= 74000; k += 500 {
		p, err := ProbabilityAbove(67000, k, 0.0192, 0.6)
		require.NoError(t, err)
		assert.Less(t, p, prev, "strike %v", k)
		prev = p
	}
}

func TestProbabilityAbove_ReferenceScenario(t *testing.T) {
	p, err := ProbabilityAbove(67000, 65000, 0.0192, 0.6)
	require.NoError(t, err)
	assert.Greater(t, p, 0.5)
	assert.InDelta(t, 0.6266, p, 0.001)
}

func TestProbability_BelowComplementsAbove(t *testing.T) {
	above, err := Probability(domain.StrikeAbove, 67000, 65000, 0.0192, 0.6)
	require.NoError(t, err)
	below, err := Probability(domain.StrikeBelow, 67000, 65000, 0.0192, 0.6)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, above+below, 1e-12)
}

func TestProbability_RejectsBadInputs(t *testing.T) {
	_, err := ProbabilityAbove(67000, 65000, 0.0192, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidVolatility)

	_, err = ProbabilityAbove(67000, 65000, 0.0192, -0.3)
	assert.ErrorIs(t, err, domain.ErrInvalidVolatility)

	_, err = ProbabilityAbove(67000, 65000, 0.0192, math.NaN())
	assert.ErrorIs(t, err, domain.ErrInvalidVolatility)

	_, err = ProbabilityAbove(67000, 65000, 0, 0.6)
	assert.ErrorIs(t, err, domain.ErrNonPositiveTenor)

	_, err = ProbabilityAbove(0, 65000, 0.0192, 0.6)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Probability(domain.StrikeType("between"), 67000, 65000, 0.0192, 0.6)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestYearsBetween(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 7.0/365, YearsBetween(now, now.Add(7*24*time.Hour)), 1e-12)
	assert.Less(t, YearsBetween(now, now.Add(-time.Minute)), 0.0)
}

func TestVolTable(t *testing.T) {
	vt := VolTable{Default: 0.6, PerUnderlying: map[string]float64{"ETH-USD": 0.8, "BAD": 0}}

	v, err := vt.For("ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, 0.8, v)

	v, err = vt.For("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 0.6, v)

	_, err = vt.For("BAD")
	assert.ErrorIs(t, err, domain.ErrInvalidVolatility)
}
