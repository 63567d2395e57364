// Package refprice implements independent spot price sources used to build
// the per-cycle reference price.
package refprice

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// StatusError is a non-2xx reply from a price source.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
}

// IsRetryable returns true for throttling and server-side failures.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// splitPair splits "BTC-USD" into base and quote.
func splitPair(underlying string) (string, string) {
	base, quote, ok := strings.Cut(strings.ToUpper(underlying), "-")
	if !ok {
		return base, "USD"
	}
	return base, quote
}

func mapped(symbols map[string]string, underlying string, fallback func(string) string) string {
	if s, ok := symbols[underlying]; ok && s != "" {
		return s
	}
	return fallback(underlying)
}

// parsePrice parses a decimal price string and rejects non-positive or
// non-finite values.
func parsePrice(source, raw string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse price %q: %w", source, raw, err)
	}
	if !(p > 0) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%s: invalid price %v", source, p)
	}
	return p, nil
}

func truncate(s string) string {
	const limit = 256
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

var (
	_ domain.PriceSource = (*Coinbase)(nil)
	_ domain.PriceSource = (*Kraken)(nil)
	_ domain.PriceSource = (*Binance)(nil)
)
