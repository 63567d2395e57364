package refprice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Kraken reads the last trade price from the public Ticker endpoint.
type Kraken struct {
	client  *resty.Client
	symbols map[string]string
	now     func() time.Time
}

type krakenTicker struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		// c is [price, lot volume] of the last trade.
		C []string `json:"c"`
	} `json:"result"`
}

// NewKraken creates a Kraken source against baseURL, for example
// "https://api.kraken.com".
func NewKraken(baseURL string, timeout time.Duration, symbols map[string]string) *Kraken {
	return &Kraken{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		symbols: symbols,
		now:     time.Now,
	}
}

// Name implements domain.PriceSource.
func (k *Kraken) Name() string { return "kraken" }

// SpotPrice implements domain.PriceSource.
func (k *Kraken) SpotPrice(ctx context.Context, underlying string) (domain.SpotQuote, error) {
	pair := mapped(k.symbols, underlying, func(u string) string {
		base, quote := splitPair(u)
		return base + quote
	})

	var out krakenTicker
	resp, err := k.client.R().
		SetContext(ctx).
		SetResult(&out).
		ForceContentType("application/json").
		SetQueryParam("pair", pair).
		Get("/0/public/Ticker")
	if err != nil {
		return domain.SpotQuote{}, fmt.Errorf("kraken: get %s: %w", pair, err)
	}
	if resp.IsError() {
		return domain.SpotQuote{}, &StatusError{Source: "kraken", StatusCode: resp.StatusCode(), Body: truncate(resp.String())}
	}
	if len(out.Error) > 0 {
		return domain.SpotQuote{}, fmt.Errorf("kraken: %s: %s", pair, strings.Join(out.Error, "; "))
	}

	// Kraken keys the result by its canonical pair name, which rarely
	// matches the requested alias; a single-pair query has one entry.
	for _, t := range out.Result {
		if len(t.C) == 0 {
			break
		}
		price, err := parsePrice("kraken", t.C[0])
		if err != nil {
			return domain.SpotQuote{}, err
		}
		return domain.SpotQuote{Price: price, ObservedAt: k.now().UTC()}, nil
	}
	return domain.SpotQuote{}, fmt.Errorf("kraken: %s: empty ticker result", pair)
}
