package refprice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Coinbase reads the public spot price endpoint.
type Coinbase struct {
	client  *resty.Client
	symbols map[string]string
	now     func() time.Time
}

type coinbaseSpot struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// NewCoinbase creates a Coinbase source against baseURL, for example
// "https://api.coinbase.com".
func NewCoinbase(baseURL string, timeout time.Duration, symbols map[string]string) *Coinbase {
	return &Coinbase{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		symbols: symbols,
		now:     time.Now,
	}
}

// Name implements domain.PriceSource.
func (c *Coinbase) Name() string { return "coinbase" }

// SpotPrice implements domain.PriceSource.
func (c *Coinbase) SpotPrice(ctx context.Context, underlying string) (domain.SpotQuote, error) {
	pair := mapped(c.symbols, underlying, func(u string) string {
		base, quote := splitPair(u)
		return base + "-" + quote
	})

	var out coinbaseSpot
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		ForceContentType("application/json").
		SetPathParam("pair", pair).
		Get("/v2/prices/{pair}/spot")
	if err != nil {
		return domain.SpotQuote{}, fmt.Errorf("coinbase: get %s: %w", pair, err)
	}
	if resp.IsError() {
		return domain.SpotQuote{}, &StatusError{Source: "coinbase", StatusCode: resp.StatusCode(), Body: truncate(resp.String())}
	}

	price, err := parsePrice("coinbase", out.Data.Amount)
	if err != nil {
		return domain.SpotQuote{}, err
	}
	return domain.SpotQuote{Price: price, ObservedAt: c.now().UTC()}, nil
}
