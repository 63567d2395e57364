package refprice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Binance takes one message from the 24h ticker stream. Cadence is minutes,
// so the connection is opened per read rather than held.
type Binance struct {
	baseURL string
	timeout time.Duration
	symbols map[string]string
	dialer  *websocket.Dialer
}

type binanceTicker struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// NewBinance creates a Binance source against a raw-stream base URL, for
// example "wss://stream.binance.com:9443/ws".
func NewBinance(baseURL string, timeout time.Duration, symbols map[string]string) *Binance {
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		symbols: symbols,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Name implements domain.PriceSource.
func (b *Binance) Name() string { return "binance" }

// SpotPrice implements domain.PriceSource.
func (b *Binance) SpotPrice(ctx context.Context, underlying string) (domain.SpotQuote, error) {
	symbol := mapped(b.symbols, underlying, func(u string) string {
		base, quote := splitPair(u)
		if quote == "USD" {
			quote = "USDT"
		}
		return base + quote
	})

	url := fmt.Sprintf("%s/%s@ticker", b.baseURL, strings.ToLower(symbol))
	conn, _, err := b.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return domain.SpotQuote{}, fmt.Errorf("binance: dial %s: %w", symbol, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(deadline)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return domain.SpotQuote{}, fmt.Errorf("binance: read %s: %w", symbol, err)
		}

		var t binanceTicker
		if err := json.Unmarshal(message, &t); err != nil {
			return domain.SpotQuote{}, fmt.Errorf("binance: decode %s: %w", symbol, err)
		}
		if t.Close == "" {
			// Subscription acks and other control frames carry no price.
			continue
		}

		price, err := parsePrice("binance", t.Close)
		if err != nil {
			return domain.SpotQuote{}, err
		}
		observed := time.Now().UTC()
		if t.EventTime > 0 {
			observed = time.UnixMilli(t.EventTime).UTC()
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return domain.SpotQuote{Price: price, ObservedAt: observed}, nil
	}
}
