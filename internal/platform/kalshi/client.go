package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Client is the REST client for the Kalshi exchange API. It implements
// domain.Venue, domain.OrderPlacer and domain.PortfolioReader.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With(slog.String("component", "kalshi")) }
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier; it may be empty for read-only use.
func NewClient(baseURL, apiKeyID string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With(slog.String("component", "kalshi")),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// CanTrade reports whether the client holds credentials for signed calls.
func (c *Client) CanTrade() bool {
	return c.apiKeyID != "" && c.privateKey != nil
}

// ListOpenMarkets returns one cursor page of open markets in a series.
func (c *Client) ListOpenMarkets(ctx context.Context, series, cursor string, limit int) (domain.MarketPage, error) {
	params := url.Values{}
	params.Set("series_ticker", series)
	params.Set("status", "open")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp KalshiMarketsResponse
	if err := c.getJSON(ctx, "/markets", params, &resp); err != nil {
		return domain.MarketPage{}, fmt.Errorf("kalshi: list markets %s: %w", series, err)
	}

	page := domain.MarketPage{
		Markets:    make([]domain.Market, 0, len(resp.Markets)),
		NextCursor: resp.Cursor,
	}
	for _, m := range resp.Markets {
		page.Markets = append(page.Markets, toMarket(series, m))
	}
	return page, nil
}

// GetQuote returns the YES top of book for the given market ticker.
func (c *Client) GetQuote(ctx context.Context, ticker string) (domain.Quote, error) {
	path := fmt.Sprintf("/markets/%s/orderbook", url.PathEscape(ticker))

	var resp KalshiOrderbookResponse
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}

	q := domain.Quote{MarketID: ticker, ObservedAt: c.now().UTC()}
	if bid, ok := bestLevel(resp.Orderbook.Yes); ok {
		q.BestBid = centsToDollars(bid)
	}
	if noBid, ok := bestLevel(resp.Orderbook.No); ok {
		q.BestAsk = centsToDollars(100 - noBid)
	}
	return q, nil
}

// PlaceOrder submits a limit buy on the Kalshi exchange. The idempotency key
// is sent as client_order_id so the venue rejects a replay.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	cents := dollarsToCents(req.LimitPrice)
	if cents < 1 || cents > 99 {
		return domain.OrderResult{}, fmt.Errorf("kalshi: limit price %.4f outside 1-99 cents: %w", req.LimitPrice, domain.ErrInvalidOrder)
	}
	if req.Size < 1 {
		return domain.OrderResult{}, fmt.Errorf("kalshi: size %d: %w", req.Size, domain.ErrInvalidOrder)
	}

	order := KalshiOrder{
		Ticker:        req.MarketID,
		ClientOrderID: req.IdempotencyKey,
		Action:        "buy",
		Side:          string(req.Side),
		Type:          "limit",
		Count:         req.Size,
	}
	switch req.Side {
	case domain.SideYes:
		order.YesPrice = &cents
	case domain.SideNo:
		order.NoPrice = &cents
	default:
		return domain.OrderResult{}, fmt.Errorf("kalshi: side %q: %w", req.Side, domain.ErrInvalidOrder)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/portfolio/orders", nil, order)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp KalshiOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// The venue accepted the request but the reply is unreadable, so the
		// order state is unknown.
		return domain.OrderResult{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	if resp.Order.Status == "canceled" {
		return domain.OrderResult{OrderID: resp.Order.OrderID, VenueStatus: resp.Order.Status},
			fmt.Errorf("kalshi: order %s cancelled on arrival: %w", resp.Order.OrderID, domain.ErrInvalidOrder)
	}

	return domain.OrderResult{
		OrderID:     resp.Order.OrderID,
		VenueStatus: resp.Order.Status,
		FilledCount: resp.Order.TakerFillCount,
	}, nil
}

// Balance returns the available cash balance in dollars.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var resp KalshiBalanceResponse
	if err := c.getJSON(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}
	return centsToDollars(resp.Balance), nil
}

// Positions returns open market positions.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	params := url.Values{}
	params.Set("count_filter", "position")

	var resp KalshiPositionsResponse
	if err := c.getJSON(ctx, "/portfolio/positions", params, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: get positions: %w", err)
	}

	out := make([]domain.Position, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		if p.Position == 0 {
			continue
		}
		out = append(out, domain.Position{
			MarketID:    p.Ticker,
			Contracts:   p.Position,
			Exposure:    centsToDollars(p.MarketExposure),
			RealizedPnL: centsToDollars(p.RealizedPnL),
		})
	}
	return out, nil
}

// Fills returns the most recent executions, newest first.
func (c *Client) Fills(ctx context.Context, limit int) ([]domain.Fill, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp KalshiFillsResponse
	if err := c.getJSON(ctx, "/portfolio/fills", params, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: get fills: %w", err)
	}

	out := make([]domain.Fill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		price := f.YesPrice
		if f.Side == string(domain.SideNo) {
			price = f.NoPrice
		}
		created, _ := time.Parse(time.RFC3339, f.CreatedTime)
		out = append(out, domain.Fill{
			TradeID:   f.TradeID,
			OrderID:   f.OrderID,
			MarketID:  f.Ticker,
			Side:      domain.Side(f.Side),
			Count:     f.Count,
			Price:     centsToDollars(price),
			CreatedAt: created,
		})
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// doRequest builds, optionally signs, sends, and reads an HTTP request
// against the Kalshi API. Requests are signed whenever a key is loaded;
// public market data works without one.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil {
		if err := c.signRequest(req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	} else if method != http.MethodGet {
		return nil, fmt.Errorf("kalshi: %s %s: %w", method, path, domain.ErrUnauthorized)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		c.logger.DebugContext(ctx, "kalshi: request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over timestamp + method + URL path,
// where the path excludes the query string.
func (c *Client) signRequest(req *http.Request) error {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	message := ts + req.Method + req.URL.Path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w: %w", domain.ErrSigningFailed, err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to *APIError.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{StatusCode: statusCode, Code: apiErr.Error.Code, Message: msg}
}

// Compile-time interface checks.
var (
	_ domain.Venue           = (*Client)(nil)
	_ domain.OrderPlacer     = (*Client)(nil)
	_ domain.PortfolioReader = (*Client)(nil)
)
