package kalshi

import "fmt"

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
type KalshiMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	StrikeType     string  `json:"strike_type"`
	FloorStrike    float64 `json:"floor_strike"`
	CapStrike      float64 `json:"cap_strike"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
}

// KalshiMarketsResponse is a cursor page from GET /markets.
type KalshiMarketsResponse struct {
	Markets []KalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// KalshiOrderbook holds resting bids per side as [price_cents, quantity]
// pairs. Kalshi only publishes bids; a YES ask is the complement of the best
// NO bid.
type KalshiOrderbook struct {
	Yes [][]int64 `json:"yes"`
	No  [][]int64 `json:"no"`
}

// KalshiOrderbookResponse wraps GET /markets/{ticker}/orderbook.
type KalshiOrderbookResponse struct {
	Orderbook KalshiOrderbook `json:"orderbook"`
}

// KalshiOrder represents an order to be placed on the Kalshi exchange.
type KalshiOrder struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"` // limit price in cents (1-99)
	NoPrice       *int64 `json:"no_price,omitempty"`
}

// KalshiOrderResponse represents the API response after placing an order.
type KalshiOrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		ClientOrderID  string `json:"client_order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		Side           string `json:"side"`
		RemainingCount int64  `json:"remaining_count"`
		TakerFillCount int64  `json:"taker_fill_count"`
	} `json:"order"`
}

// KalshiBalanceResponse wraps GET /portfolio/balance; values in cents.
type KalshiBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// KalshiPosition is one entry of GET /portfolio/positions; money in cents.
type KalshiPosition struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnL    int64  `json:"realized_pnl"`
}

// KalshiPositionsResponse wraps GET /portfolio/positions.
type KalshiPositionsResponse struct {
	MarketPositions []KalshiPosition `json:"market_positions"`
	Cursor          string           `json:"cursor"`
}

// KalshiFill is one entry of GET /portfolio/fills.
type KalshiFill struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Count       int64  `json:"count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	CreatedTime string `json:"created_time"`
}

// KalshiFillsResponse wraps GET /portfolio/fills.
type KalshiFillsResponse struct {
	Fills  []KalshiFill `json:"fills"`
	Cursor string       `json:"cursor"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx response from the Kalshi API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kalshi api error %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("kalshi api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// HTTPStatus exposes the status code to callers that classify outcomes
// without depending on this package.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
