package domain

import "time"

// OrderStatus tracks the order lifecycle as far as this engine knows it.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
	// OrderStatusAmbiguous means the request may or may not have reached the
	// venue. Only an operator resolves it.
	OrderStatusAmbiguous OrderStatus = "ambiguous"
)

// Order is a ledger entry for one submission attempt, keyed by its
// idempotency key.
type Order struct {
	IdempotencyKey string      `json:"idempotency_key"`
	MarketID       string      `json:"market_id"`
	Side           Side        `json:"side"`
	Size           int64       `json:"size"`
	LimitPrice     float64     `json:"limit_price"`
	Status         OrderStatus `json:"status"`
	CycleID        string      `json:"cycle_id"`
	VenueOrderID   string      `json:"venue_order_id,omitempty"`
	Message        string      `json:"message,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Notional is the dollar cost of the order if fully filled.
func (o Order) Notional() float64 {
	return float64(o.Size) * o.LimitPrice
}

// OrderRequest is what the executor hands to a venue.
type OrderRequest struct {
	MarketID       string
	Side           Side
	Size           int64
	LimitPrice     float64
	IdempotencyKey string
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	OrderID     string
	VenueStatus string
	FilledCount int64
}
