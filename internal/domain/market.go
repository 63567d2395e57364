package domain

import "time"

// StrikeType is the direction a binary contract resolves against its strike.
type StrikeType string

const (
	StrikeAbove StrikeType = "above"
	StrikeBelow StrikeType = "below"
)

// Valid reports whether the strike type is one the pricing model supports.
func (s StrikeType) Valid() bool {
	return s == StrikeAbove || s == StrikeBelow
}

// Market is a read-only snapshot of one open binary contract.
type Market struct {
	ID         string     `json:"id"`
	Series     string     `json:"series"`
	Underlying string     `json:"underlying"`
	StrikeType StrikeType `json:"strike_type"`
	Strike     float64    `json:"strike"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Title      string     `json:"title,omitempty"`
}

// MarketPage is one cursor page of a venue catalog listing.
type MarketPage struct {
	Markets    []Market
	NextCursor string
}

// Quote is the top of book for the YES side of a market, in dollars.
// A zero bid or ask means that side of the book is empty.
type Quote struct {
	MarketID   string    `json:"market_id"`
	BestBid    float64   `json:"best_bid"`
	BestAsk    float64   `json:"best_ask"`
	ObservedAt time.Time `json:"observed_at"`
}

// TwoSided reports whether both a bid and an ask are present.
func (q Quote) TwoSided() bool {
	return q.BestBid > 0 && q.BestAsk > 0
}

// SkippedMarket records why a contract was not priced or traded.
type SkippedMarket struct {
	MarketID string `json:"market_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}
