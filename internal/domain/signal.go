package domain

import "time"

// Side is the contract side an order buys.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Action is the recommendation carried by a Signal.
type Action string

const (
	ActionBuyYes Action = "buy_yes"
	ActionBuyNo  Action = "buy_no"
	ActionHold   Action = "hold"
)

// Actionable reports whether the action asks for an order.
func (a Action) Actionable() bool {
	return a == ActionBuyYes || a == ActionBuyNo
}

// Signal is the model's verdict on one market for one cycle. It is built
// once and never mutated.
type Signal struct {
	MarketID           string     `json:"market_id"`
	Underlying         string     `json:"underlying"`
	StrikeType         StrikeType `json:"strike_type"`
	Strike             float64    `json:"strike"`
	ModelProbability   float64    `json:"model_probability"`
	ReferencePriceUsed float64    `json:"reference_price_used"`
	YearsToExpiry      float64    `json:"years_to_expiry"`
	BestBid            float64    `json:"best_bid"`
	BestAsk            float64    `json:"best_ask"`
	SideRecommended    Side       `json:"side_recommended,omitempty"`
	EdgeBps            float64    `json:"edge_bps"`
	Action             Action     `json:"action"`
	Reason             string     `json:"reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// EntryPrice is the price paid per contract to act on the signal: the YES
// ask, or one minus the YES bid for a NO purchase.
func (s Signal) EntryPrice() float64 {
	switch s.Action {
	case ActionBuyYes:
		return s.BestAsk
	case ActionBuyNo:
		return 1 - s.BestBid
	default:
		return 0
	}
}

// Candidate is a proposed order derived from an actionable Signal, awaiting
// risk gating.
type Candidate struct {
	MarketID   string  `json:"market_id"`
	Side       Side    `json:"side"`
	Size       int64   `json:"size"`
	LimitPrice float64 `json:"limit_price"`
}

// Notional is the dollar cost of the candidate if fully filled.
func (c Candidate) Notional() float64 {
	return float64(c.Size) * c.LimitPrice
}
