package domain

import "time"

// Position is an open venue position reported by a PortfolioReader.
type Position struct {
	MarketID    string  `json:"market_id"`
	Contracts   int64   `json:"contracts"`
	Exposure    float64 `json:"exposure"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// Fill is a single venue execution reported by a PortfolioReader.
type Fill struct {
	TradeID   string    `json:"trade_id"`
	OrderID   string    `json:"order_id"`
	MarketID  string    `json:"market_id"`
	Side      Side      `json:"side"`
	Count     int64     `json:"count"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// RunMode distinguishes simulated cycles from live ones.
type RunMode string

const (
	ModeDryRun RunMode = "dry_run"
	ModeLive   RunMode = "live"
)

// PortfolioSnapshot is the append-only audit record written once per cycle,
// including cycles that placed nothing.
type PortfolioSnapshot struct {
	CycleID          string           `json:"cycle_id"`
	Mode             RunMode          `json:"mode"`
	StartedAt        time.Time        `json:"started_at"`
	GeneratedAt      time.Time        `json:"generated_at"`
	Balance          *float64         `json:"balance"`
	OpenPositions    []Position       `json:"open_positions"`
	RecentOrders     []Order          `json:"recent_orders"`
	RecentFills      []Fill           `json:"recent_fills"`
	MarketsScanned   int              `json:"markets_scanned"`
	ReferencePrices  []ReferencePrice `json:"reference_prices"`
	Signals          []Signal         `json:"signals"`
	DryRunOrders     []Candidate      `json:"dry_run_orders,omitempty"`
	Rejections       []Rejection      `json:"rejections"`
	Skipped          []SkippedMarket  `json:"skipped"`
	AmbiguousOrders  []Order          `json:"ambiguous_orders"`
	KillSwitchActive bool             `json:"kill_switch_active"`
	Errors           []string         `json:"errors,omitempty"`
}
