package domain

import (
	"maps"
	"time"
)

// RejectReason names the risk gate that stopped a candidate.
type RejectReason string

const (
	RejectKillSwitch        RejectReason = "kill_switch"
	RejectMarketSuspended   RejectReason = "market_suspended"
	RejectPerMarketCap      RejectReason = "per_market_cap"
	RejectPerRunOrderCap    RejectReason = "per_run_order_cap"
	RejectPerRunNotionalCap RejectReason = "per_run_notional_cap"
	RejectMaxOrderSize      RejectReason = "max_order_size"
)

// Rejection is a recorded refusal of one candidate order.
type Rejection struct {
	Reason            RejectReason `json:"reason"`
	MarketID          string       `json:"market_id"`
	Side              Side         `json:"side"`
	CandidateNotional float64      `json:"candidate_notional"`
	Detail            string       `json:"detail"`
}

// RiskState is the only cross-cycle state. It is loaded from disk when a
// cycle starts and written back atomically when it ends.
type RiskState struct {
	PerMarketExposure  map[string]float64 `json:"per_market_exposure"`
	PerRunOrdersPlaced int                `json:"per_run_orders_placed"`
	PerRunNotional     float64            `json:"per_run_notional"`
	KillSwitchActive   bool               `json:"kill_switch_active"`
	Ledger             map[string]Order   `json:"ledger"`
	LastCycleID        string             `json:"last_cycle_id,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewRiskState returns an empty state with initialised maps.
func NewRiskState() *RiskState {
	return &RiskState{
		PerMarketExposure: make(map[string]float64),
		Ledger:            make(map[string]Order),
	}
}

// Normalize fills nil maps left by decoding an older or empty document.
func (s *RiskState) Normalize() {
	if s.PerMarketExposure == nil {
		s.PerMarketExposure = make(map[string]float64)
	}
	if s.Ledger == nil {
		s.Ledger = make(map[string]Order)
	}
}

// ResetRun prepares the state for a cycle. The per-run counters are cleared
// only when cycleID differs from the last cycle, so a rerun of the same cycle
// keeps counting against the caps it already used.
func (s *RiskState) ResetRun(cycleID string) {
	if s.LastCycleID != cycleID {
		s.PerRunOrdersPlaced = 0
		s.PerRunNotional = 0
	}
	s.KillSwitchActive = false
	s.LastCycleID = cycleID
}

// Clone returns a deep copy so dry runs can gate without touching the
// persisted state.
func (s *RiskState) Clone() *RiskState {
	out := *s
	out.PerMarketExposure = maps.Clone(s.PerMarketExposure)
	out.Ledger = maps.Clone(s.Ledger)
	out.Normalize()
	return &out
}

// Ambiguous returns every ledger entry still awaiting manual reconciliation.
func (s *RiskState) Ambiguous() []Order {
	var out []Order
	for _, o := range s.Ledger {
		if o.Status == OrderStatusAmbiguous {
			out = append(out, o)
		}
	}
	return out
}

// MarketSuspended reports whether the market has an unresolved ambiguous
// order.
func (s *RiskState) MarketSuspended(marketID string) bool {
	for _, o := range s.Ledger {
		if o.MarketID == marketID && o.Status == OrderStatusAmbiguous {
			return true
		}
	}
	return false
}

// PruneLedger drops resolved entries older than cutoff. Ambiguous entries and
// entries of keepCycle are kept regardless of age.
func (s *RiskState) PruneLedger(cutoff time.Time, keepCycle string) int {
	n := 0
	for k, o := range s.Ledger {
		if o.Status == OrderStatusAmbiguous || o.CycleID == keepCycle {
			continue
		}
		if o.UpdatedAt.Before(cutoff) {
			delete(s.Ledger, k)
			n++
		}
	}
	return n
}
