package domain

import "time"

// SpotQuote is a single source's view of an underlying's spot price.
type SpotQuote struct {
	Price      float64
	ObservedAt time.Time
}

// SourceObservation is one attempt to read a price source. Failed attempts
// keep their error text so the snapshot explains what was dropped.
type SourceObservation struct {
	Source     string    `json:"source"`
	Price      float64   `json:"price,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the observation contributed a usable price.
func (o SourceObservation) OK() bool {
	return o.Error == ""
}

// ReferencePrice is the reconciled spot price for one underlying, valid for
// exactly one cycle.
type ReferencePrice struct {
	Underlying   string              `json:"underlying"`
	Price        float64             `json:"price"`
	Sources      []SourceObservation `json:"sources"`
	ReconciledAt time.Time           `json:"reconciled_at"`
	Reliable     bool                `json:"reliable"`
	Reason       string              `json:"reason,omitempty"`
}
