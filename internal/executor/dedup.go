package executor

import (
	"github.com/google/uuid"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// keyNamespace scopes idempotency keys to this engine so they cannot
// collide with client order ids minted elsewhere on the same account.
var keyNamespace = uuid.MustParse("6f1c3b0e-2a57-5d8e-9b41-7c0a1e4f2d93")

// IdempotencyKey derives the key for one (market, cycle, side) triple. The
// same triple always yields the same key, across processes and restarts.
func IdempotencyKey(marketID, cycleID string, side domain.Side) string {
	return uuid.NewSHA1(keyNamespace, []byte(marketID+"|"+cycleID+"|"+string(side))).String()
}

// Seen returns the ledger entry for key, if one exists. Any entry, whatever
// its status, means the triple has already been attempted.
func Seen(state *domain.RiskState, key string) (domain.Order, bool) {
	o, ok := state.Ledger[key]
	return o, ok
}

// Reconcile converts pending entries left by an interrupted run into
// ambiguous ones. It returns the keys it changed.
func Reconcile(state *domain.RiskState) []string {
	var keys []string
	for k, o := range state.Ledger {
		if o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusAmbiguous
			o.Message = "pending at load: outcome unknown"
			state.Ledger[k] = o
			keys = append(keys, k)
		}
	}
	return keys
}
