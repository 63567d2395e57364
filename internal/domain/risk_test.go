package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskState_PruneLedgerKeepsAmbiguous(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-30 * 24 * time.Hour)

	s := NewRiskState()
	s.Ledger["old-confirmed"] = Order{Status: OrderStatusConfirmed, UpdatedAt: old}
	s.Ledger["old-ambiguous"] = Order{Status: OrderStatusAmbiguous, UpdatedAt: old}
	s.Ledger["fresh-failed"] = Order{Status: OrderStatusFailed, UpdatedAt: now}
	s.Ledger["old-current"] = Order{Status: OrderStatusConfirmed, CycleID: "c1", UpdatedAt: old}

	n := s.PruneLedger(now.Add(-7*24*time.Hour), "c1")
	assert.Equal(t, 1, n)
	assert.NotContains(t, s.Ledger, "old-confirmed")
	assert.Contains(t, s.Ledger, "old-ambiguous")
	assert.Contains(t, s.Ledger, "fresh-failed")
	assert.Contains(t, s.Ledger, "old-current")
}

func TestRiskState_CloneIsDeep(t *testing.T) {
	s := NewRiskState()
	s.PerMarketExposure["A"] = 10
	s.Ledger["k"] = Order{MarketID: "A"}

	c := s.Clone()
	c.PerMarketExposure["A"] = 99
	c.Ledger["k2"] = Order{MarketID: "B"}
	c.PerRunOrdersPlaced = 3

	assert.Equal(t, 10.0, s.PerMarketExposure["A"])
	assert.Len(t, s.Ledger, 1)
	assert.Zero(t, s.PerRunOrdersPlaced)
}

func TestRiskState_MarketSuspendedAndResetRun(t *testing.T) {
	s := &RiskState{}
	s.Normalize()
	require.NotNil(t, s.Ledger)

	s.Ledger["k"] = Order{MarketID: "A", Status: OrderStatusAmbiguous}
	s.Ledger["k2"] = Order{MarketID: "B", Status: OrderStatusConfirmed}
	assert.True(t, s.MarketSuspended("A"))
	assert.False(t, s.MarketSuspended("B"))
	assert.Len(t, s.Ambiguous(), 1)

	s.PerRunOrdersPlaced, s.PerRunNotional, s.KillSwitchActive = 4, 80, true
	s.ResetRun("c9")
	assert.Zero(t, s.PerRunOrdersPlaced)
	assert.Zero(t, s.PerRunNotional)
	assert.False(t, s.KillSwitchActive)
	assert.Equal(t, "c9", s.LastCycleID)
}

func TestRiskState_ResetRunKeepsCountersForSameCycle(t *testing.T) {
	s := NewRiskState()
	s.LastCycleID = "c1"
	s.PerRunOrdersPlaced, s.PerRunNotional, s.KillSwitchActive = 2, 120, true

	s.ResetRun("c1")
	assert.Equal(t, 2, s.PerRunOrdersPlaced)
	assert.InDelta(t, 120.0, s.PerRunNotional, 1e-9)
	assert.False(t, s.KillSwitchActive)

	s.ResetRun("c2")
	assert.Zero(t, s.PerRunOrdersPlaced)
	assert.Zero(t, s.PerRunNotional)
}
