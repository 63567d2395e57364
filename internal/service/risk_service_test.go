package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func newRiskService(t *testing.T) (*RiskService, string) {
	t.Helper()
	kill := filepath.Join(t.TempDir(), "KILL")
	return NewRiskService(RiskConfig{
		KillSwitchPath:    kill,
		PerMarketCap:      100,
		PerRunOrderCap:    3,
		PerRunNotionalCap: 150,
		MaxOrderSize:      200,
	}, discardLogger()), kill
}

func TestCheck_PerMarketCap(t *testing.T) {
	svc, _ := newRiskService(t)
	state := domain.NewRiskState()
	c := domain.Candidate{MarketID: "M", Side: domain.SideYes, Size: 100, LimitPrice: 0.60}

	require.Nil(t, svc.Check(context.Background(), state, c))
	svc.Commit(state, domain.Order{MarketID: "M", Side: domain.SideYes, Size: 100, LimitPrice: 0.60, Status: domain.OrderStatusConfirmed})
	assert.InDelta(t, 60, state.PerMarketExposure["M"], 1e-9)

	rej := svc.Check(context.Background(), state, c)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectPerMarketCap, rej.Reason)
	assert.InDelta(t, 60, rej.CandidateNotional, 1e-9)
}

func TestCheck_KillSwitchReadEveryCall(t *testing.T) {
	svc, kill := newRiskService(t)
	state := domain.NewRiskState()
	c := domain.Candidate{MarketID: "M", Side: domain.SideYes, Size: 1, LimitPrice: 0.5}

	require.Nil(t, svc.Check(context.Background(), state, c))
	require.NoError(t, os.WriteFile(kill, nil, 0o600))

	rej := svc.Check(context.Background(), state, c)
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectKillSwitch, rej.Reason)
	assert.True(t, state.KillSwitchActive)
}

func TestCheck_KillSwitchBeatsOtherGates(t *testing.T) {
	svc, kill := newRiskService(t)
	require.NoError(t, os.WriteFile(kill, nil, 0o600))
	state := domain.NewRiskState()
	state.PerMarketExposure["M"] = 1000

	rej := svc.Check(context.Background(), state, domain.Candidate{MarketID: "M", Size: 500, LimitPrice: 0.5})
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectKillSwitch, rej.Reason)
}

func TestCheck_SuspendedMarket(t *testing.T) {
	svc, _ := newRiskService(t)
	state := domain.NewRiskState()
	state.Ledger["k1"] = domain.Order{IdempotencyKey: "k1", MarketID: "M", Status: domain.OrderStatusAmbiguous}

	rej := svc.Check(context.Background(), state, domain.Candidate{MarketID: "M", Size: 1, LimitPrice: 0.5})
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectMarketSuspended, rej.Reason)

	assert.Nil(t, svc.Check(context.Background(), state, domain.Candidate{MarketID: "N", Size: 1, LimitPrice: 0.5}))
}

func TestCheck_RunCaps(t *testing.T) {
	svc, _ := newRiskService(t)
	ctx := context.Background()

	state := domain.NewRiskState()
	state.PerRunOrdersPlaced = 3
	rej := svc.Check(ctx, state, domain.Candidate{MarketID: "M", Size: 1, LimitPrice: 0.5})
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectPerRunOrderCap, rej.Reason)

	state = domain.NewRiskState()
	state.PerRunNotional = 120
	rej = svc.Check(ctx, state, domain.Candidate{MarketID: "M", Size: 80, LimitPrice: 0.5})
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectPerRunNotionalCap, rej.Reason)
}

func TestCheck_MaxOrderSize(t *testing.T) {
	svc, _ := newRiskService(t)
	rej := svc.Check(context.Background(), domain.NewRiskState(), domain.Candidate{MarketID: "M", Size: 201, LimitPrice: 0.01})
	require.NotNil(t, rej)
	assert.Equal(t, domain.RejectMaxOrderSize, rej.Reason)
}

func TestCommit_IgnoresUnconfirmed(t *testing.T) {
	svc, _ := newRiskService(t)
	state := domain.NewRiskState()

	for _, st := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusFailed, domain.OrderStatusAmbiguous} {
		svc.Commit(state, domain.Order{MarketID: "M", Size: 10, LimitPrice: 0.5, Status: st})
	}
	assert.Zero(t, state.PerRunOrdersPlaced)
	assert.Zero(t, state.PerRunNotional)
	assert.Zero(t, state.PerMarketExposure["M"])
}

func TestReserve_AppliesToClone(t *testing.T) {
	svc, _ := newRiskService(t)
	state := domain.NewRiskState()
	dry := state.Clone()

	svc.Reserve(dry, domain.Candidate{MarketID: "M", Size: 100, LimitPrice: 0.6})
	assert.InDelta(t, 60, dry.PerMarketExposure["M"], 1e-9)
	assert.Zero(t, state.PerMarketExposure["M"])
}
