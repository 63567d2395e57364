package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func TestObserveAndWriteTextfile(t *testing.T) {
	start := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	snap := domain.PortfolioSnapshot{
		CycleID:        "c1",
		Mode:           domain.ModeDryRun,
		StartedAt:      start,
		GeneratedAt:    start.Add(4 * time.Second),
		MarketsScanned: 7,
		ReferencePrices: []domain.ReferencePrice{
			{Underlying: "BTC-USD", Price: 67000, Reliable: true},
		},
		Signals: []domain.Signal{
			{Action: domain.ActionBuyYes}, {Action: domain.ActionHold}, {Action: domain.ActionHold},
		},
		Rejections:       []domain.Rejection{{Reason: domain.RejectKillSwitch}},
		KillSwitchActive: true,
	}

	c := NewCycle()
	c.Observe(snap)

	mfs, err := c.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["strikearb_markets_scanned"])
	assert.True(t, names["strikearb_signals"])
	assert.True(t, names["strikearb_kill_switch_active"])

	path := filepath.Join(t.TempDir(), "textfile", "strikearb.prom")
	require.NoError(t, c.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, "strikearb_markets_scanned 7")
	assert.Contains(t, body, `strikearb_signals{action="hold"} 2`)
	assert.Contains(t, body, `strikearb_risk_rejections{reason="kill_switch"} 1`)
	assert.Contains(t, body, `strikearb_cycle_duration_seconds{mode="dry_run"} 4`)
}
