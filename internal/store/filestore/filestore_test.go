package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(filepath.Join(t.TempDir(), "state", "risk_state.json"))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Ledger)

	st.PerMarketExposure["M"] = 42.5
	st.Ledger["k"] = domain.Order{IdempotencyKey: "k", MarketID: "M", Status: domain.OrderStatusAmbiguous}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.PerMarketExposure["M"])
	assert.Equal(t, domain.OrderStatusAmbiguous, got.Ledger["k"].Status)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStateStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"per_market_exposure":`), 0o644))

	_, err := NewStateStore(path).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStateCorrupt)
}

func TestStateStore_EmptyFileIsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	st, err := NewStateStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, st.PerMarketExposure)
}

func TestSnapshotLog_AppendsLines(t *testing.T) {
	ctx := context.Background()
	log := NewSnapshotLog(filepath.Join(t.TempDir(), "snapshots.jsonl"))

	require.NoError(t, log.Append(ctx, domain.PortfolioSnapshot{CycleID: "c1", Mode: domain.ModeDryRun}))
	require.NoError(t, log.Append(ctx, domain.PortfolioSnapshot{CycleID: "c2", Mode: domain.ModeLive}))

	f, err := os.OpenFile(log.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString(`{"cycle_id":"c3"`)
	require.NoError(t, f.Close())

	snaps, err := log.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "c1", snaps[0].CycleID)
	assert.Equal(t, domain.ModeLive, snaps[1].Mode)
}

func TestFileLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	lock := NewFileLock(t.TempDir())

	unlock, err := lock.Acquire(ctx, "cycle.lock", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "cycle.lock", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock2, err := lock.Acquire(ctx, "cycle.lock", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestFileLock_StaleTakenOver(t *testing.T) {
	ctx := context.Background()
	lock := NewFileLock(t.TempDir())

	_, err := lock.Acquire(ctx, "cycle.lock", time.Minute)
	require.NoError(t, err)

	lock.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	unlock, err := lock.Acquire(ctx, "cycle.lock", time.Minute)
	require.NoError(t, err)
	unlock()
}
