package domain

import (
	"context"
	"time"
)

// StateStore loads and atomically replaces the persisted RiskState.
type StateStore interface {
	Load(ctx context.Context) (*RiskState, error)
	Save(ctx context.Context, state *RiskState) error
}

// SnapshotSink receives the snapshot of every finished cycle. The JSONL
// history is the primary sink; database and object storage are optional.
type SnapshotSink interface {
	Name() string
	Append(ctx context.Context, snap PortfolioSnapshot) error
}

// LockManager provides an exclusive lock around one cycle.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
