package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

const (
	defaultSnapshotStream = "strikearb:snapshots"
	streamMaxLen          = 10_000
)

// SnapshotStream publishes each cycle snapshot to a Redis stream for
// dashboards and alerting consumers.
type SnapshotStream struct {
	rdb    *redis.Client
	stream string
}

// NewSnapshotStream creates a SnapshotStream. An empty stream name uses
// "strikearb:snapshots".
func NewSnapshotStream(c *Client, stream string) *SnapshotStream {
	if stream == "" {
		stream = defaultSnapshotStream
	}
	return &SnapshotStream{rdb: c.Underlying(), stream: stream}
}

// Name implements domain.SnapshotSink.
func (s *SnapshotStream) Name() string { return "redis" }

// Append adds the snapshot with XADD, trimming the stream to roughly the
// last ten thousand entries.
func (s *SnapshotStream) Append(ctx context.Context, snap domain.PortfolioSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.CycleID, err)
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"cycle_id":  snap.CycleID,
			"mode":      string(snap.Mode),
			"ambiguous": len(snap.AmbiguousOrders),
			"payload":   payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", s.stream, err)
	}
	return nil
}

var _ domain.SnapshotSink = (*SnapshotStream)(nil)
