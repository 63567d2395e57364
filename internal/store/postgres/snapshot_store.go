package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// SnapshotStore implements domain.SnapshotSink using PostgreSQL. Besides the
// snapshot row it upserts every ledger entry the snapshot references.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Name implements domain.SnapshotSink.
func (s *SnapshotStore) Name() string { return "postgres" }

// Append stores snap. Re-appending the same cycle and mode overwrites the
// earlier row.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.PortfolioSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("postgres: marshal snapshot %s: %w", snap.CycleID, err)
	}

	const upsertSnapshot = `
		INSERT INTO cycle_snapshots (
			cycle_id, mode, started_at, generated_at, markets_scanned,
			signals, rejections, ambiguous_orders, kill_switch_active,
			balance, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (cycle_id, mode) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			markets_scanned = EXCLUDED.markets_scanned,
			signals = EXCLUDED.signals,
			rejections = EXCLUDED.rejections,
			ambiguous_orders = EXCLUDED.ambiguous_orders,
			kill_switch_active = EXCLUDED.kill_switch_active,
			balance = EXCLUDED.balance,
			snapshot = EXCLUDED.snapshot`

	const upsertOrder = `
		INSERT INTO order_ledger (
			idempotency_key, cycle_id, market_id, side, size, limit_price,
			status, venue_order_id, message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			status = EXCLUDED.status,
			venue_order_id = EXCLUDED.venue_order_id,
			message = EXCLUDED.message,
			updated_at = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	batch.Queue(upsertSnapshot,
		snap.CycleID, string(snap.Mode), snap.StartedAt, snap.GeneratedAt,
		snap.MarketsScanned, len(snap.Signals), len(snap.Rejections),
		len(snap.AmbiguousOrders), snap.KillSwitchActive, snap.Balance, body,
	)
	for _, o := range append(append([]domain.Order(nil), snap.RecentOrders...), snap.AmbiguousOrders...) {
		batch.Queue(upsertOrder,
			o.IdempotencyKey, o.CycleID, o.MarketID, string(o.Side), o.Size, o.LimitPrice,
			string(o.Status), o.VenueOrderID, o.Message, o.CreatedAt, o.UpdatedAt,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: append snapshot %s: %w", snap.CycleID, err)
	}
	return nil
}

// Latest returns the most recent snapshots, newest first.
func (s *SnapshotStore) Latest(ctx context.Context, limit int) ([]domain.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot FROM cycle_snapshots ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		var snap domain.PortfolioSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("postgres: decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

var _ domain.SnapshotSink = (*SnapshotStore)(nil)
