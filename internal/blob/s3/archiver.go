package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// SnapshotSink uploads each cycle's snapshot as its own object, keyed
// snapshots/YYYY/MM/DD/<cycle>-<mode>.json.
type SnapshotSink struct {
	writer domain.BlobWriter
}

// NewSnapshotSink creates a SnapshotSink.
func NewSnapshotSink(w domain.BlobWriter) *SnapshotSink {
	return &SnapshotSink{writer: w}
}

// Name implements domain.SnapshotSink.
func (s *SnapshotSink) Name() string { return "s3" }

// Append implements domain.SnapshotSink.
func (s *SnapshotSink) Append(ctx context.Context, snap domain.PortfolioSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("s3blob: marshal snapshot %s: %w", snap.CycleID, err)
	}
	return s.writer.Put(ctx, SnapshotKey(snap), bytes.NewReader(b), "application/json")
}

// SnapshotKey is the object path for one snapshot.
func SnapshotKey(snap domain.PortfolioSnapshot) string {
	t := snap.StartedAt.UTC()
	if t.IsZero() {
		t = snap.GeneratedAt.UTC()
	}
	return fmt.Sprintf("snapshots/%s/%s-%s.json", t.Format("2006/01/02"), snap.CycleID, snap.Mode)
}

// HistoryReader yields the local snapshot history.
type HistoryReader interface {
	ReadAll(ctx context.Context) ([]domain.PortfolioSnapshot, error)
}

type existChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver uploads the local snapshot history as one JSONL object per
// calendar month, plus a timestamped copy of the risk state file. Months
// that already have an object are skipped unless they are the current
// month, which is re-uploaded as it grows.
type Archiver struct {
	writer    domain.BlobWriter
	history   HistoryReader
	statePath string
	logger    *slog.Logger
	parallel  int
	now       func() time.Time
}

// NewArchiver creates an Archiver. An empty statePath skips the state copy.
func NewArchiver(w domain.BlobWriter, history HistoryReader, statePath string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    w,
		history:   history,
		statePath: statePath,
		logger:    logger.With(slog.String("component", "archiver")),
		parallel:  4,
		now:       time.Now,
	}
}

// ArchiveResult summarises one archive run.
type ArchiveResult struct {
	Uploaded  []string `json:"uploaded"`
	Skipped   []string `json:"skipped"`
	Snapshots int      `json:"snapshots"`
	StateKey  string   `json:"state_key,omitempty"`
}

// Run groups the history by month and uploads the months concurrently.
func (a *Archiver) Run(ctx context.Context) (ArchiveResult, error) {
	snaps, err := a.history.ReadAll(ctx)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("s3blob: read history: %w", err)
	}

	byMonth := make(map[string][]domain.PortfolioSnapshot)
	for _, s := range snaps {
		month := s.StartedAt.UTC().Format("2006-01")
		byMonth[month] = append(byMonth[month], s)
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	now := a.now().UTC()
	current := now.Format("2006-01")
	results := make([]bool, len(months))
	var stateKey string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	if a.statePath != "" {
		g.Go(func() error {
			f, err := os.Open(a.statePath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return fmt.Errorf("s3blob: open state: %w", err)
			}
			defer f.Close()
			key := fmt.Sprintf("archive/state/risk_state-%s.json", now.Format("20060102T150405Z"))
			if err := a.writer.Put(gctx, key, f, "application/json"); err != nil {
				return err
			}
			stateKey = key
			return nil
		})
	}
	for i, month := range months {
		g.Go(func() error {
			path := archivePath(month)
			if ec, ok := a.writer.(existChecker); ok && month != current {
				exists, err := ec.Exists(gctx, path)
				if err != nil {
					return err
				}
				if exists {
					return nil
				}
			}
			buf, err := marshalJSONL(byMonth[month])
			if err != nil {
				return fmt.Errorf("s3blob: encode %s: %w", month, err)
			}
			if err := a.writer.PutMultipart(gctx, path, bytes.NewReader(buf), minPartSize); err != nil {
				return err
			}
			results[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ArchiveResult{}, err
	}

	res := ArchiveResult{Snapshots: len(snaps), StateKey: stateKey}
	for i, month := range months {
		if results[i] {
			res.Uploaded = append(res.Uploaded, archivePath(month))
		} else {
			res.Skipped = append(res.Skipped, archivePath(month))
		}
	}
	a.logger.InfoContext(ctx, "archiver: history archived",
		slog.Int("snapshots", res.Snapshots),
		slog.Int("uploaded", len(res.Uploaded)),
		slog.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func archivePath(month string) string {
	return fmt.Sprintf("archive/snapshots/%s.jsonl", month)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.SnapshotSink = (*SnapshotSink)(nil)
