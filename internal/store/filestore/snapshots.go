package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// maxLine bounds a single snapshot line when reading history back.
const maxLine = 16 << 20

// SnapshotLog appends one JSON line per cycle.
type SnapshotLog struct {
	path string
}

// NewSnapshotLog returns a log writing to path.
func NewSnapshotLog(path string) *SnapshotLog {
	return &SnapshotLog{path: path}
}

// Name implements domain.SnapshotSink.
func (l *SnapshotLog) Name() string { return "jsonl" }

// Path returns the log location.
func (l *SnapshotLog) Path() string { return l.path }

// Append writes snap as a single line and syncs it.
func (l *SnapshotLog) Append(_ context.Context, snap domain.PortfolioSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("filestore: encode snapshot %s: %w", snap.CycleID, err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("filestore: append %s: %w", l.path, err)
	}
	return f.Sync()
}

// ReadAll decodes every line. A truncated final line, left by a crash
// mid-append, is skipped.
func (l *SnapshotLog) ReadAll(_ context.Context) ([]domain.PortfolioSnapshot, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: open %s: %w", l.path, err)
	}
	defer f.Close()

	var out []domain.PortfolioSnapshot
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap domain.PortfolioSnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("filestore: scan %s: %w", l.path, err)
	}
	return out, nil
}

var _ domain.SnapshotSink = (*SnapshotLog)(nil)
