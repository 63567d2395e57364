package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// FileLock guards a cycle with an exclusively created file. A lock older
// than its TTL is treated as abandoned by a crashed process and taken over.
type FileLock struct {
	dir string
	now func() time.Time
}

// NewFileLock places lock files under dir.
func NewFileLock(dir string) *FileLock {
	return &FileLock{dir: dir, now: time.Now}
}

// Acquire creates <dir>/<key>. It returns domain.ErrLockHeld when a live
// lock exists.
func (l *FileLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir %s: %w", l.dir, err)
	}
	path := filepath.Join(l.dir, key)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + " " + l.now().UTC().Format(time.RFC3339) + "\n")
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("filestore: create lock %s: %w", path, err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// Released between the create and the stat.
			continue
		}
		if ttl <= 0 || l.now().Sub(info.ModTime()) < ttl {
			return nil, fmt.Errorf("filestore: %s: %w", path, domain.ErrLockHeld)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("filestore: remove stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("filestore: %s: %w", path, domain.ErrLockHeld)
}

var _ domain.LockManager = (*FileLock)(nil)
