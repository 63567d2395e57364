// Package filestore persists the risk state, the snapshot history, and the
// cycle lock on the local filesystem.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// StateStore keeps RiskState in a single JSON document.
type StateStore struct {
	path string
}

// NewStateStore returns a store for the document at path. The parent
// directory is created on first save.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the document location.
func (s *StateStore) Path() string { return s.path }

// Load reads the document. A missing or empty file yields a fresh state; a
// document that does not decode wraps domain.ErrStateCorrupt.
func (s *StateStore) Load(_ context.Context) (*domain.RiskState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewRiskState(), nil
		}
		return nil, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return domain.NewRiskState(), nil
	}

	var st domain.RiskState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w: %v", s.path, domain.ErrStateCorrupt, err)
	}
	st.Normalize()
	return &st, nil
}

// Save replaces the document atomically: the new content is written to a
// temporary file in the same directory, synced, and renamed over the old one.
func (s *StateStore) Save(_ context.Context, st *domain.RiskState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode state: %w", err)
	}
	return writeAtomic(s.path, b)
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(b); err != nil {
		cleanup()
		return fmt.Errorf("filestore: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("filestore: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: rename %s: %w", path, err)
	}
	return nil
}

var _ domain.StateStore = (*StateStore)(nil)
