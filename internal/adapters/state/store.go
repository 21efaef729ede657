// Package state persists the dependency analysis record between build
// invocations as a single versioned JSON document per state key.
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/zerr"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// DefaultDir is the state directory used when the orchestrator does not
// configure one.
const DefaultDir = ".kiln/state"

var _ ports.AnalysisStore = (*Store)(nil)

// Store implements ports.AnalysisStore with one JSON file per state key.
// Writes are atomic: the record is staged to a temp file and renamed into
// place, so a crashed or cancelled build never leaves a half-written record.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

func (s *Store) recordPath(key domain.StateKey) string {
	return filepath.Join(s.dir, domain.StateID(key)+".json")
}

// Load retrieves the record for the given key. Every failure mode — missing
// file, unreadable file, corrupt JSON, version mismatch, key mismatch — is
// reported as domain.ErrStaleAnalysis so callers degrade to a full rebuild
// instead of failing the build.
func (s *Store) Load(key domain.StateKey) (*domain.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(key)
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the state key hash
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrStaleAnalysis, "no recorded analysis"), "path", path)
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrStaleAnalysis, err.Error()), "path", path)
	}

	var record domain.AnalysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrStaleAnalysis, "corrupt analysis record"), "path", path)
	}

	if record.Version != domain.AnalysisRecordVersion {
		err := zerr.Wrap(domain.ErrStaleAnalysis, "analysis record version mismatch")
		return nil, zerr.With(err, "recorded_version", record.Version)
	}
	if record.Fingerprint != key.Fingerprint || record.RootsID != key.RootsID {
		return nil, zerr.Wrap(domain.ErrStaleAnalysis, "analysis recorded under a different configuration")
	}

	if record.Analysis.Units == nil {
		record.Analysis = domain.NewAnalysis()
	}
	if record.Snapshots == nil {
		record.Snapshots = make(map[string]domain.FileSnapshot)
	}
	return &record, nil
}

// Save atomically replaces the record for its key.
func (s *Store) Save(record *domain.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Version = domain.AnalysisRecordVersion

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal analysis record")
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(s.dir, "analysis-*.tmp")
	if err != nil {
		return zerr.Wrap(err, "failed to stage analysis record")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write analysis record")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to close staged analysis record")
	}

	if err := os.Rename(tmpName, s.recordPath(record.Key())); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to commit analysis record")
	}
	return nil
}
