package ports

import "go.trai.ch/kiln/internal/core/domain"

// AnalysisStore persists the dependency analysis record between build
// invocations.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type AnalysisStore interface {
	// Load retrieves the record for the given key. Any problem reading the
	// record (missing file, corrupt data, version or fingerprint mismatch)
	// is reported as domain.ErrStaleAnalysis, never as a hard failure.
	Load(key domain.StateKey) (*domain.AnalysisRecord, error)

	// Save atomically replaces the record for its key. Either the new
	// record is fully committed or the prior one is kept.
	Save(record *domain.AnalysisRecord) error
}
