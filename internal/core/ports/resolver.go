package ports

import "go.trai.ch/kiln/internal/core/domain"

// UnitResolver maps source file locations to the compiled unit names they
// imply, and back. Only the primary location-derived names are resolved here;
// additional units defined inside a source file are recorded by the
// dependency analysis.
//
//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type UnitResolver interface {
	// UnitsForSource derives the compiled unit names for a source path.
	// Returns domain.ErrOutsideRoots if the path is under none of the
	// configured roots.
	UnitsForSource(path string, roots domain.SourceRootSet) ([]domain.InternedString, error)

	// SourceForUnit reconstructs the source path of a unit name. The
	// reconstruction is exact: for any file under a root, resolving its
	// unit name back yields the original path.
	SourceForUnit(unit domain.InternedString, roots domain.SourceRootSet) (string, error)
}
