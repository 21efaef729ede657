package fs

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.UnitResolver = (*Resolver)(nil)

// Resolver implements ports.UnitResolver by convention: a unit's name is its
// source path relative to the most specific matching root, with separators
// replaced by dots and the extension stripped.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// UnitsForSource derives the primary unit name(s) for a source path.
func (r *Resolver) UnitsForSource(path string, roots domain.SourceRootSet) ([]domain.InternedString, error) {
	if err := roots.Validate(); err != nil {
		return nil, err
	}

	rel, ok := relativeToBestRoot(path, roots.Roots)
	if !ok {
		err := zerr.With(domain.ErrOutsideRoots, "path", path)
		return nil, zerr.With(err, "roots", strings.Join(roots.Roots, string(os.PathListSeparator)))
	}

	if !strings.HasSuffix(rel, roots.Extension) {
		err := zerr.With(domain.ErrOutsideRoots, "path", path)
		return nil, zerr.With(err, "expected_extension", roots.Extension)
	}
	rel = strings.TrimSuffix(rel, roots.Extension)

	name := strings.ReplaceAll(filepath.ToSlash(rel), "/", domain.UnitSeparator)
	return []domain.InternedString{domain.NewInternedString(name)}, nil
}

// SourceForUnit reconstructs the source path for a unit name, probing roots
// in configuration order for an existing file.
func (r *Resolver) SourceForUnit(unit domain.InternedString, roots domain.SourceRootSet) (string, error) {
	if err := roots.Validate(); err != nil {
		return "", err
	}

	rel := filepath.FromSlash(strings.ReplaceAll(unit.String(), domain.UnitSeparator, "/")) + roots.Extension
	for _, root := range roots.Roots {
		candidate := filepath.Join(root, rel)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", zerr.With(domain.ErrUnitNotFound, "unit", unit.String())
}

// relativeToBestRoot resolves path against the root with the longest
// matching prefix. Overlapping roots are legal; the most specific one wins.
func relativeToBestRoot(path string, candidateRoots []string) (string, bool) {
	path = filepath.Clean(path)

	bestLen := -1
	bestRel := ""
	for _, root := range candidateRoots {
		root = filepath.Clean(root)
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
			continue
		}
		if len(root) > bestLen {
			bestLen = len(root)
			bestRel = rel
		}
	}
	return bestRel, bestLen >= 0
}
