// Package fs provides the filesystem adapters: source tree walking, metadata
// snapshotting, and source-to-unit-name resolution.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Walker enumerates source files under a root directory.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkSources yields every file under root whose name carries the given
// extension. VCS metadata directories are skipped. Walk errors below the root
// are swallowed: a subtree that cannot be read simply contributes no sources,
// and its files surface as Missing on the next snapshot comparison.
func (w *Walker) WalkSources(root, ext string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if name := d.Name(); name == ".git" || name == ".jj" {
					return filepath.SkipDir
				}
				return nil
			}

			if filepath.Ext(path) != ext {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
