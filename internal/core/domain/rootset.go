package domain

import (
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// UnitSeparator joins the segments of a compiled unit name.
const UnitSeparator = "."

// SourceRootSet is an ordered sequence of absolute source root directories
// sharing one file-extension filter. A source file's compiled unit name is
// derived from its path relative to the most specific (longest prefix)
// matching root.
type SourceRootSet struct {
	// Roots are absolute directory paths, in configuration order.
	Roots []string `yaml:"roots" json:"roots"`
	// Extension is the source file extension including the leading dot,
	// e.g. ".src".
	Extension string `yaml:"extension" json:"extension"`
}

// Validate checks the root set for configuration errors. Malformed root sets
// are fatal to the calling operation, not retryable.
func (r SourceRootSet) Validate() error {
	if len(r.Roots) == 0 {
		return zerr.Wrap(ErrInvalidRootSet, "no source roots configured")
	}
	for _, root := range r.Roots {
		if !filepath.IsAbs(root) {
			return zerr.With(zerr.Wrap(ErrInvalidRootSet, "source root must be absolute"), "root", root)
		}
	}
	if !strings.HasPrefix(r.Extension, ".") {
		return zerr.With(zerr.Wrap(ErrInvalidRootSet, "extension must start with a dot"), "extension", r.Extension)
	}
	return nil
}

// Identity returns a stable string identifying this root set for persisted
// state keying. Roots participate in configuration order.
func (r SourceRootSet) Identity() string {
	var b strings.Builder
	for _, root := range r.Roots {
		b.WriteString(filepath.Clean(root))
		b.WriteByte(0)
	}
	b.WriteString(r.Extension)
	return b.String()
}
