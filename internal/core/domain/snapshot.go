// Package domain contains the core domain models for incremental build
// analysis: file snapshots, compiled unit names, the dependency analysis, and
// the work item lifecycle.
package domain

// FileKind classifies what a snapshot observed at a path.
type FileKind int

const (
	// Missing indicates nothing stat-able exists at the path. Filesystem
	// errors (permissions, races) are folded into Missing as well.
	Missing FileKind = iota
	// RegularFile indicates a regular file.
	RegularFile
	// Directory indicates a directory.
	Directory
)

// String returns the string representation of the FileKind.
func (k FileKind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	default:
		return "missing"
	}
}

// FileSnapshot is a point-in-time metadata fingerprint of a filesystem path.
// It never carries file content; change detection compares metadata only.
// Snapshots are immutable values.
type FileSnapshot struct {
	Path string   `json:"path"`
	Kind FileKind `json:"kind"`
	// ModTimeMillis is the last modification time in milliseconds since the
	// Unix epoch, at the finest resolution the platform offers. Meaningless
	// when Kind is Missing.
	ModTimeMillis int64 `json:"mtime_ms,omitempty"`
	// Length is the file size in bytes. Meaningless when Kind is Missing.
	Length int64 `json:"length,omitempty"`
}

// Equal reports whether two snapshots observed the same state. Missing
// snapshots compare equal regardless of their timestamp and length fields.
func (s FileSnapshot) Equal(o FileSnapshot) bool {
	if s.Kind != o.Kind {
		return false
	}
	if s.Kind == Missing {
		return true
	}
	return s.ModTimeMillis == o.ModTimeMillis && s.Length == o.Length
}
