package domain

import "slices"

// ChangeSet is the result of diffing the current snapshot set against the
// snapshot set recorded in the previous analysis. It is computed once per
// invocation and consumed only by the selector.
type ChangeSet struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// DiffSnapshots compares the recorded snapshot set against the current one.
// Both maps are keyed by source path and contain only paths that existed at
// snapshot time. The returned slices are sorted for determinism.
func DiffSnapshots(recorded, current map[string]FileSnapshot) ChangeSet {
	var cs ChangeSet
	for path, cur := range current {
		prev, known := recorded[path]
		switch {
		case !known:
			cs.Added = append(cs.Added, path)
		case !prev.Equal(cur):
			cs.Modified = append(cs.Modified, path)
		}
	}
	for path := range recorded {
		if _, still := current[path]; !still {
			cs.Removed = append(cs.Removed, path)
		}
	}
	slices.Sort(cs.Added)
	slices.Sort(cs.Removed)
	slices.Sort(cs.Modified)
	return cs
}
