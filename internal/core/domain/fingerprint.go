package domain

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// ConfigFingerprint creates a deterministic fingerprint from a set of
// toolchain configuration values (compiler version, options, classpath
// equivalent). An analysis recorded under a different fingerprint is stale.
func ConfigFingerprint(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	hasher := xxhash.New()
	for _, k := range keys {
		_, _ = hasher.WriteString(k)
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.WriteString(values[k])
		_, _ = hasher.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", hasher.Sum64())
}

// StateID derives the stable identifier a persisted analysis record is keyed
// by: the root set identity combined with the configuration fingerprint.
func StateID(key StateKey) string {
	hasher := xxhash.New()
	_, _ = hasher.WriteString(key.RootsID)
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.WriteString(key.Fingerprint)
	return fmt.Sprintf("%016x", hasher.Sum64())
}

// RootsID hashes a root set identity for use in a StateKey.
func RootsID(roots SourceRootSet) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(roots.Identity()))
}
