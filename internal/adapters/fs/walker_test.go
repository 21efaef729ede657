package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.trai.ch/kiln/internal/adapters/fs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWalker_WalkSources(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.src"), "a")
	writeFile(t, filepath.Join(root, "pkg", "b.src"), "b")
	writeFile(t, filepath.Join(root, "pkg", "readme.md"), "docs")
	writeFile(t, filepath.Join(root, ".git", "c.src"), "vcs")
	writeFile(t, filepath.Join(root, ".jj", "d.src"), "vcs")

	var got []string
	for path := range fs.NewWalker().WalkSources(root, ".src") {
		got = append(got, path)
	}
	slices.Sort(got)

	want := []string{
		filepath.Join(root, "a.src"),
		filepath.Join(root, "pkg", "b.src"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("walked %v, want %v", got, want)
	}
}

func TestWalker_WalkSources_MissingRoot(t *testing.T) {
	for range fs.NewWalker().WalkSources(filepath.Join(t.TempDir(), "absent"), ".src") {
		t.Fatal("missing root must yield no sources")
	}
}

func TestWalker_WalkSources_EarlyStop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.src"), "a")
	writeFile(t, filepath.Join(root, "b.src"), "b")

	count := 0
	for range fs.NewWalker().WalkSources(root, ".src") {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected a single yielded source, got %d", count)
	}
}
