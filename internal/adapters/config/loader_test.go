package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/kiln/internal/adapters/config"
)

func writeSettings(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, config.DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `
version: "1"
roots:
  - src
  - /abs/gen
extension: .src
policy:
  full_rebuild_threshold: 0.5
workers:
  size: 4
  queue: 8
  timeout: 30s
  recycle_after: 100
  command: ["kiln-worker", "--compile"]
`)

	settings, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "src"), "/abs/gen"}, settings.Roots.Roots)
	assert.Equal(t, ".src", settings.Roots.Extension)
	assert.InDelta(t, 0.5, settings.Policy.Threshold(), 1e-9)
	assert.Equal(t, 4, settings.Workers.Size)
	assert.Equal(t, 8, settings.Workers.QueueDepth)
	assert.Equal(t, 30*time.Second, settings.Workers.Timeout)
	assert.Equal(t, 100, settings.Workers.RecycleAfter)
	assert.Equal(t, []string{"kiln-worker", "--compile"}, settings.Workers.Command)
}

func TestLoad_DefaultThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `
roots: [src]
extension: .src
`)

	settings, err := config.Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, settings.Policy.Threshold(), 1e-9)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `
roots: [src]
extension: .src
workers:
  timeout: soon
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidRoots(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `
roots: []
extension: .src
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestFileConfigLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, `
roots: [src]
extension: .src
`)

	loader := &config.FileConfigLoader{}
	settings, err := loader.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "src")}, settings.Roots.Roots)
}
