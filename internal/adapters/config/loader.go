// Package config provides the kiln.yaml settings loader.
package config

import (
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// DefaultFilename is the conventional settings file name.
const DefaultFilename = "kiln.yaml"

var _ ports.ConfigLoader = (*FileConfigLoader)(nil)

// FileConfigLoader implements ports.ConfigLoader using a YAML file.
type FileConfigLoader struct {
	Filename string
}

// Load reads the settings from the given working directory.
func (l *FileConfigLoader) Load(cwd string) (*domain.Settings, error) {
	name := l.Filename
	if name == "" {
		name = DefaultFilename
	}
	return Load(filepath.Join(cwd, name))
}

// Kilnfile represents the structure of the kiln.yaml settings file.
type Kilnfile struct {
	Version   string     `yaml:"version"`
	Roots     []string   `yaml:"roots"`
	Extension string     `yaml:"extension"`
	Policy    PolicyDTO  `yaml:"policy"`
	Workers   WorkersDTO `yaml:"workers"`
}

// PolicyDTO represents the selector policy section.
type PolicyDTO struct {
	FullRebuildThreshold float64 `yaml:"full_rebuild_threshold"`
}

// WorkersDTO represents the worker pool section.
type WorkersDTO struct {
	Size         int      `yaml:"size"`
	Queue        int      `yaml:"queue"`
	Timeout      string   `yaml:"timeout"`
	RecycleAfter int      `yaml:"recycle_after"`
	Command      []string `yaml:"command"`
}

// Load reads a settings file and returns validated domain settings. Roots
// are resolved relative to the file's directory.
func Load(path string) (*domain.Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read settings file")
	}

	var file Kilnfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, "failed to parse settings file")
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve settings directory")
	}

	roots := make([]string, len(file.Roots))
	for i, root := range file.Roots {
		if filepath.IsAbs(root) {
			roots[i] = filepath.Clean(root)
		} else {
			roots[i] = filepath.Join(base, root)
		}
	}

	settings := &domain.Settings{
		Roots: domain.SourceRootSet{
			Roots:     roots,
			Extension: file.Extension,
		},
		Policy: domain.SelectorPolicy{
			FullRebuildThreshold: file.Policy.FullRebuildThreshold,
		},
		Workers: domain.WorkerSettings{
			Size:         file.Workers.Size,
			QueueDepth:   file.Workers.Queue,
			RecycleAfter: file.Workers.RecycleAfter,
			Command:      file.Workers.Command,
		},
	}

	if file.Workers.Timeout != "" {
		timeout, err := time.ParseDuration(file.Workers.Timeout)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid worker timeout"), "timeout", file.Workers.Timeout)
		}
		settings.Workers.Timeout = timeout
	}

	if err := settings.Roots.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}
