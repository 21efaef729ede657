package ports

import "go.trai.ch/kiln/internal/core/domain"

// ConfigLoader loads the engine settings for a working directory.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the settings from the given working directory.
	Load(cwd string) (*domain.Settings, error)
}
