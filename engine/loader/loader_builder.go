package loader

import (
	"github.com/shadowP12/visibility-buffer/common"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger sets the logger used for import warnings such as skipped primitives.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger common.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithScene pre-populates the scene cache.
//
// Parameters:
//   - key: the cache key
//   - scene: the scene to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the scene option to a loader
func WithScene(key string, scene *common.ImportedScene) LoaderBuilderOption {
	return func(l *loader) {
		l.sceneCache[key] = scene
	}
}
