package scene

import "github.com/shadowP12/visibility-buffer/common"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName overrides the imported scene's name. The name prefixes every buffer label.
//
// Parameters:
//   - name: the display name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger used to report the scene build. A nil logger is ignored.
func WithLogger(logger common.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuildWorkers sets the number of worker goroutines building clusters.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBuildWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.workers = max(n, 1)
	}
}
