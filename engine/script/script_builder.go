package script

import "github.com/shadowP12/visibility-buffer/common"

// ScriptBuilderOption is a functional option for configuring a ScriptHost.
type ScriptBuilderOption func(h *scriptHost)

// WithLogger sets the logger receiving print output and load messages. A nil logger is ignored.
func WithLogger(logger common.Logger) ScriptBuilderOption {
	return func(h *scriptHost) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithViewControl lets scripts switch shading modes and the cluster bounds overlay.
//
// Parameters:
//   - view: usually the renderer
//
// Returns:
//   - ScriptBuilderOption: option function to apply
func WithViewControl(view ViewControl) ScriptBuilderOption {
	return func(h *scriptHost) {
		h.view = view
	}
}

// WithBounds sets the source of scene.bounds().
func WithBounds(bounds BoundsSource) ScriptBuilderOption {
	return func(h *scriptHost) {
		h.bounds = bounds
	}
}
