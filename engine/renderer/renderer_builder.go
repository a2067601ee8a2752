package renderer

import (
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithFilteringConfig replaces the whole filtering configuration. Options applied after it
// still override single fields.
func WithFilteringConfig(cfg filtering.Config) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg = cfg
	}
}

// WithMaxDrawCommands sets the number of draw command slots per frame.
//
// Parameters:
//   - n: the slot count; it sizes the uncompacted and compacted draw buffers
//
// Returns:
//   - RendererBuilderOption: a function that applies the capacity to a renderer
func WithMaxDrawCommands(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.MaxDrawCommands = n
	}
}

// WithBatchCount sets the maximum number of clusters per filter dispatch, at most filtering.BatchCount.
func WithBatchCount(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.BatchCount = n
	}
}

// WithOverflowPolicy selects what a frame does when it needs more draws than there are slots.
//
// Parameters:
//   - policy: filtering.OverflowDrop (default) or filtering.OverflowFail
//
// Returns:
//   - RendererBuilderOption: a function that applies the policy to a renderer
func WithOverflowPolicy(policy filtering.OverflowPolicy) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.Overflow = policy
	}
}

// WithFrustumCulling additionally rejects clusters whose bounds lie outside the view frustum.
func WithFrustumCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.FrustumCulling = enabled
	}
}

// WithPackMeshes lets one filter dispatch carry clusters of several meshes.
func WithPackMeshes(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg.PackMeshes = enabled
	}
}

// WithTriangleBackfaceCulling makes the filter kernel drop back-facing triangles. Dropped
// triangles are written as degenerate triples so output regions keep their size.
func WithTriangleBackfaceCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.backfaceCulling = enabled
	}
}

// WithShadingMode sets the initial shading mode.
func WithShadingMode(mode ShadingMode) RendererBuilderOption {
	return func(r *renderer) {
		r.shadingMode = mode
	}
}

// WithClusterBounds enables the cluster bounds overlay from the first frame.
func WithClusterBounds(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.showBounds = enabled
	}
}

// WithLogger sets the logger used by the renderer and its resource tracker.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger to a renderer
func WithLogger(logger common.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
