package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
	"github.com/shadowP12/visibility-buffer/engine/renderer/pipeline"
)

// ShadingMode selects what the shading pass writes for covered pixels.
type ShadingMode uint32

const (
	// ShadingModeLit applies a checker albedo with lambert lighting.
	ShadingModeLit ShadingMode = iota

	// ShadingModeNormals shows interpolated world normals.
	ShadingModeNormals

	// ShadingModeDraw colors each pixel by the draw command that produced it.
	ShadingModeDraw

	// ShadingModeTriangle colors each pixel by its triangle.
	ShadingModeTriangle
)

func (m ShadingMode) String() string {
	switch m {
	case ShadingModeLit:
		return "lit"
	case ShadingModeNormals:
		return "normals"
	case ShadingModeDraw:
		return "draw"
	case ShadingModeTriangle:
		return "triangle"
	default:
		return fmt.Sprintf("ShadingMode(%d)", uint32(m))
	}
}

// ParseShadingMode parses "lit", "normals", "draw" or "triangle".
func ParseShadingMode(s string) (ShadingMode, error) {
	switch s {
	case "", "lit":
		return ShadingModeLit, nil
	case "normals":
		return ShadingModeNormals, nil
	case "draw":
		return ShadingModeDraw, nil
	case "triangle":
		return ShadingModeTriangle, nil
	default:
		return ShadingModeLit, fmt.Errorf("unknown shading mode %q", s)
	}
}

// shadingPass resolves every visibility pixel through the draw commands and the scene's
// attribute buffers and writes the color target.
type shadingPass struct {
	pipeline pipeline.Pipeline
	group    bind_group_provider.BindGroupProvider
}

func newShadingPass(b RendererBackend) (*shadingPass, error) {
	p, err := newRenderPipeline(b, "shading.wgsl", pipeline.WithColorFormat(ColorFormat))
	if err != nil {
		return nil, err
	}
	return &shadingPass{
		pipeline: p,
		group:    bind_group_provider.NewBindGroupProvider("Shading"),
	}, nil
}

func (s *shadingPass) bind(b RendererBackend, view *wgpu.Buffer, targets *renderTargets, scene Scene, filtered, drawCommands *wgpu.Buffer) error {
	s.group.InvalidateBindGroup()
	s.group.ShareBuffer(0, view)
	s.group.SetTextureView(1, targets.visibilityView)
	s.group.ShareBuffer(2, scene.PositionBuffer())
	s.group.ShareBuffer(3, scene.NormalBuffer())
	s.group.ShareBuffer(4, scene.UVBuffer())
	s.group.ShareBuffer(5, filtered)
	s.group.ShareBuffer(6, drawCommands)
	return b.InitBindGroup(s.group, s.pipeline, 0)
}

func (s *shadingPass) encode(encoder *wgpu.CommandEncoder, targets *renderTargets, quad bind_group_provider.BindGroupProvider) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       targets.colorView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.12, A: 1.0},
		}},
	})
	defer pass.Release()

	pass.SetPipeline(s.pipeline.RenderPipeline())
	pass.SetBindGroup(0, s.group.BindGroup(), nil)
	drawGeometry(pass, quad, 1)
	return pass.End()
}

func (s *shadingPass) Release() {
	s.group.Release()
	s.pipeline.Release()
}
