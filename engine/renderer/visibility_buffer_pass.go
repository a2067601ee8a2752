package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/renderer/pipeline"
	"github.com/shadowP12/visibility-buffer/engine/renderer/shader"
)

func newRenderPipeline(b RendererBackend, asset string, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	vs, err := shader.Load(asset, shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fs, err := shader.Load(asset, shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	}, opts...)
	p := pipeline.NewPipeline(asset, pipeline.PipelineTypeRender, opts...)
	if err := b.RegisterRenderPipeline(p); err != nil {
		return nil, fmt.Errorf("%s: %w", asset, err)
	}
	return p, nil
}

// visibilityBufferPass rasterizes the filtered index stream into the visibility and depth
// targets. Each pixel receives the position of its triangle in the stream.
type visibilityBufferPass struct {
	pipeline pipeline.Pipeline
	group    bind_group_provider.BindGroupProvider
}

func newVisibilityBufferPass(b RendererBackend) (*visibilityBufferPass, error) {
	p, err := newRenderPipeline(b, "visibility_buffer.wgsl",
		pipeline.WithColorFormat(VisibilityFormat),
		pipeline.WithDepth(DepthFormat, wgpu.CompareFunctionLess, true),
	)
	if err != nil {
		return nil, err
	}
	return &visibilityBufferPass{
		pipeline: p,
		group:    bind_group_provider.NewBindGroupProvider("Visibility Buffer"),
	}, nil
}

func (v *visibilityBufferPass) bind(b RendererBackend, view, positions, filtered *wgpu.Buffer) error {
	v.group.InvalidateBindGroup()
	v.group.ShareBuffer(0, view)
	v.group.ShareBuffer(1, positions)
	v.group.ShareBuffer(2, filtered)
	return b.InitBindGroup(v.group, v.pipeline, 0)
}

// encode issues one non-indexed indirect draw per compacted command. The commands are indexed
// draws; their first 16 bytes read as {vertex count, instance count, first vertex, first
// instance} with first instance always zero.
func (v *visibilityBufferPass) encode(encoder *wgpu.CommandEncoder, targets *renderTargets, drawCommands *wgpu.Buffer, drawCount uint32) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       targets.visibilityView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: EmptyPixel},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            targets.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	defer pass.Release()

	pass.SetPipeline(v.pipeline.RenderPipeline())
	pass.SetBindGroup(0, v.group.BindGroup(), nil)
	for i := uint32(0); i < drawCount; i++ {
		pass.DrawIndirect(drawCommands, uint64(i)*filtering.IndexedIndirectDrawSize)
	}
	return pass.End()
}

func (v *visibilityBufferPass) Release() {
	v.group.Release()
	v.pipeline.Release()
}
