package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
	"github.com/shadowP12/visibility-buffer/engine/renderer/pipeline"
)

// presentPass copies the color target into the swapchain image with a fullscreen quad.
type presentPass struct {
	pipeline pipeline.Pipeline
	group    bind_group_provider.BindGroupProvider
}

func newPresentPass(b RendererBackend) (*presentPass, error) {
	p, err := newRenderPipeline(b, "present.wgsl", pipeline.WithColorFormat(b.SurfaceFormat()))
	if err != nil {
		return nil, err
	}
	sampler, err := b.CreateSampler("Present Sampler")
	if err != nil {
		p.Release()
		return nil, err
	}
	group := bind_group_provider.NewBindGroupProvider("Present")
	group.SetSampler(1, sampler)
	return &presentPass{pipeline: p, group: group}, nil
}

func (p *presentPass) bind(b RendererBackend, targets *renderTargets) error {
	p.group.InvalidateBindGroup()
	p.group.SetTextureView(0, targets.colorView)
	return b.InitBindGroup(p.group, p.pipeline, 0)
}

func (p *presentPass) encode(encoder *wgpu.CommandEncoder, swapchain *wgpu.TextureView, quad bind_group_provider.BindGroupProvider) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       swapchain,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{A: 1.0},
		}},
	})
	defer pass.Release()

	pass.SetPipeline(p.pipeline.RenderPipeline())
	pass.SetBindGroup(0, p.group.BindGroup(), nil)
	drawGeometry(pass, quad, 1)
	return pass.End()
}

func (p *presentPass) Release() {
	p.group.Release()
	p.pipeline.Release()
}
