package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

type BindGroupProviderOption func(*bindGroupProvider)

// WithSharedBuffer pre-populates a borrowed buffer.
func WithSharedBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithTextureView pre-populates a borrowed texture view.
func WithTextureView(binding int, tv *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = tv
	}
}
