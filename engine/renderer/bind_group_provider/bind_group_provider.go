package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

type bindGroupProvider struct {
	label string

	bindGroup *wgpu.BindGroup

	buffers      map[int]*wgpu.Buffer
	owned        map[int]bool
	textureViews map[int]*wgpu.TextureView
	samplers     map[int]*wgpu.Sampler

	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
}

// BindGroupProvider collects the resources of one bind group and the bind group built from them.
//
// Buffers are either owned, created for this provider and released with it, or shared, borrowed
// from another owner such as the scene and never released here. Texture views are always shared
// because render targets are recreated independently on resize. Samplers are owned.
type BindGroupProvider interface {
	// Release frees the bind group and every owned resource. Shared resources are only forgotten.
	Release()

	// Label returns the provider's label, used as a prefix for created GPU objects.
	Label() string

	// BindGroup returns the current bind group, or nil until built.
	BindGroup() *wgpu.BindGroup

	// Buffer returns the buffer at a binding, or nil.
	Buffer(binding int) *wgpu.Buffer

	// Owned reports whether the buffer at a binding is released with the provider.
	Owned(binding int) bool

	TextureView(binding int) *wgpu.TextureView

	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer, IndexBuffer and IndexCount hold geometry drawn with classic vertex input.
	VertexBuffer() *wgpu.Buffer
	IndexBuffer() *wgpu.Buffer
	IndexCount() int

	// SetBindGroup replaces the bind group, releasing the previous one.
	SetBindGroup(bg *wgpu.BindGroup)

	// InvalidateBindGroup releases the bind group so it is rebuilt with the current resources.
	InvalidateBindGroup()

	// SetBuffer stores an owned buffer, releasing any owned buffer previously at the binding.
	SetBuffer(binding int, buf *wgpu.Buffer)

	// ShareBuffer stores a borrowed buffer.
	ShareBuffer(binding int, buf *wgpu.Buffer)

	// SetTextureView stores a borrowed texture view.
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler stores an owned sampler.
	SetSampler(binding int, s *wgpu.Sampler)

	// SetGeometry stores owned vertex and index buffers.
	SetGeometry(vertex, index *wgpu.Buffer, indexCount int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: prefix for the labels of created GPU objects
//   - options: functional options to pre-populate resources
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		owned:        make(map[int]bool),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Owned(binding int) bool {
	return p.owned[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.InvalidateBindGroup()
	p.bindGroup = bg
}

func (p *bindGroupProvider) InvalidateBindGroup() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.dropBuffer(binding)
	p.buffers[binding] = buf
	p.owned[binding] = true
}

func (p *bindGroupProvider) ShareBuffer(binding int, buf *wgpu.Buffer) {
	p.dropBuffer(binding)
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	if old := p.samplers[binding]; old != nil && old != s {
		old.Release()
	}
	p.samplers[binding] = s
}

func (p *bindGroupProvider) SetGeometry(vertex, index *wgpu.Buffer, indexCount int) {
	p.releaseGeometry()
	p.vertexBuffer = vertex
	p.indexBuffer = index
	p.indexCount = indexCount
}

func (p *bindGroupProvider) dropBuffer(binding int) {
	if old := p.buffers[binding]; old != nil && p.owned[binding] {
		old.Release()
	}
	delete(p.buffers, binding)
	delete(p.owned, binding)
}

func (p *bindGroupProvider) releaseGeometry() {
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
	p.indexCount = 0
}

func (p *bindGroupProvider) Release() {
	p.InvalidateBindGroup()
	for binding := range p.buffers {
		p.dropBuffer(binding)
	}
	for binding, s := range p.samplers {
		if s != nil {
			s.Release()
		}
		delete(p.samplers, binding)
	}
	clear(p.textureViews)
	p.releaseGeometry()
}
