package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
)

// geometryVertexStride is the byte stride of the context's position + uv vertices.
const geometryVertexStride = 20

// renderingContext holds geometry shared by every pass: a fullscreen quad and a unit cube.
// It is created once with the renderer and released once with it.
type renderingContext struct {
	quad bind_group_provider.BindGroupProvider
	cube bind_group_provider.BindGroupProvider
}

// quadGeometry returns a clip-space quad covering the viewport, with uv (0,0) at the top left.
func quadGeometry() ([]float32, []uint32) {
	vertices := []float32{
		-1, -1, 0, 0, 1,
		1, -1, 0, 1, 1,
		1, 1, 0, 1, 0,
		-1, 1, 0, 0, 0,
	}
	return vertices, []uint32{0, 1, 2, 0, 2, 3}
}

// cubeGeometry returns the cube spanning [-1, 1] on every axis with counter-clockwise outward faces.
func cubeGeometry() ([]float32, []uint32) {
	vertices := make([]float32, 0, 8*5)
	for i := 0; i < 8; i++ {
		x := float32(i&1)*2 - 1
		y := float32(i>>1&1)*2 - 1
		z := float32(i>>2&1)*2 - 1
		vertices = append(vertices, x, y, z, (x+1)/2, (y+1)/2)
	}
	indices := []uint32{
		0, 4, 6, 0, 6, 2, // -x
		1, 3, 7, 1, 7, 5, // +x
		0, 1, 5, 0, 5, 4, // -y
		2, 6, 7, 2, 7, 3, // +y
		0, 2, 3, 0, 3, 1, // -z
		4, 5, 7, 4, 7, 6, // +z
	}
	return vertices, indices
}

func newRenderingContext(b RendererBackend) (*renderingContext, error) {
	c := &renderingContext{
		quad: bind_group_provider.NewBindGroupProvider("Fullscreen Quad"),
		cube: bind_group_provider.NewBindGroupProvider("Unit Cube"),
	}
	geometry := []struct {
		provider bind_group_provider.BindGroupProvider
		build    func() ([]float32, []uint32)
	}{
		{c.quad, quadGeometry},
		{c.cube, cubeGeometry},
	}
	for _, g := range geometry {
		vertices, indices := g.build()
		vb, err := b.CreateBufferInit(g.provider.Label()+" Vertices", wgpu.BufferUsageVertex, common.SliceToBytes(vertices))
		if err != nil {
			c.Release()
			return nil, err
		}
		ib, err := b.CreateBufferInit(g.provider.Label()+" Indices", wgpu.BufferUsageIndex, common.SliceToBytes(indices))
		if err != nil {
			vb.Release()
			c.Release()
			return nil, err
		}
		g.provider.SetGeometry(vb, ib, len(indices))
	}
	return c, nil
}

// drawGeometry binds a provider's geometry and issues an indexed draw.
func drawGeometry(pass *wgpu.RenderPassEncoder, geometry bind_group_provider.BindGroupProvider, instances uint32) {
	pass.SetVertexBuffer(0, geometry.VertexBuffer(), 0, wgpu.WholeSize)
	pass.SetIndexBuffer(geometry.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(uint32(geometry.IndexCount()), instances, 0, 0, 0)
}

func (c *renderingContext) Release() {
	c.quad.Release()
	c.cube.Release()
}
