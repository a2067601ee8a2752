package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Render target formats.
const (
	VisibilityFormat = wgpu.TextureFormatR32Uint
	DepthFormat      = wgpu.TextureFormatDepth24Plus
	ColorFormat      = wgpu.TextureFormatRGBA8Unorm
)

// EmptyPixel is the visibility target's clear value; no triangle covers the pixel.
const EmptyPixel = 0xFFFFFFFF

// renderTargets are the size-dependent textures of a frame. They are recreated on resize.
type renderTargets struct {
	width, height uint32

	visibility     *wgpu.Texture
	visibilityView *wgpu.TextureView
	depth          *wgpu.Texture
	depthView      *wgpu.TextureView
	color          *wgpu.Texture
	colorView      *wgpu.TextureView
}

func newRenderTargets(b RendererBackend, width, height uint32) (*renderTargets, error) {
	t := &renderTargets{width: width, height: height}
	var err error

	t.visibility, t.visibilityView, err = b.CreateTexture("Visibility Target", width, height, VisibilityFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	t.depth, t.depthView, err = b.CreateTexture("Depth Target", width, height, DepthFormat,
		wgpu.TextureUsageRenderAttachment)
	if err != nil {
		t.Release()
		return nil, err
	}
	t.color, t.colorView, err = b.CreateTexture("Color Target", width, height, ColorFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

func (t *renderTargets) Release() {
	for _, v := range []*wgpu.TextureView{t.visibilityView, t.depthView, t.colorView} {
		if v != nil {
			v.Release()
		}
	}
	for _, tex := range []*wgpu.Texture{t.visibility, t.depth, t.color} {
		if tex != nil {
			tex.Release()
		}
	}
	*t = renderTargets{}
}
