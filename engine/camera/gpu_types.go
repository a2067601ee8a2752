package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUViewUniformSource is the canonical WGSL definition of the ViewUniform struct.
// Matches GPUViewUniform layout exactly (224 bytes).
//
//go:embed assets/view_uniform.wgsl
var GPUViewUniformSource string

// View flag bits carried in GPUViewUniform.Flags.
const (
	// ViewFlagTriangleBackfaceCulling makes the filter kernel reject back-facing triangles.
	ViewFlagTriangleBackfaceCulling uint32 = 1 << 0
)

// GPUViewUniform is the GPU-aligned per-frame view data shared by every pass.
// Size: 224 bytes.
type GPUViewUniform struct {
	View           [16]float32 // offset   0: world to view (mat4x4<f32>)
	Proj           [16]float32 // offset  64: view to clip, depth in [0, 1]
	InvViewProj    [16]float32 // offset 128: clip to world
	CameraPosition [3]float32  // offset 192: world-space camera position
	Flags          uint32      // offset 204: ViewFlag bits
	Viewport       [2]float32  // offset 208: render target size in pixels
	ShadingMode    uint32      // offset 216
	_pad           uint32      // offset 220
}

// GPUViewUniformSize is the byte size of GPUViewUniform.
const GPUViewUniformSize = uint64(unsafe.Sizeof(GPUViewUniform{}))

// Size returns the size of the GPUViewUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (224)
func (g *GPUViewUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUViewUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUViewUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	putFloats(buf[0:], g.View[:])
	putFloats(buf[64:], g.Proj[:])
	putFloats(buf[128:], g.InvViewProj[:])
	putFloats(buf[192:], g.CameraPosition[:])
	binary.LittleEndian.PutUint32(buf[204:], g.Flags)
	putFloats(buf[208:], g.Viewport[:])
	binary.LittleEndian.PutUint32(buf[216:], g.ShadingMode)
	return buf
}

func putFloats(dst []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
