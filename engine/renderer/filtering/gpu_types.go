package filtering

import (
	_ "embed"
	"encoding/binary"
	"unsafe"
)

// Fixed capacities shared with the filtering kernels.
const (
	// BatchCount is the maximum number of SmallBatchData entries per filter dispatch.
	BatchCount = 512

	// MaxDrawCommands is the number of draw command slots available per frame.
	MaxDrawCommands = 256

	// WorkgroupSize is the invocation count of the clear and compaction kernels.
	WorkgroupSize = 256
)

// GPUMeshConstantsSource is the WGSL definition matching MeshConstants.
//
//go:embed assets/mesh_constants.wgsl
var GPUMeshConstantsSource string

// GPUSmallBatchDataSource is the WGSL definition matching SmallBatchData.
//
//go:embed assets/small_batch_data.wgsl
var GPUSmallBatchDataSource string

// GPUUncompactedDrawCommandSource is the WGSL definition matching UncompactedDrawCommand.
// NumIndices is atomic on the GPU side.
//
//go:embed assets/uncompacted_draw_command.wgsl
var GPUUncompactedDrawCommandSource string

// GPUDrawCounterSource is the WGSL definition matching DrawCounter.
//
//go:embed assets/draw_counter.wgsl
var GPUDrawCounterSource string

// GPUIndexedIndirectDrawSource is the WGSL definition matching IndexedIndirectDraw.
//
//go:embed assets/indexed_indirect_draw.wgsl
var GPUIndexedIndirectDrawSource string

// MeshConstants maps a mesh index to its range in the scene-wide index buffer.
// Size: 8 bytes.
type MeshConstants struct {
	FaceCount   uint32 // offset 0
	IndexOffset uint32 // offset 4: first index of the mesh in the global index buffer
}

// SmallBatchData describes one surviving cluster queued for the filter kernel.
// IndexOffset is mesh-local and OutputIndexOffset is a position in the filtered index buffer,
// both counted in indices. Size: 24 bytes.
type SmallBatchData struct {
	MeshIndex         uint32 // offset  0
	IndexOffset       uint32 // offset  4
	FaceCount         uint32 // offset  8
	OutputIndexOffset uint32 // offset 12
	DrawBatchStart    uint32 // offset 16: batch-local index of the entry that opens this draw
	AccumDrawIndex    uint32 // offset 20: draw slot this entry contributes to
}

// UncompactedDrawCommand is one sparse draw slot written by the filter kernel.
// Size: 8 bytes.
type UncompactedDrawCommand struct {
	NumIndices uint32
	StartIndex uint32
}

// DrawCounter counts the draw slots opened by the filter kernel in one frame.
// Size: 4 bytes.
type DrawCounter struct {
	Count uint32
}

// IndexedIndirectDraw matches the indexed indirect draw argument layout.
// Size: 20 bytes.
type IndexedIndirectDraw struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// Byte sizes of the GPU records.
const (
	MeshConstantsSize          = uint64(unsafe.Sizeof(MeshConstants{}))
	SmallBatchDataSize         = uint64(unsafe.Sizeof(SmallBatchData{}))
	UncompactedDrawCommandSize = uint64(unsafe.Sizeof(UncompactedDrawCommand{}))
	DrawCounterSize            = uint64(unsafe.Sizeof(DrawCounter{}))
	IndexedIndirectDrawSize    = uint64(unsafe.Sizeof(IndexedIndirectDraw{}))
)

// MarshalMeshConstants serializes mesh constants for upload.
//
// Parameters:
//   - constants: one entry per mesh
//
// Returns:
//   - []byte: little-endian packed records
func MarshalMeshConstants(constants []MeshConstants) []byte {
	buf := make([]byte, len(constants)*int(MeshConstantsSize))
	for i, c := range constants {
		o := i * int(MeshConstantsSize)
		binary.LittleEndian.PutUint32(buf[o:], c.FaceCount)
		binary.LittleEndian.PutUint32(buf[o+4:], c.IndexOffset)
	}
	return buf
}

// MarshalSmallBatch serializes one batch of entries for upload.
//
// Parameters:
//   - entries: the batch, at most BatchCount long
//
// Returns:
//   - []byte: little-endian packed records
func MarshalSmallBatch(entries []SmallBatchData) []byte {
	buf := make([]byte, len(entries)*int(SmallBatchDataSize))
	for i, e := range entries {
		o := i * int(SmallBatchDataSize)
		binary.LittleEndian.PutUint32(buf[o:], e.MeshIndex)
		binary.LittleEndian.PutUint32(buf[o+4:], e.IndexOffset)
		binary.LittleEndian.PutUint32(buf[o+8:], e.FaceCount)
		binary.LittleEndian.PutUint32(buf[o+12:], e.OutputIndexOffset)
		binary.LittleEndian.PutUint32(buf[o+16:], e.DrawBatchStart)
		binary.LittleEndian.PutUint32(buf[o+20:], e.AccumDrawIndex)
	}
	return buf
}
