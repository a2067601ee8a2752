package filtering

import "fmt"

// TriangleRejector decides whether a triangle given by three global vertex indices is dropped
// by the filter kernel. A nil rejector keeps every triangle.
type TriangleRejector func(i0, i1, i2 uint32) bool

// KernelState mirrors the GPU buffers the filter and compaction kernels write.
type KernelState struct {
	FilteredIndices []uint32
	Uncompacted     []UncompactedDrawCommand
	Counter         DrawCounter
}

// NewKernelState allocates cleared buffers for a frame.
//
// Parameters:
//   - indexCapacity: length of the filtered index buffer
//   - drawCapacity: number of draw slots
//
// Returns:
//   - *KernelState: zeroed state, as after the clear kernel
func NewKernelState(indexCapacity, drawCapacity int) *KernelState {
	return &KernelState{
		FilteredIndices: make([]uint32, indexCapacity),
		Uncompacted:     make([]UncompactedDrawCommand, drawCapacity),
	}
}

// Clear resets the draw slots and counter, matching the clear kernel.
func (s *KernelState) Clear() {
	clear(s.Uncompacted)
	s.Counter = DrawCounter{}
}

// Filter executes the filter kernel for one batch on the CPU. Each entry corresponds to one
// workgroup; invocation order between entries does not affect the result.
// Rejected triangles are written as a degenerate triple so the output region keeps its size.
//
// Parameters:
//   - batch: entries of one dispatch
//   - meshes: per-mesh constants
//   - indices: scene-wide index buffer
//   - reject: optional per-triangle rejection
//
// Returns:
//   - error: when an entry addresses data outside the provided buffers
func (s *KernelState) Filter(batch []SmallBatchData, meshes []MeshConstants, indices []uint32, reject TriangleRejector) error {
	for wid, e := range batch {
		if int(e.MeshIndex) >= len(meshes) {
			return fmt.Errorf("entry %d: mesh index %d out of range", wid, e.MeshIndex)
		}
		if int(e.AccumDrawIndex) >= len(s.Uncompacted) {
			return fmt.Errorf("entry %d: draw index %d out of range", wid, e.AccumDrawIndex)
		}
		mc := meshes[e.MeshIndex]
		src := mc.IndexOffset + e.IndexOffset
		n := e.FaceCount * 3
		if int(src+n) > len(indices) || int(e.OutputIndexOffset+n) > len(s.FilteredIndices) {
			return fmt.Errorf("entry %d: index range out of bounds", wid)
		}

		for tri := uint32(0); tri < e.FaceCount; tri++ {
			i0, i1, i2 := indices[src+tri*3], indices[src+tri*3+1], indices[src+tri*3+2]
			if reject != nil && reject(i0, i1, i2) {
				i1, i2 = i0, i0
			}
			dst := e.OutputIndexOffset + tri*3
			s.FilteredIndices[dst], s.FilteredIndices[dst+1], s.FilteredIndices[dst+2] = i0, i1, i2
		}

		draw := &s.Uncompacted[e.AccumDrawIndex]
		draw.NumIndices += n
		if uint32(wid) == e.DrawBatchStart {
			draw.StartIndex = e.OutputIndexOffset
			s.Counter.Count++
		}
	}
	return nil
}

// Compact executes the compaction kernel on the CPU: every slot with a non-zero index count is
// copied, in slot order, to the front of the output and the remainder is zero-filled.
//
// Parameters:
//   - uncompacted: the sparse draw slots
//
// Returns:
//   - []IndexedIndirectDraw: dense commands, same length as uncompacted
//   - uint32: number of populated commands
func Compact(uncompacted []UncompactedDrawCommand) ([]IndexedIndirectDraw, uint32) {
	out := make([]IndexedIndirectDraw, len(uncompacted))
	var n uint32
	for _, u := range uncompacted {
		if u.NumIndices == 0 {
			continue
		}
		out[n] = IndexedIndirectDraw{
			IndexCount:    u.NumIndices,
			InstanceCount: 1,
			FirstIndex:    u.StartIndex,
		}
		n++
	}
	return out, n
}
