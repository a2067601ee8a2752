package cluster

import (
	_ "embed"
	"unsafe"
)

// ClusterCompact is the GPU-facing description of one cluster's triangle range.
// ClusterStart is a triangle index into the owning mesh's index buffer.
type ClusterCompact struct {
	TriangleCount uint32
	ClusterStart  uint32
}

// ClusterCompactSize is the byte size of ClusterCompact as laid out in GPU buffers.
const ClusterCompactSize = uint64(unsafe.Sizeof(ClusterCompact{}))

// GPUClusterBoundsSource is the WGSL definition matching GPUClusterBounds.
//
//go:embed assets/cluster_bounds.wgsl
var GPUClusterBoundsSource string

// GPUClusterBounds is one instance of the cluster bounds overlay.
// Size: 32 bytes.
type GPUClusterBounds struct {
	AABBMin [3]float32
	Valid   uint32
	AABBMax [3]float32
	_pad    uint32
}

// GPUClusterBoundsSize is the byte size of GPUClusterBounds.
const GPUClusterBoundsSize = uint64(unsafe.Sizeof(GPUClusterBounds{}))

// Bounds returns the overlay record for the cluster.
func (c *Cluster) Bounds() GPUClusterBounds {
	b := GPUClusterBounds{
		AABBMin: [3]float32(c.AABBMin),
		AABBMax: [3]float32(c.AABBMax),
	}
	if c.Valid {
		b.Valid = 1
	}
	return b
}
