package cluster

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/common"
)

// ClusterSize is the maximum number of triangles in one cluster.
// The filter kernel runs one workgroup of this many invocations per cluster.
const ClusterSize = 256

// apexSafetyFactor bounds how far the cone apex may drift from the cluster center,
// measured in multiples of the bounding box diagonal.
const apexSafetyFactor = 16

// Cluster holds the culling metadata of one group of up to ClusterSize triangles.
type Cluster struct {
	AABBMin mgl32.Vec3
	AABBMax mgl32.Vec3

	// ConeAxis is the unit axis of the backward-facing normal cone.
	// It points away from the side the triangles face.
	ConeAxis mgl32.Vec3

	// ConeCenter is the cone apex.
	ConeCenter mgl32.Vec3

	ConeAngleCosine float32

	// Valid is false when no cone safely bounds the triangle normals; such clusters are never culled.
	Valid bool
}

// IsCulled reports whether every triangle of the cluster is back-facing for a camera at cameraPos.
// The camera is inside the cone when the direction from the apex to the camera lies within the
// cone's half angle of the axis. Invalid clusters are never culled.
//
// Parameters:
//   - cameraPos: world-space camera position
//
// Returns:
//   - bool: true when the cluster can be skipped this frame
func (c *Cluster) IsCulled(cameraPos mgl32.Vec3) bool {
	if !c.Valid {
		return false
	}
	toCamera := cameraPos.Sub(c.ConeCenter)
	if toCamera.Len() == 0 {
		// on the apex itself every triangle plane is at or behind the camera
		return true
	}
	return toCamera.Normalize().Dot(c.ConeAxis) >= c.ConeAngleCosine
}

// InFrustum reports whether the cluster bounds intersect the frustum.
func (c *Cluster) InFrustum(f common.Frustum) bool {
	return f.IntersectsAABB(c.AABBMin, c.AABBMax)
}

// Center returns the center of the cluster bounds.
func (c *Cluster) Center() mgl32.Vec3 {
	return c.AABBMin.Add(c.AABBMax).Mul(0.5)
}

// MeshClusters holds the clusters of one mesh, index-aligned with their compact GPU records.
type MeshClusters struct {
	Clusters []Cluster
	Compacts []ClusterCompact
}

// TriangleCount returns the number of triangles covered by the clusters.
func (m *MeshClusters) TriangleCount() int {
	n := 0
	for _, c := range m.Compacts {
		n += int(c.TriangleCount)
	}
	return n
}

// ValidCount returns the number of clusters that carry a usable cone.
func (m *MeshClusters) ValidCount() int {
	n := 0
	for i := range m.Clusters {
		if m.Clusters[i].Valid {
			n++
		}
	}
	return n
}

// Build partitions a mesh's triangles into clusters of up to ClusterSize consecutive triangles
// and computes each cluster's bounds and normal cone.
//
// Parameters:
//   - positions: vertex positions
//   - indices: flattened triangle triples indexing positions
//
// Returns:
//   - MeshClusters: one Cluster/ClusterCompact pair per cluster
//   - error: when the index count is not a multiple of three or an index is out of range
func Build(positions []mgl32.Vec3, indices []uint32) (MeshClusters, error) {
	if len(indices)%3 != 0 {
		return MeshClusters{}, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(positions) {
			return MeshClusters{}, fmt.Errorf("index %d at position %d out of range for %d vertices", idx, i, len(positions))
		}
	}

	triangleCount := len(indices) / 3
	clusterCount := (triangleCount + ClusterSize - 1) / ClusterSize
	out := MeshClusters{
		Clusters: make([]Cluster, 0, clusterCount),
		Compacts: make([]ClusterCompact, 0, clusterCount),
	}

	for k := 0; k < clusterCount; k++ {
		start := k * ClusterSize
		end := min(start+ClusterSize, triangleCount)
		out.Clusters = append(out.Clusters, buildCluster(positions, indices, start, end))
		out.Compacts = append(out.Compacts, ClusterCompact{
			TriangleCount: uint32(end - start),
			ClusterStart:  uint32(start),
		})
	}
	return out, nil
}

type triangle struct {
	v0, v1, v2 mgl32.Vec3
	normal     mgl32.Vec3
}

func (t *triangle) degenerate() bool {
	return t.normal == (mgl32.Vec3{})
}

func loadTriangle(positions []mgl32.Vec3, indices []uint32, tri int) triangle {
	t := triangle{
		v0: positions[indices[tri*3]],
		v1: positions[indices[tri*3+1]],
		v2: positions[indices[tri*3+2]],
	}
	t.normal = common.SafeNormalize(t.v1.Sub(t.v0).Cross(t.v2.Sub(t.v0)))
	return t
}

func buildCluster(positions []mgl32.Vec3, indices []uint32, start, end int) Cluster {
	inf := float32(math.Inf(1))
	c := Cluster{
		AABBMin: mgl32.Vec3{inf, inf, inf},
		AABBMax: mgl32.Vec3{-inf, -inf, -inf},
	}

	tris := make([]triangle, 0, end-start)
	var axis mgl32.Vec3
	for tri := start; tri < end; tri++ {
		t := loadTriangle(positions, indices, tri)
		for _, v := range [3]mgl32.Vec3{t.v0, t.v1, t.v2} {
			c.AABBMin = minVec(c.AABBMin, v)
			c.AABBMax = maxVec(c.AABBMax, v)
		}
		// zero-area triangles produce no fragments and carry no facing
		if t.degenerate() {
			continue
		}
		axis = axis.Sub(t.normal)
		tris = append(tris, t)
	}

	if axis == (mgl32.Vec3{}) {
		return c
	}
	axis = axis.Normalize()
	c.ConeAxis = axis

	center := c.Center()
	coneOpening := float32(1)
	tMax := float32(math.Inf(-1))
	for _, t := range tris {
		directionalPart := axis.Dot(t.normal.Mul(-1))
		if directionalPart <= 0 {
			return c
		}
		// distance along the axis from the center to the triangle plane
		td := center.Sub(t.v0).Dot(t.normal) / directionalPart
		tMax = max(tMax, td)
		coneOpening = min(coneOpening, directionalPart)
	}

	c.ConeCenter = center.Add(axis.Mul(tMax))
	c.ConeAngleCosine = float32(math.Sqrt(float64(max(0, 1-coneOpening*coneOpening))))

	size := c.AABBMax.Sub(c.AABBMin).Len()
	if c.ConeCenter.Sub(center).Len() > apexSafetyFactor*size {
		return c
	}
	c.Valid = true
	return c
}

func minVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func maxVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}
