package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planeStrip builds n unconnected triangles in the z=0 plane, all facing +Z.
func planeStrip(n int) ([]mgl32.Vec3, []uint32) {
	positions := make([]mgl32.Vec3, 0, n*3)
	indices := make([]uint32, 0, n*3)
	for i := 0; i < n; i++ {
		x := float32(i % 32)
		y := float32(i / 32)
		base := uint32(len(positions))
		positions = append(positions,
			mgl32.Vec3{x, y, 0},
			mgl32.Vec3{x + 1, y, 0},
			mgl32.Vec3{x, y + 1, 0},
		)
		indices = append(indices, base, base+1, base+2)
	}
	return positions, indices
}

// uvSphere builds a closed sphere with outward-facing triangles.
func uvSphere(radius float32, rings, segments int) ([]mgl32.Vec3, []uint32) {
	var positions []mgl32.Vec3
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			positions = append(positions, mgl32.Vec3{
				radius * float32(math.Sin(phi)*math.Cos(theta)),
				radius * float32(math.Cos(phi)),
				radius * float32(math.Sin(phi)*math.Sin(theta)),
			})
		}
	}

	var indices []uint32
	emit := func(a, b, c uint32) {
		v0, v1, v2 := positions[a], positions[b], positions[c]
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		if n.Len() < 1e-9 {
			return
		}
		centroid := v0.Add(v1).Add(v2).Mul(1.0 / 3.0)
		if n.Dot(centroid) < 0 {
			b, c = c, b
		}
		indices = append(indices, a, b, c)
	}
	// emit in 8x16 quad tiles so consecutive triangles form compact patches
	stride := uint32(segments + 1)
	for rt := 0; rt < rings; rt += 8 {
		for st := 0; st < segments; st += 16 {
			for r := rt; r < min(rt+8, rings); r++ {
				for s := st; s < min(st+16, segments); s++ {
					i0 := uint32(r)*stride + uint32(s)
					i1 := i0 + 1
					i2 := i0 + stride
					i3 := i2 + 1
					emit(i0, i2, i1)
					emit(i1, i2, i3)
				}
			}
		}
	}
	return positions, indices
}

func TestBuild_SixHundredTriangles(t *testing.T) {
	positions, indices := planeStrip(600)

	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.Len(t, mc.Compacts, 3)
	require.Len(t, mc.Clusters, 3)

	assert.Equal(t, []ClusterCompact{
		{TriangleCount: 256, ClusterStart: 0},
		{TriangleCount: 256, ClusterStart: 256},
		{TriangleCount: 88, ClusterStart: 512},
	}, mc.Compacts)
}

func TestBuild_Partition(t *testing.T) {
	for _, n := range []int{0, 1, 255, 256, 257, 513, 1000, 4096} {
		positions, indices := planeStrip(n)
		mc, err := Build(positions, indices)
		require.NoError(t, err)

		sum := 0
		for i, c := range mc.Compacts {
			assert.Equal(t, uint32(i*ClusterSize), c.ClusterStart, "n=%d cluster=%d", n, i)
			assert.LessOrEqual(t, c.TriangleCount, uint32(ClusterSize))
			assert.Greater(t, c.TriangleCount, uint32(0))
			if i > 0 {
				assert.Greater(t, c.ClusterStart, mc.Compacts[i-1].ClusterStart)
			}
			sum += int(c.TriangleCount)
		}
		assert.Equal(t, n, sum)
		assert.Equal(t, n, mc.TriangleCount())
		assert.Len(t, mc.Clusters, len(mc.Compacts))
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	positions, indices := planeStrip(2)

	_, err := Build(positions, indices[:5])
	assert.Error(t, err)

	bad := append([]uint32(nil), indices...)
	bad[4] = uint32(len(positions))
	_, err = Build(positions, bad)
	assert.Error(t, err)
}

func TestBuild_FlatPatchCone(t *testing.T) {
	positions, indices := planeStrip(10)
	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.Len(t, mc.Clusters, 1)

	c := mc.Clusters[0]
	require.True(t, c.Valid)
	assert.InDelta(t, 0, c.ConeAxis.Sub(mgl32.Vec3{0, 0, -1}).Len(), 1e-5)
	assert.InDelta(t, 0, c.ConeAngleCosine, 1e-3)
	assert.InDelta(t, 0, c.ConeCenter.Z(), 1e-5)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, c.AABBMin)
	assert.Equal(t, mgl32.Vec3{10, 1, 0}, c.AABBMax)

	assert.False(t, c.IsCulled(mgl32.Vec3{3, 0.5, 5}), "camera in front of the patch")
	assert.True(t, c.IsCulled(mgl32.Vec3{3, 0.5, -5}), "camera behind the patch")
}

func TestBuild_ConeSoundness(t *testing.T) {
	positions, indices := uvSphere(2, 48, 64)
	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.NotEmpty(t, mc.Clusters)
	require.Greater(t, mc.ValidCount(), 0)

	for i, c := range mc.Clusters {
		if !c.Valid {
			continue
		}
		assert.GreaterOrEqual(t, c.ConeAngleCosine, float32(0), "cluster %d", i)
		assert.LessOrEqual(t, c.ConeAngleCosine, float32(1), "cluster %d", i)
		assert.InDelta(t, 1, c.ConeAxis.Len(), 1e-4, "cluster %d", i)
	}
}

func TestCluster_CullAlongAxis(t *testing.T) {
	positions, indices := uvSphere(2, 48, 64)
	mc, err := Build(positions, indices)
	require.NoError(t, err)

	for i, c := range mc.Clusters {
		if !c.Valid {
			continue
		}
		for _, k := range []float32{10, 100, 1000} {
			assert.True(t, c.IsCulled(c.ConeCenter.Add(c.ConeAxis.Mul(k))), "cluster %d k=%v", i, k)
			assert.False(t, c.IsCulled(c.ConeCenter.Sub(c.ConeAxis.Mul(k))), "cluster %d k=%v", i, k)
		}
	}
}

func TestCluster_CulledMeansBackFacing(t *testing.T) {
	positions, indices := uvSphere(2, 32, 48)
	mc, err := Build(positions, indices)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		camera := mgl32.Vec3{
			float32(rng.Float64()*20 - 10),
			float32(rng.Float64()*20 - 10),
			float32(rng.Float64()*20 - 10),
		}
		for ci, c := range mc.Clusters {
			if !c.IsCulled(camera) {
				continue
			}
			cc := mc.Compacts[ci]
			for tri := cc.ClusterStart; tri < cc.ClusterStart+cc.TriangleCount; tri++ {
				tr := loadTriangle(positions, indices, int(tri))
				facing := camera.Sub(tr.v0).Dot(tr.normal)
				assert.LessOrEqual(t, facing, float32(1e-3), "cluster %d triangle %d visible from %v", ci, tri, camera)
			}
		}
	}
}

func TestCluster_InvalidNeverCulled(t *testing.T) {
	// two triangles facing opposite directions
	positions := []mgl32.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
		{0, 0, 1}, {0, 1, 1}, {1, 0, 1},
	}
	indices := []uint32{0, 1, 2, 3, 4, 5}
	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.Len(t, mc.Clusters, 1)
	c := mc.Clusters[0]
	require.False(t, c.Valid)

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 1000; n++ {
		camera := mgl32.Vec3{
			float32(rng.NormFloat64() * 50),
			float32(rng.NormFloat64() * 50),
			float32(rng.NormFloat64() * 50),
		}
		assert.False(t, c.IsCulled(camera))
	}
	assert.False(t, c.IsCulled(c.ConeCenter))
}

func TestBuild_DegenerateCluster(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}
	mc, err := Build(positions, []uint32{0, 1, 2, 2, 1, 0})
	require.NoError(t, err)
	require.Len(t, mc.Clusters, 1)
	assert.False(t, mc.Clusters[0].Valid)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, mc.Clusters[0].AABBMax)
}

func TestCluster_ConeScenario(t *testing.T) {
	c := Cluster{
		ConeAxis:        mgl32.Vec3{0, 0, 1},
		ConeCenter:      mgl32.Vec3{0, 0, 0},
		ConeAngleCosine: 0.5,
		Valid:           true,
	}

	// camera on the axis side: test vector (0,0,1), dot 1.0 >= 0.5, inside the cone
	assert.True(t, c.IsCulled(mgl32.Vec3{0, 0, 10}))
	// opposite side: test vector (0,0,-1), dot -1.0 < 0.5, outside the cone
	assert.False(t, c.IsCulled(mgl32.Vec3{0, 0, -10}))
	// 45 degrees off axis is inside a 60 degree cone, 90 degrees is outside
	assert.True(t, c.IsCulled(mgl32.Vec3{10, 0, 10}))
	assert.False(t, c.IsCulled(mgl32.Vec3{10, 0, 0}))

	c.Valid = false
	assert.False(t, c.IsCulled(mgl32.Vec3{0, 0, 10}))
}

func TestBuild_RidgeConeApex(t *testing.T) {
	// two faces leaning away from each other along a ridge at z=1
	positions := []mgl32.Vec3{
		{0, 0, 0}, {0, 1, 0}, {1, 0, 0}, {1, 1, 0}, {0.5, 0, 1},
	}
	indices := []uint32{0, 4, 1, 2, 3, 4}
	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.Len(t, mc.Clusters, 1)
	c := mc.Clusters[0]
	require.True(t, c.Valid)

	assert.InDeltaSlice(t, []float32{0, 0, -1}, c.ConeAxis[:], 1e-5)
	// the apex sits on the far side of both face planes from the back-facing region
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 1}, c.ConeCenter[:], 1e-5)
	assert.InDelta(t, math.Sqrt(0.8), c.ConeAngleCosine, 1e-5)

	camera := mgl32.Vec3{0.5, 0.5, 0.5}
	require.True(t, c.IsCulled(camera))
	for tri := 0; tri < 2; tri++ {
		tr := loadTriangle(positions, indices, tri)
		assert.Less(t, camera.Sub(tr.v0).Dot(tr.normal), float32(0), "triangle %d", tri)
	}
	assert.False(t, c.IsCulled(mgl32.Vec3{0.5, 0.5, 5}))
}

func TestBuild_ApexSafetyInvalidates(t *testing.T) {
	// a flat patch plus one nearly perpendicular wall pushes the apex far outside the bounds
	positions, indices := planeStrip(ClusterSize - 1)
	base := uint32(len(positions))
	positions = append(positions, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{-1, 1, 0}, mgl32.Vec3{-1.01, 0, 1})
	indices = append(indices, base, base+1, base+2)

	mc, err := Build(positions, indices)
	require.NoError(t, err)
	require.Len(t, mc.Clusters, 1)
	c := mc.Clusters[0]

	assert.False(t, c.Valid)
	assert.InDelta(t, 1.0, c.ConeAxis.Len(), 1e-5)
	size := c.AABBMax.Sub(c.AABBMin).Len()
	assert.Greater(t, c.ConeCenter.Sub(c.Center()).Len(), apexSafetyFactor*size)

	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 500; n++ {
		camera := mgl32.Vec3{
			float32(rng.NormFloat64() * 100),
			float32(rng.NormFloat64() * 100),
			float32(rng.NormFloat64() * 100),
		}
		assert.False(t, c.IsCulled(camera))
	}
	for _, k := range []float32{1, 10, 1000} {
		assert.False(t, c.IsCulled(c.ConeCenter.Add(c.ConeAxis.Mul(k))))
		assert.False(t, c.IsCulled(c.Center().Add(c.ConeAxis.Mul(k))))
	}
}
