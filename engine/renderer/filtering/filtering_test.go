package filtering

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCamera = View{CameraPosition: mgl32.Vec3{0, 0, 10}}

// syntheticMesh builds clusters of full size; culled clusters have a cone containing testCamera.
func syntheticMesh(triangles int, culled func(i int) bool) cluster.MeshClusters {
	var mc cluster.MeshClusters
	for start, i := 0, 0; start < triangles; start, i = start+cluster.ClusterSize, i+1 {
		count := min(cluster.ClusterSize, triangles-start)
		c := cluster.Cluster{}
		if culled != nil && culled(i) {
			c = cluster.Cluster{
				ConeAxis:        mgl32.Vec3{0, 0, 1},
				ConeAngleCosine: 0.5,
				Valid:           true,
			}
		}
		mc.Clusters = append(mc.Clusters, c)
		mc.Compacts = append(mc.Compacts, cluster.ClusterCompact{
			TriangleCount: uint32(count),
			ClusterStart:  uint32(start),
		})
	}
	return mc
}

func meshConstants(meshes []cluster.MeshClusters) ([]MeshConstants, []uint32) {
	var constants []MeshConstants
	var indices []uint32
	for _, m := range meshes {
		tris := m.TriangleCount()
		constants = append(constants, MeshConstants{FaceCount: uint32(tris), IndexOffset: uint32(len(indices))})
		for i := 0; i < tris*3; i++ {
			indices = append(indices, uint32(len(indices)))
		}
	}
	return constants, indices
}

func TestGPULayoutSizes(t *testing.T) {
	assert.Equal(t, uint64(8), cluster.ClusterCompactSize)
	assert.Equal(t, uint64(8), MeshConstantsSize)
	assert.Equal(t, uint64(24), SmallBatchDataSize)
	assert.Equal(t, uint64(8), UncompactedDrawCommandSize)
	assert.Equal(t, uint64(4), DrawCounterSize)
	assert.Equal(t, uint64(20), IndexedIndirectDrawSize)
}

func TestMarshalSmallBatch_FieldOrder(t *testing.T) {
	buf := MarshalSmallBatch([]SmallBatchData{{
		MeshIndex: 1, IndexOffset: 2, FaceCount: 3, OutputIndexOffset: 4, DrawBatchStart: 5, AccumDrawIndex: 6,
	}})
	require.Len(t, buf, 24)
	for i := 0; i < 6; i++ {
		assert.Equal(t, byte(i+1), buf[i*4], "field %d", i)
	}
}

func TestBuildPlan_BatchBound(t *testing.T) {
	meshes := []cluster.MeshClusters{syntheticMesh(2000*cluster.ClusterSize, nil)}

	plan, err := BuildPlan(meshes, testCamera, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, plan.Batches, 4)
	sizes := make([]int, 0, len(plan.Batches))
	for _, b := range plan.Batches {
		assert.LessOrEqual(t, len(b.Entries), BatchCount)
		sizes = append(sizes, len(b.Entries))
	}
	assert.Equal(t, []int{512, 512, 512, 464}, sizes)
	assert.Equal(t, uint32(4), plan.DrawCount)
	assert.Equal(t, 2000, plan.VisibleClusters)
}

func TestBuildPlan_DisjointOutputRegions(t *testing.T) {
	meshes := []cluster.MeshClusters{
		syntheticMesh(1000, nil),
		syntheticMesh(3*cluster.ClusterSize+7, func(i int) bool { return i == 1 }),
		syntheticMesh(10, nil),
	}
	plan, err := BuildPlan(meshes, testCamera, DefaultConfig())
	require.NoError(t, err)

	var next uint32
	for _, b := range plan.Batches {
		for _, e := range b.Entries {
			assert.Equal(t, next, e.OutputIndexOffset)
			next += e.FaceCount * 3
		}
	}
	assert.Equal(t, next, plan.IndexCount)
	assert.Equal(t, 1, plan.CulledClusters)
	assert.Equal(t, 4+3+1, plan.VisibleClusters)
	// one batch per mesh without packing
	assert.Len(t, plan.Batches, 3)
	assert.Equal(t, uint32(3), plan.DrawCount)
}

func TestBuildPlan_AllCulled(t *testing.T) {
	meshes := []cluster.MeshClusters{syntheticMesh(600, func(int) bool { return true })}
	plan, err := BuildPlan(meshes, testCamera, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, plan.Batches)
	assert.Zero(t, plan.DrawCount)
	assert.Equal(t, 3, plan.CulledClusters)
}

func TestBuildPlan_PackMeshes(t *testing.T) {
	meshes := []cluster.MeshClusters{syntheticMesh(300, nil), syntheticMesh(100, nil)}
	cfg := DefaultConfig()
	cfg.PackMeshes = true

	plan, err := BuildPlan(meshes, testCamera, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Batches, 1)
	entries := plan.Batches[0].Entries
	require.Len(t, entries, 3)

	assert.Equal(t, uint32(2), plan.DrawCount)
	assert.Equal(t, []uint32{0, 0, 2}, []uint32{entries[0].DrawBatchStart, entries[1].DrawBatchStart, entries[2].DrawBatchStart})
	assert.Equal(t, []uint32{0, 0, 1}, []uint32{entries[0].AccumDrawIndex, entries[1].AccumDrawIndex, entries[2].AccumDrawIndex})
}

func TestBuildPlan_OverflowDrop(t *testing.T) {
	var meshes []cluster.MeshClusters
	for i := 0; i < 5; i++ {
		meshes = append(meshes, syntheticMesh(2*cluster.ClusterSize, nil))
	}
	cfg := DefaultConfig()
	cfg.MaxDrawCommands = 2

	plan, err := BuildPlan(meshes, testCamera, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), plan.DrawCount)
	assert.Equal(t, 4, plan.VisibleClusters)
	assert.Equal(t, 6, plan.DroppedClusters)
	assert.True(t, plan.Overflowed())
	for _, b := range plan.Batches {
		for _, e := range b.Entries {
			assert.Less(t, e.AccumDrawIndex, uint32(2))
		}
	}
}

func TestBuildPlan_OverflowFail(t *testing.T) {
	var meshes []cluster.MeshClusters
	for i := 0; i < 3; i++ {
		meshes = append(meshes, syntheticMesh(10, nil))
	}
	cfg := DefaultConfig()
	cfg.MaxDrawCommands = 2
	cfg.Overflow = OverflowFail

	_, err := BuildPlan(meshes, testCamera, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDrawCapacityExceeded))

	cfg.MaxDrawCommands = 3
	plan, err := BuildPlan(meshes, testCamera, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), plan.DrawCount)
}

func TestBuildPlan_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchCount = BatchCount + 1
	_, err := BuildPlan(nil, testCamera, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.MaxDrawCommands = 0
	_, err = BuildPlan(nil, testCamera, cfg)
	assert.Error(t, err)
}

func TestKernels_EndToEnd(t *testing.T) {
	meshes := []cluster.MeshClusters{
		syntheticMesh(1300, func(i int) bool { return i == 2 }),
		syntheticMesh(40, nil),
		syntheticMesh(700, func(i int) bool { return i == 0 }),
	}
	constants, indices := meshConstants(meshes)
	for _, pack := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.PackMeshes = pack
		plan, err := BuildPlan(meshes, testCamera, cfg)
		require.NoError(t, err)

		state := NewKernelState(len(indices), MaxDrawCommands)
		state.Clear()
		for _, b := range plan.Batches {
			require.NoError(t, state.Filter(b.Entries, constants, indices, nil))
		}
		assert.Equal(t, plan.DrawCount, state.Counter.Count)

		draws, drawCount := Compact(state.Uncompacted)
		require.Equal(t, plan.DrawCount, drawCount)

		var total uint32
		for i := uint32(0); i < drawCount; i++ {
			d := draws[i]
			assert.Equal(t, uint32(1), d.InstanceCount)
			assert.Equal(t, total, d.FirstIndex, "draws cover the filtered stream in order")
			total += d.IndexCount
		}
		assert.Equal(t, plan.IndexCount, total)

		// every surviving cluster's indices land in its region
		for _, b := range plan.Batches {
			for _, e := range b.Entries {
				src := constants[e.MeshIndex].IndexOffset + e.IndexOffset
				got := state.FilteredIndices[e.OutputIndexOffset : e.OutputIndexOffset+e.FaceCount*3]
				assert.Equal(t, indices[src:src+e.FaceCount*3], got)
			}
		}
	}
}

func TestKernels_FilterRejectsToDegenerate(t *testing.T) {
	meshes := []cluster.MeshClusters{syntheticMesh(4, nil)}
	constants, indices := meshConstants(meshes)
	plan, err := BuildPlan(meshes, testCamera, DefaultConfig())
	require.NoError(t, err)

	state := NewKernelState(len(indices), MaxDrawCommands)
	reject := func(i0, _, _ uint32) bool { return i0 == 3 }
	require.NoError(t, state.Filter(plan.Batches[0].Entries, constants, indices, reject))

	assert.Equal(t, []uint32{0, 1, 2, 3, 3, 3, 6, 7, 8, 9, 10, 11}, state.FilteredIndices)
	assert.Equal(t, uint32(12), state.Uncompacted[0].NumIndices)
}

func TestKernels_FilterBounds(t *testing.T) {
	state := NewKernelState(3, 1)
	err := state.Filter([]SmallBatchData{{FaceCount: 2}}, []MeshConstants{{FaceCount: 2}}, []uint32{0, 1, 2, 3, 4, 5}, nil)
	assert.Error(t, err)

	err = state.Filter([]SmallBatchData{{MeshIndex: 1, FaceCount: 1}}, []MeshConstants{{FaceCount: 1}}, []uint32{0, 1, 2}, nil)
	assert.Error(t, err)
}

func TestCompact_Determinism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{0, 1, 17, 128, 255, 256} {
		for trial := 0; trial < 5; trial++ {
			uncompacted := make([]UncompactedDrawCommand, MaxDrawCommands)
			var populated []int
			for _, slot := range rng.Perm(MaxDrawCommands)[:n] {
				populated = append(populated, slot)
			}
			for _, slot := range populated {
				uncompacted[slot] = UncompactedDrawCommand{NumIndices: uint32(3 * (slot + 1)), StartIndex: uint32(slot * 1000)}
			}

			draws, count := Compact(uncompacted)
			require.Equal(t, uint32(n), count)
			require.Len(t, draws, MaxDrawCommands)

			seen := map[uint32]bool{}
			for i := 0; i < n; i++ {
				assert.NotZero(t, draws[i].IndexCount)
				seen[draws[i].FirstIndex] = true
			}
			assert.Len(t, seen, n)
			for i := n; i < MaxDrawCommands; i++ {
				assert.Equal(t, IndexedIndirectDraw{}, draws[i])
			}
		}
	}
}

func TestOverflowPolicy_Parse(t *testing.T) {
	p, err := ParseOverflowPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, OverflowFail, p)
	assert.Equal(t, "fail", p.String())

	p, err = ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverflowDrop, p)

	_, err = ParseOverflowPolicy("grow")
	assert.Error(t, err)
}
