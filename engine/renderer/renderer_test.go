package renderer

import (
	"bytes"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

type stubScene struct {
	clusters []cluster.MeshClusters
}

func (s *stubScene) ID() string                        { return "stub" }
func (s *stubScene) Clusters() []cluster.MeshClusters  { return s.clusters }
func (s *stubScene) IndexCount() int                   { return 0 }
func (s *stubScene) PositionBuffer() *wgpu.Buffer      { return nil }
func (s *stubScene) NormalBuffer() *wgpu.Buffer        { return nil }
func (s *stubScene) UVBuffer() *wgpu.Buffer            { return nil }
func (s *stubScene) IndexBuffer() *wgpu.Buffer         { return nil }
func (s *stubScene) MeshConstantsBuffer() *wgpu.Buffer { return nil }

func TestQuadGeometry(t *testing.T) {
	vertices, indices := quadGeometry()
	require.Len(t, vertices, 4*geometryVertexStride/4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, indices)

	// top-left corner samples uv (0, 0)
	assert.Equal(t, []float32{-1, 1, 0, 0, 0}, vertices[15:20])
}

func TestCubeGeometry_OutwardFaces(t *testing.T) {
	vertices, indices := cubeGeometry()
	require.Len(t, vertices, 8*5)
	require.Len(t, indices, 36)

	pos := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{vertices[i*5], vertices[i*5+1], vertices[i*5+2]}
	}
	for tri := 0; tri < len(indices); tri += 3 {
		p0, p1, p2 := pos(indices[tri]), pos(indices[tri+1]), pos(indices[tri+2])
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		centroid := p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
		assert.Greater(t, n.Dot(centroid), float32(0), "triangle %d faces inward", tri/3)
	}
}

func TestParseShadingMode(t *testing.T) {
	for _, m := range []ShadingMode{ShadingModeLit, ShadingModeNormals, ShadingModeDraw, ShadingModeTriangle} {
		parsed, err := ParseShadingMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseShadingMode("wireframe")
	assert.Error(t, err)
}

func TestParsePresentMode(t *testing.T) {
	m, ok := ParsePresentMode("uncapped")
	assert.True(t, ok)
	assert.Equal(t, PresentModeUncapped, m)
	_, ok = ParsePresentMode("adaptive")
	assert.False(t, ok)
}

func TestNewRenderer_Options(t *testing.T) {
	var out bytes.Buffer
	logger := common.NewWriterLogger("test", true, &out, &out)

	r := newRenderer(BackendTypeWGPU,
		WithBatchCount(64),
		WithMaxDrawCommands(32),
		WithOverflowPolicy(filtering.OverflowFail),
		WithFrustumCulling(true),
		WithPackMeshes(true),
		WithTriangleBackfaceCulling(true),
		WithShadingMode(ShadingModeNormals),
		WithClusterBounds(true),
		WithLogger(logger),
		WithLogger(nil),
	)

	assert.Equal(t, filtering.Config{
		BatchCount:      64,
		MaxDrawCommands: 32,
		Overflow:        filtering.OverflowFail,
		FrustumCulling:  true,
		PackMeshes:      true,
	}, r.Config())
	assert.Equal(t, ShadingModeNormals, r.ShadingMode())
	assert.True(t, r.showBounds)
	assert.Equal(t, camera.ViewFlagTriangleBackfaceCulling, r.viewFlags())
	assert.Same(t, logger, r.logger)

	state, ok := r.Tracker().State(ResourceSwapchain)
	assert.True(t, ok)
	assert.Equal(t, StateUndefined, state)
}

func TestRender_NoOp(t *testing.T) {
	r := newRenderer(BackendTypeWGPU)
	cam := camera.NewCamera()

	stats, err := r.Render(nil, cam)
	assert.NoError(t, err)
	assert.Zero(t, stats)

	stats, err = r.Render(&stubScene{}, nil)
	assert.NoError(t, err)
	assert.Zero(t, stats)

	// no render targets: the surface has zero size
	stats, err = r.Render(&stubScene{}, cam)
	assert.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, r.Tracker().Barriers())
}

func TestPlanView_Frustum(t *testing.T) {
	cam := camera.NewCamera(camera.WithTranslation(mgl32.Vec3{1, 2, 3}))

	r := newRenderer(BackendTypeWGPU)
	view := r.planView(cam)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, view.CameraPosition)
	assert.Nil(t, view.Frustum)

	r = newRenderer(BackendTypeWGPU, WithFrustumCulling(true))
	view = r.planView(cam)
	require.NotNil(t, view.Frustum)
	assert.Equal(t, cam.Frustum(), *view.Frustum)
}

func TestNewFrameStats(t *testing.T) {
	plan := &filtering.Plan{
		Batches:         make([]filtering.Batch, 3),
		DrawCount:       4,
		IndexCount:      300,
		VisibleClusters: 7,
		CulledClusters:  2,
		DroppedClusters: 1,
	}
	assert.Equal(t, FrameStats{
		VisibleClusters: 7,
		CulledClusters:  2,
		DroppedClusters: 1,
		DrawCount:       4,
		Batches:         3,
		Triangles:       100,
	}, newFrameStats(plan))
}

func TestVisibleBounds(t *testing.T) {
	meshes := []cluster.MeshClusters{{
		Clusters: []cluster.Cluster{
			{AABBMin: mgl32.Vec3{0, 0, 0}, AABBMax: mgl32.Vec3{1, 1, 1}, Valid: true},
			{AABBMin: mgl32.Vec3{2, 0, 0}, AABBMax: mgl32.Vec3{3, 1, 1}},
		},
	}}
	plan := &filtering.Plan{
		Batches: []filtering.Batch{{Entries: []filtering.SmallBatchData{
			{MeshIndex: 0, IndexOffset: cluster.ClusterSize * 3, FaceCount: 10},
			{MeshIndex: 5, IndexOffset: 0, FaceCount: 10},
		}}},
		VisibleClusters: 2,
	}

	bounds := visibleBounds(meshes, plan)
	require.Len(t, bounds, 1)
	assert.Equal(t, [3]float32{2, 0, 0}, bounds[0].AABBMin)
	assert.Equal(t, uint32(0), bounds[0].Valid)
}
