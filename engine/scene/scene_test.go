package scene

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

type upload struct {
	label string
	usage wgpu.BufferUsage
	data  []byte
	buf   *wgpu.Buffer
}

// fakeUploader hands out placeholder buffers and records every upload and release.
type fakeUploader struct {
	uploads  []upload
	released []*wgpu.Buffer
	failAt   int
}

func (u *fakeUploader) CreateBufferInit(label string, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	if u.failAt > 0 && len(u.uploads)+1 == u.failAt {
		return nil, errors.New("out of memory")
	}
	buf := new(wgpu.Buffer)
	u.uploads = append(u.uploads, upload{label: label, usage: usage, data: append([]byte{}, data...), buf: buf})
	return buf, nil
}

func (u *fakeUploader) ReleaseBuffer(buf *wgpu.Buffer) {
	u.released = append(u.released, buf)
}

func (u *fakeUploader) find(t *testing.T, suffix string) upload {
	t.Helper()
	for _, up := range u.uploads {
		if len(up.label) >= len(suffix) && up.label[len(up.label)-len(suffix):] == suffix {
			return up
		}
	}
	t.Fatalf("no upload labelled %q", suffix)
	return upload{}
}

func floats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func uints(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func triangleMesh(name string, world mgl32.Mat4) common.ImportedMesh {
	return common.ImportedMesh{
		Name:      name,
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
		Indices:   []uint32{0, 1, 2},
		World:     world,
	}
}

// gridMesh returns a strip of n triangles in the XY plane.
func gridMesh(n int) common.ImportedMesh {
	m := common.ImportedMesh{Name: "grid", World: mgl32.Ident4()}
	for i := 0; i < n; i++ {
		x := float32(i)
		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions, mgl32.Vec3{x, 0, 0}, mgl32.Vec3{x + 1, 0, 0}, mgl32.Vec3{x, 1, 0})
		m.Normals = append(m.Normals, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1})
		m.UVs = append(m.UVs, mgl32.Vec2{}, mgl32.Vec2{}, mgl32.Vec2{})
		m.Indices = append(m.Indices, base, base+1, base+2)
	}
	return m
}

func TestNewScene_BakesAndRebases(t *testing.T) {
	imported := &common.ImportedScene{Name: "pair", Meshes: []common.ImportedMesh{
		triangleMesh("a", mgl32.Ident4()),
		triangleMesh("b", mgl32.Translate3D(10, 0, 0)),
	}}
	up := &fakeUploader{}

	s, err := NewScene(imported, up, WithBuildWorkers(2))
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "pair", s.Name())
	assert.Equal(t, 2, s.MeshCount())
	assert.Equal(t, 6, s.VertexCount())
	assert.Equal(t, 6, s.IndexCount())
	assert.Equal(t, 2, s.TriangleCount())
	assert.Equal(t, []filtering.MeshConstants{{FaceCount: 1, IndexOffset: 0}, {FaceCount: 1, IndexOffset: 3}}, s.MeshConstants())

	lo, hi := s.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, lo)
	assert.Equal(t, mgl32.Vec3{11, 1, 0}, hi)

	require.Len(t, up.uploads, 5)
	positions := floats(up.find(t, "Positions").data)
	require.Len(t, positions, 18)
	assert.Equal(t, []float32{10, 0, 0, 11, 0, 0, 10, 1, 0}, positions[9:])
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, uints(up.find(t, "Indices").data))
	assert.Equal(t, []uint32{1, 0, 1, 3}, uints(up.find(t, "Mesh Constants").data))
	assert.Len(t, floats(up.find(t, "UVs").data), 12)
	assert.Equal(t, "pair Positions", up.uploads[0].label)
	assert.NotZero(t, up.uploads[0].usage&wgpu.BufferUsageStorage)

	assert.Same(t, up.find(t, "Positions").buf, s.PositionBuffer())
	assert.Same(t, up.find(t, "Normals").buf, s.NormalBuffer())
	assert.Same(t, up.find(t, "UVs").buf, s.UVBuffer())
	assert.Same(t, up.find(t, "Indices").buf, s.IndexBuffer())
	assert.Same(t, up.find(t, "Mesh Constants").buf, s.MeshConstantsBuffer())

	require.Len(t, s.Clusters(), 2)
	assert.Equal(t, []cluster.ClusterCompact{{TriangleCount: 1, ClusterStart: 0}}, s.Clusters()[1].Compacts)
	assert.InDelta(t, 10, s.Clusters()[1].Clusters[0].AABBMin.X(), 1e-6, "clusters are built in world space")

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, imported.Meshes[1].Positions[0], "imported data is not modified")
}

func TestNewScene_TransformsNormals(t *testing.T) {
	imported := &common.ImportedScene{Meshes: []common.ImportedMesh{
		triangleMesh("rotated", mgl32.HomogRotate3DY(mgl32.DegToRad(90)).Mul4(mgl32.Scale3D(3, 3, 3))),
	}}
	up := &fakeUploader{}
	_, err := NewScene(imported, up)
	require.NoError(t, err)

	normals := floats(up.find(t, "Normals").data)
	require.Len(t, normals, 9)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, normals[:3], 1e-5)
}

func TestNewScene_ManyMeshesAcrossWorkers(t *testing.T) {
	imported := &common.ImportedScene{Name: "many"}
	for i := 0; i < 300; i++ {
		imported.Meshes = append(imported.Meshes, triangleMesh("t", mgl32.Translate3D(float32(i), 0, 0)))
	}
	imported.Meshes = append(imported.Meshes, gridMesh(2*cluster.ClusterSize+10))

	s, err := NewScene(imported, &fakeUploader{}, WithBuildWorkers(3), WithName("renamed"))
	require.NoError(t, err)

	assert.Equal(t, "renamed", s.Name())
	clusters := s.Clusters()
	require.Len(t, clusters, 301)
	for i := 0; i < 300; i++ {
		require.Len(t, clusters[i].Compacts, 1)
	}
	grid := clusters[300]
	require.Len(t, grid.Compacts, 3)
	assert.Equal(t, uint32(10), grid.Compacts[2].TriangleCount)
	assert.Equal(t, uint32(2*cluster.ClusterSize), grid.Compacts[2].ClusterStart)
	assert.Equal(t, uint32(300*3), s.MeshConstants()[300].IndexOffset)
}

func TestNewScene_Empty(t *testing.T) {
	_, err := NewScene(nil, &fakeUploader{})
	assert.ErrorIs(t, err, ErrEmptyScene)

	_, err = NewScene(&common.ImportedScene{Name: "empty"}, &fakeUploader{})
	assert.ErrorIs(t, err, ErrEmptyScene)

	_, err = NewScene(&common.ImportedScene{Meshes: []common.ImportedMesh{triangleMesh("a", mgl32.Ident4())}}, nil)
	assert.Error(t, err)
}

func TestNewScene_InvalidMesh(t *testing.T) {
	bad := triangleMesh("bad", mgl32.Ident4())
	bad.Indices = []uint32{0, 1, 7}
	up := &fakeUploader{}

	_, err := NewScene(&common.ImportedScene{Meshes: []common.ImportedMesh{bad}}, up)
	assert.ErrorContains(t, err, "out of range")
	assert.Empty(t, up.uploads)
}

func TestNewScene_UploadFailureReleasesBuffers(t *testing.T) {
	up := &fakeUploader{failAt: 3}
	imported := &common.ImportedScene{Meshes: []common.ImportedMesh{triangleMesh("a", mgl32.Ident4())}}

	s, err := NewScene(imported, up)
	assert.Nil(t, s)
	assert.ErrorContains(t, err, "UVs")
	require.Len(t, up.uploads, 2)
	assert.ElementsMatch(t, []*wgpu.Buffer{up.uploads[0].buf, up.uploads[1].buf}, up.released)
}

func TestScene_Release(t *testing.T) {
	up := &fakeUploader{}
	s, err := NewScene(&common.ImportedScene{Meshes: []common.ImportedMesh{triangleMesh("a", mgl32.Ident4())}}, up)
	require.NoError(t, err)

	s.Release()
	assert.Len(t, up.released, 5)
	assert.Nil(t, s.PositionBuffer())
	assert.Nil(t, s.MeshConstantsBuffer())

	s.Release()
	assert.Len(t, up.released, 5, "release is idempotent")
}

func TestNewScene_DistinctIDs(t *testing.T) {
	imported := &common.ImportedScene{Meshes: []common.ImportedMesh{triangleMesh("a", mgl32.Ident4())}}
	a, err := NewScene(imported, &fakeUploader{})
	require.NoError(t, err)
	b, err := NewScene(imported, &fakeUploader{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}
