package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
)

// gltfFixture assembles a glTF document and its single binary buffer.
type gltfFixture struct {
	bin       []byte
	views     []map[string]any
	accessors []map[string]any
	doc       map[string]any
}

func newFixture() *gltfFixture {
	return &gltfFixture{doc: map[string]any{"asset": map[string]any{"version": "2.0"}}}
}

func (f *gltfFixture) accessor(data []byte, componentType int, typ string, count int) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	f.views = append(f.views, map[string]any{"buffer": 0, "byteOffset": len(f.bin), "byteLength": len(data)})
	f.bin = append(f.bin, data...)
	f.accessors = append(f.accessors, map[string]any{
		"bufferView": len(f.views) - 1, "componentType": componentType, "type": typ, "count": count,
	})
	return len(f.accessors) - 1
}

func (f *gltfFixture) vec3(values ...mgl32.Vec3) int {
	buf := make([]byte, 0, len(values)*12)
	for _, v := range values {
		for _, c := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
		}
	}
	return f.accessor(buf, gltfComponentTypeFloat, gltfAccessorTypeVec3, len(values))
}

func (f *gltfFixture) u16(values ...uint16) int {
	buf := make([]byte, 0, len(values)*2)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	return f.accessor(buf, gltfComponentTypeUnsignedShort, gltfAccessorTypeScalar, len(values))
}

func (f *gltfFixture) u8(values ...uint8) int {
	return f.accessor(append([]byte{}, values...), gltfComponentTypeUnsignedByte, gltfAccessorTypeScalar, len(values))
}

func (f *gltfFixture) json(t *testing.T, bufferURI string) []byte {
	t.Helper()
	buffer := map[string]any{"byteLength": len(f.bin)}
	if bufferURI != "" {
		buffer["uri"] = bufferURI
	}
	f.doc["buffers"] = []any{buffer}
	f.doc["bufferViews"] = f.views
	f.doc["accessors"] = f.accessors
	data, err := json.Marshal(f.doc)
	require.NoError(t, err)
	return data
}

func (f *gltfFixture) embedded(t *testing.T) []byte {
	return f.json(t, "data:application/octet-stream;base64,"+base64.StdEncoding.EncodeToString(f.bin))
}

func (f *gltfFixture) glb(t *testing.T) []byte {
	jsonChunk := f.json(t, "")
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	var out bytes.Buffer
	total := 12 + 8 + len(jsonChunk) + 8 + len(f.bin)
	for _, v := range []uint32{gltfGLBMagic, gltfGLBVersion, uint32(total), uint32(len(jsonChunk)), gltfGLBChunkJSON} {
		require.NoError(t, binary.Write(&out, binary.LittleEndian, v))
	}
	out.Write(jsonChunk)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(len(f.bin))))
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(gltfGLBChunkBIN)))
	out.Write(f.bin)
	return out.Bytes()
}

// quadFixture is a unit quad in the XY plane facing +Z, without normals or uvs.
func quadFixture() *gltfFixture {
	f := newFixture()
	pos := f.vec3(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0, 1, 0})
	idx := f.u16(0, 1, 2, 0, 2, 3)
	f.doc["meshes"] = []any{map[string]any{
		"name":       "quad",
		"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}, "indices": idx}},
	}}
	return f
}

func TestLoadReader_NodeHierarchy(t *testing.T) {
	f := quadFixture()
	f.doc["nodes"] = []any{
		map[string]any{"translation": []float32{1, 2, 3}, "children": []int{1}},
		map[string]any{"scale": []float32{2, 2, 2}, "mesh": 0},
	}
	f.doc["scenes"] = []any{map[string]any{"name": "main", "nodes": []int{0}}}
	f.doc["scene"] = 0

	l := NewLoader(BackendTypeGLTF)
	scene, err := l.LoadReader("quad", bytes.NewReader(f.embedded(t)), false)
	require.NoError(t, err)

	assert.Equal(t, "main", scene.Name)
	require.Len(t, scene.Meshes, 1)
	m := scene.Meshes[0]
	assert.Equal(t, "quad", m.Name)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)
	assert.Equal(t, 2, scene.TriangleCount())

	world := m.World.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{3, 2, 3, 1}, world[:], 1e-6)

	for _, n := range m.Normals {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, n[:], 1e-6, "normals generated from winding")
	}
	assert.Equal(t, make([]mgl32.Vec2, 4), m.UVs, "missing uvs are zero filled")
	assert.Same(t, scene, l.Get("quad"))
}

func TestLoadReader_MatrixNodeAndByteIndices(t *testing.T) {
	f := newFixture()
	pos := f.vec3(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	nrm := f.vec3(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1})
	idx := f.u8(0, 1, 2)
	f.doc["meshes"] = []any{map[string]any{"primitives": []any{map[string]any{
		"attributes": map[string]any{"POSITION": pos, "NORMAL": nrm}, "indices": idx,
	}}}}
	translate := mgl32.Translate3D(0, 0, -5)
	f.doc["nodes"] = []any{map[string]any{"matrix": translate, "mesh": 0}, map[string]any{"mesh": 0}}

	scene, err := NewLoader(BackendTypeGLTF).LoadReader("tri", bytes.NewReader(f.embedded(t)), false)
	require.NoError(t, err)

	assert.Equal(t, "tri", scene.Name)
	require.Len(t, scene.Meshes, 2, "each node instances the mesh")
	assert.Equal(t, translate, scene.Meshes[0].World)
	assert.Equal(t, mgl32.Ident4(), scene.Meshes[1].World)
	assert.Equal(t, "mesh_0", scene.Meshes[0].Name)
	assert.Equal(t, []uint32{0, 1, 2}, scene.Meshes[0].Indices)
}

func TestLoadReader_NoSceneGraph(t *testing.T) {
	f := quadFixture()
	scene, err := NewLoader(BackendTypeGLTF).LoadReader("bare", bytes.NewReader(f.embedded(t)), false)
	require.NoError(t, err)
	require.Len(t, scene.Meshes, 1)
	assert.Equal(t, mgl32.Ident4(), scene.Meshes[0].World)
}

func TestLoadReader_SkipsNonTriangles(t *testing.T) {
	f := newFixture()
	pos := f.vec3(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	f.doc["meshes"] = []any{map[string]any{"name": "mixed", "primitives": []any{
		map[string]any{"attributes": map[string]any{"POSITION": pos}, "mode": 1},
		map[string]any{"attributes": map[string]any{"POSITION": pos}},
	}}}

	var logs bytes.Buffer
	l := NewLoader(BackendTypeGLTF, WithLogger(common.NewWriterLogger("loader", false, &logs, &logs)))
	scene, err := l.LoadReader("mixed", bytes.NewReader(f.embedded(t)), false)
	require.NoError(t, err)

	require.Len(t, scene.Meshes, 1)
	assert.Equal(t, "mixed_1", scene.Meshes[0].Name)
	assert.Equal(t, []uint32{0, 1, 2}, scene.Meshes[0].Indices, "non-indexed primitives get sequential indices")
	assert.Contains(t, logs.String(), "skipping primitive mixed_0")
}

func TestLoadReader_GLB(t *testing.T) {
	f := quadFixture()
	scene, err := NewLoader(BackendTypeGLTF).LoadReader("quad.glb", bytes.NewReader(f.glb(t)), true)
	require.NoError(t, err)
	require.Len(t, scene.Meshes, 1)
	assert.Len(t, scene.Meshes[0].Positions, 4)
}

func TestLoad_ExternalBufferAndCache(t *testing.T) {
	dir := t.TempDir()
	f := quadFixture()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.bin"), f.bin, 0o644))
	path := filepath.Join(dir, "quad.gltf")
	require.NoError(t, os.WriteFile(path, f.json(t, "quad.bin"), 0o644))

	l := NewLoader(BackendTypeGLTF)
	first, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quad", first.Name)

	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	l.Evict(path)
	assert.Nil(t, l.Get(path))
}

func TestLoad_Errors(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	_, err := l.Load("model.obj")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.LoadReader("v1", bytes.NewReader([]byte(`{"asset":{"version":"1.0"}}`)), false)
	assert.ErrorIs(t, err, errInvalidGLTFVersion)

	_, err = l.LoadReader("ext", bytes.NewReader([]byte(`{"asset":{"version":"2.0"},"extensionsRequired":["KHR_draco_mesh_compression"]}`)), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.LoadReader("magic", bytes.NewReader(make([]byte, 12)), true)
	assert.ErrorIs(t, err, errInvalidGLBMagic)

	f := quadFixture()
	f.accessors[1]["count"] = 600
	_, err = l.LoadReader("range", bytes.NewReader(f.embedded(t)), false)
	assert.ErrorIs(t, err, ErrAccessorOutOfRange)

	f = quadFixture()
	f.accessors[0]["sparse"] = map[string]any{"count": 1}
	_, err = l.LoadReader("sparse", bytes.NewReader(f.embedded(t)), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f = quadFixture()
	f.doc["meshes"] = []any{map[string]any{"primitives": []any{map[string]any{
		"attributes": map[string]any{"POSITION": 0}, "indices": f.u16(0, 1, 9),
	}}}}
	_, err = l.LoadReader("bad-index", bytes.NewReader(f.embedded(t)), false)
	assert.ErrorContains(t, err, "out of range")
}

func TestDecodeDataURI(t *testing.T) {
	data, err := decodeDataURI("data:application/gltf-buffer;base64,AQID")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = decodeDataURI("data:text/plain,hello")
	assert.ErrorIs(t, err, errInvalidBufferURI)
	_, err = decodeDataURI("data:nocomma")
	assert.ErrorIs(t, err, errInvalidBufferURI)
}

func TestGenerateNormals_Degenerate(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {5, 5, 5}}
	normals := generateNormals(positions, []uint32{0, 1, 2})
	for _, n := range normals {
		assert.Equal(t, mgl32.Vec3{0, 1, 0}, n)
	}
}
