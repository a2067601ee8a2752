package scene

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

// ErrEmptyScene is returned when an imported scene holds no triangles.
var ErrEmptyScene = errors.New("scene has no triangles")

// Scene is the GPU-resident form of an imported scene: world-space vertex attributes in one
// global vertex space, every mesh's indices back to back, and the clusters built over them.
// Geometry is immutable after NewScene returns and the scene is safe for concurrent readers.
type Scene interface {
	renderer.Scene

	// Name returns the scene's display name.
	Name() string

	// MeshCount returns the number of mesh instances.
	MeshCount() int

	// VertexCount returns the number of vertices in the global vertex space.
	VertexCount() int

	// TriangleCount returns the number of triangles over all meshes.
	TriangleCount() int

	// Bounds returns the world-space bounding box of every vertex.
	//
	// Returns:
	//   - mgl32.Vec3: the minimum corner
	//   - mgl32.Vec3: the maximum corner
	Bounds() (mgl32.Vec3, mgl32.Vec3)

	// MeshConstants returns each mesh's face count and offset into the global index buffer.
	MeshConstants() []filtering.MeshConstants

	// Release releases every GPU buffer owned by the scene. The scene must not be rendered
	// afterwards.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	id     string
	name   string
	logger common.Logger

	uploader renderer.BufferUploader
	workers  int

	clusters    []cluster.MeshClusters
	constants   []filtering.MeshConstants
	vertexCount int
	indexCount  int
	boundsMin   mgl32.Vec3
	boundsMax   mgl32.Vec3

	positions     *wgpu.Buffer
	normals       *wgpu.Buffer
	uvs           *wgpu.Buffer
	indices       *wgpu.Buffer
	meshConstants *wgpu.Buffer
}

var _ Scene = &scene{}

// geometry is the host-side result of baking an imported scene.
type geometry struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2
	indices   []uint32
	constants []filtering.MeshConstants

	// meshVertices and meshIndices give each mesh's range in positions and indices.
	meshVertices [][2]int
	meshIndices  [][2]int
}

// NewScene bakes an imported scene into world space, builds the clusters of every mesh in
// parallel and uploads the geometry through uploader. Buffers created before a failing step
// are released before returning. The imported scene is not modified.
//
// Parameters:
//   - imported: the loader's output
//   - uploader: the device buffer factory, usually renderer.Renderer.Uploader()
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the GPU-resident scene
//   - error: ErrEmptyScene, a mesh validation or cluster build error, or an upload error
func NewScene(imported *common.ImportedScene, uploader renderer.BufferUploader, options ...SceneBuilderOption) (Scene, error) {
	if uploader == nil {
		return nil, errors.New("scene: NewScene requires a non-nil uploader")
	}
	if imported == nil || imported.TriangleCount() == 0 {
		return nil, ErrEmptyScene
	}

	s := &scene{
		mu:       &sync.RWMutex{},
		id:       uuid.NewString(),
		name:     imported.Name,
		logger:   common.NewNopLogger(),
		uploader: uploader,
		workers:  max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	start := time.Now()
	geo, err := bake(imported)
	if err != nil {
		return nil, err
	}
	if s.clusters, err = s.buildClusters(imported, geo); err != nil {
		return nil, err
	}
	s.constants = geo.constants
	s.vertexCount = len(geo.positions)
	s.indexCount = len(geo.indices)
	s.boundsMin, s.boundsMax = bounds(geo.positions)

	if err := s.upload(geo); err != nil {
		return nil, err
	}

	clusterCount := 0
	for i := range s.clusters {
		clusterCount += len(s.clusters[i].Clusters)
	}
	s.logger.Infof("scene %s: %d meshes, %d vertices, %d triangles, %d clusters in %s",
		s.name, len(s.constants), s.vertexCount, s.indexCount/3, clusterCount, time.Since(start).Round(time.Millisecond))
	return s, nil
}

// bake transforms every mesh instance into world space and rebases its indices into the
// global vertex space. Positions use the instance's World matrix and normals its normal matrix.
func bake(imported *common.ImportedScene) (*geometry, error) {
	vertexCount, indexCount := 0, 0
	for i := range imported.Meshes {
		m := &imported.Meshes[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}
		vertexCount += len(m.Positions)
		indexCount += len(m.Indices)
	}
	if uint64(vertexCount) > uint64(^uint32(0)) || uint64(indexCount) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("scene too large: %d vertices, %d indices", vertexCount, indexCount)
	}

	geo := &geometry{
		positions:    make([]mgl32.Vec3, 0, vertexCount),
		normals:      make([]mgl32.Vec3, 0, vertexCount),
		uvs:          make([]mgl32.Vec2, 0, vertexCount),
		indices:      make([]uint32, 0, indexCount),
		constants:    make([]filtering.MeshConstants, 0, len(imported.Meshes)),
		meshVertices: make([][2]int, 0, len(imported.Meshes)),
		meshIndices:  make([][2]int, 0, len(imported.Meshes)),
	}
	for i := range imported.Meshes {
		m := &imported.Meshes[i]
		base := len(geo.positions)
		firstIndex := len(geo.indices)

		normalMatrix := common.NormalMatrix(m.World)
		for v := range m.Positions {
			geo.positions = append(geo.positions, m.World.Mul4x1(m.Positions[v].Vec4(1)).Vec3())
			geo.normals = append(geo.normals, common.SafeNormalize(normalMatrix.Mul3x1(m.Normals[v])))
		}
		geo.uvs = append(geo.uvs, m.UVs...)
		for _, idx := range m.Indices {
			geo.indices = append(geo.indices, idx+uint32(base))
		}

		geo.meshVertices = append(geo.meshVertices, [2]int{base, len(geo.positions)})
		geo.meshIndices = append(geo.meshIndices, [2]int{firstIndex, len(geo.indices)})
		geo.constants = append(geo.constants, filtering.MeshConstants{
			FaceCount:   uint32(len(m.Indices) / 3),
			IndexOffset: uint32(firstIndex),
		})
	}
	return geo, nil
}

// buildClusters runs cluster.Build for every mesh on a bounded worker pool. Each mesh is built
// over its world-space positions with its mesh-local indices.
func (s *scene) buildClusters(imported *common.ImportedScene, geo *geometry) ([]cluster.MeshClusters, error) {
	pool := worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	defer pool.Stop()

	results := make([]cluster.MeshClusters, len(imported.Meshes))
	errs := make([]error, len(imported.Meshes))

	// A WaitGroup is the barrier; pool.Wait only returns once workers idle-exit.
	var wg sync.WaitGroup
	for i := range imported.Meshes {
		wg.Add(1)
		mi := i
		pool.SubmitTask(worker.Task{
			ID: mi,
			Do: func() (any, error) {
				defer wg.Done()
				vr := geo.meshVertices[mi]
				mc, err := cluster.Build(geo.positions[vr[0]:vr[1]], imported.Meshes[mi].Indices)
				if err != nil {
					errs[mi] = fmt.Errorf("mesh %d (%s): %w", mi, imported.Meshes[mi].Name, err)
					return nil, errs[mi]
				}
				results[mi] = mc
				return nil, nil
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// upload creates the scene's GPU buffers. On failure every buffer created so far is released
// and the scene keeps none of them.
func (s *scene) upload(geo *geometry) (err error) {
	var created []*wgpu.Buffer
	defer func() {
		if err != nil {
			for _, buf := range created {
				s.uploader.ReleaseBuffer(buf)
			}
		}
	}()

	create := func(label string, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
		buf, err := s.uploader.CreateBufferInit(fmt.Sprintf("%s %s", s.name, label), usage, data)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", label, err)
		}
		created = append(created, buf)
		return buf, nil
	}

	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	var positions, normals, uvs, indices, constants *wgpu.Buffer
	if positions, err = create("Positions", storage, common.SliceToBytes(geo.positions)); err != nil {
		return err
	}
	if normals, err = create("Normals", storage, common.SliceToBytes(geo.normals)); err != nil {
		return err
	}
	if uvs, err = create("UVs", storage, common.SliceToBytes(geo.uvs)); err != nil {
		return err
	}
	if indices, err = create("Indices", storage, common.SliceToBytes(geo.indices)); err != nil {
		return err
	}
	if constants, err = create("Mesh Constants", storage, filtering.MarshalMeshConstants(geo.constants)); err != nil {
		return err
	}

	s.mu.Lock()
	s.positions, s.normals, s.uvs, s.indices, s.meshConstants = positions, normals, uvs, indices, constants
	s.mu.Unlock()
	return nil
}

func bounds(positions []mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	if len(positions) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	lo, hi := positions[0], positions[0]
	for _, p := range positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return lo, hi
}

func (s *scene) ID() string {
	return s.id
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Clusters() []cluster.MeshClusters {
	return s.clusters
}

func (s *scene) MeshConstants() []filtering.MeshConstants {
	return s.constants
}

func (s *scene) MeshCount() int {
	return len(s.constants)
}

func (s *scene) IndexCount() int {
	return s.indexCount
}

func (s *scene) VertexCount() int {
	return s.vertexCount
}

func (s *scene) TriangleCount() int {
	return s.indexCount / 3
}

func (s *scene) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	return s.boundsMin, s.boundsMax
}

func (s *scene) PositionBuffer() *wgpu.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions
}

func (s *scene) NormalBuffer() *wgpu.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.normals
}

func (s *scene) UVBuffer() *wgpu.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uvs
}

func (s *scene) IndexBuffer() *wgpu.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indices
}

func (s *scene) MeshConstantsBuffer() *wgpu.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meshConstants
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, buf := range []**wgpu.Buffer{&s.positions, &s.normals, &s.uvs, &s.indices, &s.meshConstants} {
		if *buf != nil {
			s.uploader.ReleaseBuffer(*buf)
			*buf = nil
		}
	}
}
