package loader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/common"
)

type gltfMeshExtractorImpl struct {
	parser gltfParser
	logger common.Logger
	cache  map[int][]common.ImportedMesh
}

// gltfMeshExtractor converts glTF meshes into triangle-list ImportedMeshes, one per primitive.
type gltfMeshExtractor interface {
	// ExtractMesh returns the triangle primitives of a mesh with an identity World transform.
	// Results are cached per mesh and must not be modified.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh in the document
	//
	// Returns:
	//   - []common.ImportedMesh: one entry per triangle primitive
	//   - error: if an accessor cannot be read or the primitive is inconsistent
	ExtractMesh(meshIndex int) ([]common.ImportedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser, logger common.Logger) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{
		parser: parser,
		logger: logger,
		cache:  make(map[int][]common.ImportedMesh),
	}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]common.ImportedMesh, error) {
	if cached, ok := e.cache[meshIndex]; ok {
		return cached, nil
	}
	doc := e.parser.Document()
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	name := mesh.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", meshIndex)
	}

	var out []common.ImportedMesh
	for pi := range mesh.Primitives {
		primName := name
		if len(mesh.Primitives) > 1 {
			primName = fmt.Sprintf("%s_%d", name, pi)
		}
		m, err := e.extractPrimitive(&mesh.Primitives[pi], primName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", primName, err)
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	e.cache[meshIndex] = out
	return out, nil
}

// extractPrimitive returns nil for primitives that are not triangle lists.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, name string) (*common.ImportedMesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		e.logger.Warnf("skipping primitive %s: mode %d is not a triangle list", name, *prim.Mode)
		return nil, nil
	}
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}

	m := &common.ImportedMesh{Name: name, World: mgl32.Ident4()}
	var err error
	if m.Positions, err = e.parser.ReadVec3(posAccessor); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	if prim.Indices != nil {
		if m.Indices, err = e.parser.ReadIndices(*prim.Indices); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, len(m.Positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	if acc, ok := prim.Attributes["NORMAL"]; ok {
		if m.Normals, err = e.parser.ReadVec3(acc); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	} else {
		m.Normals = generateNormals(m.Positions, m.Indices)
	}

	if acc, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if m.UVs, err = e.parser.ReadVec2(acc); err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
	} else {
		m.UVs = make([]mgl32.Vec2, len(m.Positions))
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// generateNormals computes smooth vertex normals by accumulating area-weighted face normals.
// Vertices touched only by degenerate triangles get +Y.
//
// Parameters:
//   - positions: vertex positions
//   - indices: triangle triples; out-of-range triangles are ignored
//
// Returns:
//   - []mgl32.Vec3: one unit normal per vertex
func generateNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	n := len(positions)
	normals := make([]mgl32.Vec3, n)
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		p0 := positions[i0]
		face := positions[i1].Sub(p0).Cross(positions[i2].Sub(p0))
		normals[i0] = normals[i0].Add(face)
		normals[i1] = normals[i1].Add(face)
		normals[i2] = normals[i2].Add(face)
	}
	for i, v := range normals {
		if v.Len() < 1e-12 {
			normals[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		normals[i] = v.Normalize()
	}
	return normals
}
