package common

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ImportedMesh holds one triangle-list primitive as produced by an importer.
// Attribute slices are index-aligned per vertex and Indices are local to this mesh.
type ImportedMesh struct {
	Name string

	Positions []mgl32.Vec3

	Normals []mgl32.Vec3

	UVs []mgl32.Vec2

	// Indices are flattened triangle triples, normalized to 32-bit.
	Indices []uint32

	// World is the world transform of the node instancing this mesh.
	World mgl32.Mat4
}

// TriangleCount returns the number of triangles described by Indices.
func (m *ImportedMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Validate checks attribute alignment and index bounds.
//
// Returns:
//   - error: a description of the first inconsistency found, or nil
func (m *ImportedMesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh %q: index count %d is not a multiple of 3", m.Name, len(m.Indices))
	}
	if len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("mesh %q: %d normals for %d positions", m.Name, len(m.Normals), len(m.Positions))
	}
	if len(m.UVs) != len(m.Positions) {
		return fmt.Errorf("mesh %q: %d uvs for %d positions", m.Name, len(m.UVs), len(m.Positions))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Positions) {
			return fmt.Errorf("mesh %q: index %d at %d out of range (%d vertices)", m.Name, idx, i, len(m.Positions))
		}
	}
	return nil
}

// ImportedScene is the importer's output: one entry per mesh instance.
type ImportedScene struct {
	Name string

	Meshes []ImportedMesh
}

// TriangleCount returns the total triangle count over all meshes.
func (s *ImportedScene) TriangleCount() int {
	n := 0
	for i := range s.Meshes {
		n += s.Meshes[i].TriangleCount()
	}
	return n
}
