package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/common"
)

// maxNodeDepth bounds the node hierarchy walk; deeper documents are treated as cyclic.
const maxNodeDepth = 256

type gltfImporterImpl struct {
	logger common.Logger
}

// gltfImporter turns a parsed glTF document into an ImportedScene with one mesh per
// (node, primitive) instance.
type gltfImporter interface {
	// Import parses and imports a file.
	//
	// Parameters:
	//   - path: path to a .gltf or .glb file
	//
	// Returns:
	//   - *common.ImportedScene: the scene's mesh instances with their world transforms
	//   - error: if parsing or extraction fails
	Import(path string) (*common.ImportedScene, error)

	// ImportReader imports from a stream. The scene is named name.
	ImportReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error)
}

var _ gltfImporter = &gltfImporterImpl{}

func newGLTFImporter(logger common.Logger) gltfImporter {
	return &gltfImporterImpl{logger: logger}
}

func (imp *gltfImporterImpl) Import(path string) (*common.ImportedScene, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return imp.importFromParser(parser, name)
}

func (imp *gltfImporterImpl) ImportReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return imp.importFromParser(parser, name)
}

func (imp *gltfImporterImpl) importFromParser(parser gltfParser, fallbackName string) (*common.ImportedScene, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}
	extractor := newGLTFMeshExtractor(parser, imp.logger)
	scene := &common.ImportedScene{Name: fallbackName}

	roots, sceneName := gltfSceneRoots(doc)
	if sceneName != "" {
		scene.Name = sceneName
	}

	if roots == nil {
		// no scene graph: every mesh once at the origin
		for mi := range doc.Meshes {
			meshes, err := extractor.ExtractMesh(mi)
			if err != nil {
				return nil, err
			}
			scene.Meshes = append(scene.Meshes, meshes...)
		}
		return scene, nil
	}

	var visit func(node int, parent mgl32.Mat4, depth int) error
	visit = func(node int, parent mgl32.Mat4, depth int) error {
		if node < 0 || node >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", node)
		}
		if depth > maxNodeDepth {
			return fmt.Errorf("node hierarchy deeper than %d, possible cycle at node %d", maxNodeDepth, node)
		}
		n := &doc.Nodes[node]
		world := parent.Mul4(gltfNodeTransform(n))
		if n.Mesh != nil {
			meshes, err := extractor.ExtractMesh(*n.Mesh)
			if err != nil {
				return err
			}
			for _, m := range meshes {
				m.World = world
				scene.Meshes = append(scene.Meshes, m)
			}
		}
		for _, child := range n.Children {
			if err := visit(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := visit(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}

	imp.logger.Debugf("imported %s: %d mesh instances, %d triangles", scene.Name, len(scene.Meshes), scene.TriangleCount())
	return scene, nil
}

// gltfSceneRoots picks the default scene, the first scene, or every parentless node. It returns
// nil roots when the document has no nodes.
func gltfSceneRoots(doc *gltfDocument) ([]int, string) {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		s := &doc.Scenes[idx]
		return append([]int{}, s.Nodes...), s.Name
	}
	if len(doc.Nodes) == 0 {
		return nil, ""
	}
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	roots := []int{}
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots, ""
}

// gltfNodeTransform returns the node's local matrix, or T*R*S when no matrix is given.
func gltfNodeTransform(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	t := mgl32.Vec3{}
	r := mgl32.QuatIdent()
	s := mgl32.Vec3{1, 1, 1}
	if n.Translation != nil {
		t = mgl32.Vec3(*n.Translation)
	}
	if n.Rotation != nil {
		r = mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	}
	if n.Scale != nil {
		s = mgl32.Vec3(*n.Scale)
	}
	return common.ComposeTRS(t, r, s)
}
