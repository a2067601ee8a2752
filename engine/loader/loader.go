package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shadowP12/visibility-buffer/common"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions and for glTF features the
	// importer does not read, such as required extensions or sparse accessors.
	ErrUnsupportedFormat = errors.New("unsupported model format")

	// ErrAccessorOutOfRange is returned when an accessor, buffer view or buffer reference points
	// outside the document or its binary data.
	ErrAccessorOutOfRange = errors.New("accessor out of range")
)

// LoaderBackendType identifies the model format backend used by a Loader.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF 2.0 backend (.gltf and .glb).
	BackendTypeGLTF LoaderBackendType = iota
)

type loader struct {
	mu sync.RWMutex

	logger     common.Logger
	sceneCache map[string]*common.ImportedScene

	backendType LoaderBackendType
	backend     loaderBackend
}

// Loader imports model files into ImportedScenes and caches them by path or name.
// Returned scenes are shared between callers and must be treated as read-only.
type Loader interface {
	// Load imports a model file, returning the cached scene when the path was loaded before.
	//
	// Parameters:
	//   - path: a .gltf or .glb file
	//
	// Returns:
	//   - *common.ImportedScene: the scene's mesh instances with world transforms
	//   - error: ErrUnsupportedFormat for unknown extensions, or a parse error
	Load(path string) (*common.ImportedScene, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key and scene name
	//   - r: the model data
	//   - isGLB: true for GLB binary data, false for glTF JSON
	//
	// Returns:
	//   - *common.ImportedScene: the imported scene
	//   - error: if parsing fails
	LoadReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error)

	// Get returns a cached scene, or nil.
	Get(name string) *common.ImportedScene

	// Evict drops a cached scene.
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a Loader for one model format.
//
// Parameters:
//   - backendType: the format backend
//   - options: functional options to configure the loader
//
// Returns:
//   - Loader: the loader
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger:      common.NewNopLogger(),
		sceneCache:  make(map[string]*common.ImportedScene),
		backendType: backendType,
	}
	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		fallthrough
	default:
		l.backend = newGLTFLoaderBackend(l.logger)
	}
	return l
}

func (l *loader) Load(path string) (*common.ImportedScene, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	scene, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	l.mu.Lock()
	l.sceneCache[path] = scene
	l.mu.Unlock()
	l.logger.Infof("loaded %s: %d meshes, %d triangles", path, len(scene.Meshes), scene.TriangleCount())
	return scene, nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}
	scene, err := l.backend.LoadReader(name, r, isGLB)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.sceneCache[name] = scene
	l.mu.Unlock()
	return scene, nil
}

func (l *loader) Get(name string) *common.ImportedScene {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sceneCache[name]
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sceneCache, name)
}

// resolveBackend selects the backend for a file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
