package loader

import (
	"io"

	"github.com/shadowP12/visibility-buffer/common"
)

// loaderBackend imports one model format. Concrete implementations such as gltfLoaderBackend
// handle the format details.
type loaderBackend interface {
	// Load imports the scene stored at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *common.ImportedScene: the imported mesh instances
	//   - error: error if loading fails
	Load(path string) (*common.ImportedScene, error)

	// LoadReader imports a scene from a stream.
	//
	// Parameters:
	//   - name: the scene name
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//
	// Returns:
	//   - *common.ImportedScene: the imported mesh instances
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error)
}
