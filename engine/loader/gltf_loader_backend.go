package loader

import (
	"io"

	"github.com/shadowP12/visibility-buffer/common"
)

type gltfLoaderBackendImpl struct {
	importer gltfImporter
}

type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

func newGLTFLoaderBackend(logger common.Logger) gltfLoaderBackend {
	return &gltfLoaderBackendImpl{
		importer: newGLTFImporter(logger),
	}
}

func (b *gltfLoaderBackendImpl) Load(path string) (*common.ImportedScene, error) {
	return b.importer.Import(path)
}

func (b *gltfLoaderBackendImpl) LoadReader(name string, r io.Reader, isGLB bool) (*common.ImportedScene, error) {
	return b.importer.ImportReader(name, r, isGLB)
}
