package shader

import (
	"fmt"
	"strings"

	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

// registryEntry pairs an embedded WGSL struct source with its WGSL type name.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string
	declarations         []Annotation
}

// PreProcessor expands @vb: annotations in WGSL source.
type PreProcessor interface {
	// Process replaces include annotations with struct sources and group annotations with
	// generated binding declarations. The declarations list is reset on every call.
	//
	// Parameters:
	//   - source: raw WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: if an annotation is malformed
	Process(source string) (string, error)

	// Declarations returns the group annotations collected by the last Process call, in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with every shared GPU struct registered.
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgView:                   {Source: camera.GPUViewUniformSource, Type: "ViewUniform"},
			AnnotationArgMeshConstants:          {Source: filtering.GPUMeshConstantsSource, Type: "MeshConstants"},
			AnnotationArgSmallBatchData:         {Source: filtering.GPUSmallBatchDataSource, Type: "SmallBatchData"},
			AnnotationArgUncompactedDrawCommand: {Source: filtering.GPUUncompactedDrawCommandSource, Type: "UncompactedDrawCommand"},
			AnnotationArgDrawCounter:            {Source: filtering.GPUDrawCounterSource, Type: "DrawCounter"},
			AnnotationArgIndexedIndirectDraw:    {Source: filtering.GPUIndexedIndirectDrawSource, Type: "IndexedIndirectDraw"},
			AnnotationArgClusterBounds:          {Source: cluster.GPUClusterBoundsSource, Type: "ClusterBounds"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			out = append(out, strings.TrimRight(p.structRegistry[a.Args[0]].Source, "\n"))
		case AnnotationTypeBindingGroup:
			wgslType := p.structRegistry[a.Args[2]].Type
			if inner, ok := strings.CutPrefix(string(a.Args[2]), "array<"); ok {
				wgslType = fmt.Sprintf("array<%s>", p.structRegistry[AnnotationArg(strings.TrimSuffix(inner, ">"))].Type)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
