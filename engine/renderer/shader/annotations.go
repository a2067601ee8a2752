// annotations.go defines the annotation syntax understood by the WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @vb: that inject shared struct
// definitions and generate @group/@binding declarations for them, so the Go-side layout of
// every GPU record and its WGSL twin come from one place.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation within a WGSL comment line.
const annotationPrefix = "@vb:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct.
	//
	// Syntax: //@vb:include <struct_type>
	//
	// Example: //@vb:include view
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding declaration and is recorded in
	// the pre-processor's declarations list.
	//
	// Syntax: //@vb:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@vb:group 0 6 storage_uniform view view
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation is a single parsed @vb: annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct type key
	//   - group:   [0] = address space, [1] = var name, [2] = type key, optionally array<key>
	Args []AnnotationArg

	// Line is the 1-based source line, for error reporting.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// AnnotationArg is a typed annotation argument.
type AnnotationArg string

// Struct type arguments, each backed by an embedded .wgsl asset next to its Go twin.
const (
	// AnnotationArgView identifies the ViewUniform struct (engine/camera/assets/view_uniform.wgsl).
	AnnotationArgView AnnotationArg = "view"

	// AnnotationArgMeshConstants identifies MeshConstants.
	AnnotationArgMeshConstants AnnotationArg = "mesh_constants"

	// AnnotationArgSmallBatchData identifies SmallBatchData.
	AnnotationArgSmallBatchData AnnotationArg = "small_batch_data"

	// AnnotationArgUncompactedDrawCommand identifies UncompactedDrawCommand.
	AnnotationArgUncompactedDrawCommand AnnotationArg = "uncompacted_draw_command"

	// AnnotationArgDrawCounter identifies DrawCounter.
	AnnotationArgDrawCounter AnnotationArg = "draw_counter"

	// AnnotationArgIndexedIndirectDraw identifies IndexedIndirectDraw.
	AnnotationArgIndexedIndirectDraw AnnotationArg = "indexed_indirect_draw"

	// AnnotationArgClusterBounds identifies the cluster bounds overlay instance.
	AnnotationArgClusterBounds AnnotationArg = "cluster_bounds"
)

// Address space arguments.
const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgView,
	AnnotationArgMeshConstants,
	AnnotationArgSmallBatchData,
	AnnotationArgUncompactedDrawCommand,
	AnnotationArgDrawCounter,
	AnnotationArgIndexedIndirectDraw,
	AnnotationArgClusterBounds,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// parseAnnotation parses one source line. Lines without the prefix yield (nil, nil).
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: include requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in include", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: group requires five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[3])
		}
		elem := args[5]
		if inner, isArray := strings.CutPrefix(elem, "array<"); isArray {
			elem = strings.TrimSuffix(inner, ">")
		}
		if !slices.Contains(validStructTypes, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in group", lineNum, elem)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
	}
}
