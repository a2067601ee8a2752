package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader module is used for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a render pipeline.
	ShaderTypeFragment
)

func (t ShaderType) visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
	declarations               []Annotation
}

// Shader is a pre-processed and parsed WGSL shader stage. It exposes what pipeline creation
// needs (module, entry point, bind group layouts, vertex layouts) and the variable names
// used to look up binding indices by role.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	Key() string

	// Source retrieves the pre-processed WGSL source.
	Source() string

	// ShaderType returns the stage this shader was parsed for.
	ShaderType() ShaderType

	// EntryPoint returns the entry point function name for the shader's stage.
	EntryPoint() string

	// Module returns the shader module descriptor built from the pre-processed source.
	Module() *wgpu.ShaderModuleDescriptor

	// BindGroupLayoutDescriptors retrieves the parsed bind group layout descriptors keyed by group index.
	// Buffer entries carry a MinBindingSize resolved from the WGSL type.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupFromVarName retrieves the binding index of a variable within a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names keyed by group and binding index.
	BindGroupVarNames() map[int]map[int]string

	// VertexLayouts returns the vertex buffer layouts parsed from @location-only input structs.
	// Empty for compute and fragment shaders and for vertex shaders that pull their inputs.
	VertexLayouts() []wgpu.VertexBufferLayout

	// WorkgroupSize returns the compute workgroup size, or [0, 0, 0] for render stages.
	WorkgroupSize() [3]uint32

	// Declarations returns the group annotations found while pre-processing.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and parses a WGSL source for one pipeline stage.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels and lookups
//   - shaderType: the stage the shader is used for
//   - source: raw WGSL source, possibly containing @vb: annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: if pre-processing fails or the stage's entry point is missing
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		declarations: append([]Annotation(nil), pp.Declarations()...),
		entryPoint:   parseEntryPoint(processed, shaderType),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no entry point for stage %d", key, shaderType)
	}

	s.module = &wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: processed,
		},
	}
	switch shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(processed)
	case ShaderTypeCompute:
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, shaderType.visibility())
	return s, nil
}

// Load builds a shader from one of the embedded WGSL assets.
//
// Parameters:
//   - name: the asset file name, e.g. "triangle_filtering.wgsl"
//   - shaderType: the stage the shader is used for
//
// Returns:
//   - Shader: the parsed shader, keyed by name and stage
//   - error: if the asset does not exist or fails to parse
func Load(name string, shaderType ShaderType) (Shader, error) {
	src, err := AssetSource(name)
	if err != nil {
		return nil, err
	}
	return NewShader(fmt.Sprintf("%s#%d", name, shaderType), shaderType, src)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
