package renderer

import "fmt"

// Frame resources tracked across passes.
const (
	ResourceViewUniform     ResourceID = "view_uniform"
	ResourcePositions       ResourceID = "positions"
	ResourceNormals         ResourceID = "normals"
	ResourceUVs             ResourceID = "uvs"
	ResourceIndices         ResourceID = "indices"
	ResourceMeshConstants   ResourceID = "mesh_constants"
	ResourceSmallBatch      ResourceID = "small_batch"
	ResourceFilteredIndices ResourceID = "filtered_indices"
	ResourceUncompacted     ResourceID = "uncompacted_draws"
	ResourceDrawCounter     ResourceID = "draw_counter"
	ResourceDrawCommands    ResourceID = "draw_commands"
	ResourceClusterBounds   ResourceID = "cluster_bounds"
	ResourceVisibility      ResourceID = "visibility_target"
	ResourceDepth           ResourceID = "depth_target"
	ResourceColor           ResourceID = "color_target"
	ResourceSwapchain       ResourceID = "swapchain"
)

// passID names one step of the frame.
type passID string

const (
	passClear      passID = "clear"
	passFilter     passID = "filter"
	passCompact    passID = "compact"
	passVisibility passID = "visibility"
	passShading    passID = "shading"
	passBounds     passID = "cluster_bounds"
	passPresent    passID = "present"
)

// Usage is an access a pass performs on a resource.
type Usage struct {
	Resource ResourceID
	State    ResourceState
}

// frameStep is one pass of the frame: the transitions issued before it, the accesses it
// performs, and the transitions issued after it.
type frameStep struct {
	pass   passID
	batch  int
	before []Usage
	uses   []Usage
	after  []Usage
}

// registerFrameResources puts every frame resource in its state at creation time.
func registerFrameResources(t *ResourceTracker) {
	for _, id := range []ResourceID{ResourcePositions, ResourceNormals, ResourceUVs, ResourceIndices, ResourceMeshConstants} {
		t.Register(id, StateShaderRead)
	}
	for _, id := range []ResourceID{
		ResourceViewUniform, ResourceSmallBatch, ResourceFilteredIndices, ResourceUncompacted,
		ResourceDrawCounter, ResourceDrawCommands, ResourceClusterBounds, ResourceVisibility,
		ResourceDepth, ResourceColor, ResourceSwapchain,
	} {
		t.Register(id, StateUndefined)
	}
}

// frameSchedule lists the passes of one frame in submission order.
//
// Parameters:
//   - batches: number of filter dispatches
//   - bounds: whether the cluster bounds overlay is drawn
//
// Returns:
//   - []frameStep: the ordered steps
func frameSchedule(batches int, bounds bool) []frameStep {
	sceneRead := []Usage{
		{ResourcePositions, StateShaderRead},
		{ResourceIndices, StateShaderRead},
		{ResourceMeshConstants, StateShaderRead},
	}

	steps := []frameStep{{
		pass: passClear,
		before: []Usage{
			{ResourceViewUniform, StateCopyDest},
			{ResourceViewUniform, StateShaderRead},
			{ResourceDrawCounter, StateUnorderedAccess},
			{ResourceUncompacted, StateUnorderedAccess},
			{ResourceFilteredIndices, StateUnorderedAccess},
		},
		uses: []Usage{
			{ResourceDrawCounter, StateUnorderedAccess},
			{ResourceUncompacted, StateUnorderedAccess},
		},
	}}

	for i := 0; i < batches; i++ {
		steps = append(steps, frameStep{
			pass:  passFilter,
			batch: i,
			before: []Usage{
				{ResourceSmallBatch, StateCopyDest},
				{ResourceSmallBatch, StateShaderRead},
			},
			uses: append([]Usage{
				{ResourceSmallBatch, StateShaderRead},
				{ResourceViewUniform, StateShaderRead},
				{ResourceFilteredIndices, StateUnorderedAccess},
				{ResourceUncompacted, StateUnorderedAccess},
				{ResourceDrawCounter, StateUnorderedAccess},
			}, sceneRead...),
		})
	}

	steps = append(steps,
		frameStep{
			pass:   passCompact,
			before: []Usage{{ResourceDrawCommands, StateUnorderedAccess}},
			uses: []Usage{
				{ResourceDrawCounter, StateUnorderedAccess},
				{ResourceUncompacted, StateUnorderedAccess},
				{ResourceDrawCommands, StateUnorderedAccess},
			},
		},
		frameStep{
			pass: passVisibility,
			before: []Usage{
				{ResourceDrawCommands, StateIndirectArgument | StateShaderRead},
				{ResourceFilteredIndices, StateShaderRead},
				{ResourceVisibility, StateRenderTarget},
				{ResourceDepth, StateDepthWrite},
			},
			uses: []Usage{
				{ResourceDrawCommands, StateIndirectArgument},
				{ResourceFilteredIndices, StateShaderRead},
				{ResourcePositions, StateShaderRead},
				{ResourceViewUniform, StateShaderRead},
				{ResourceVisibility, StateRenderTarget},
				{ResourceDepth, StateDepthWrite},
			},
		},
		frameStep{
			pass: passShading,
			before: []Usage{
				{ResourceVisibility, StateShaderRead},
				{ResourceColor, StateRenderTarget},
			},
			uses: []Usage{
				{ResourceVisibility, StateShaderRead},
				{ResourceDrawCommands, StateShaderRead},
				{ResourceFilteredIndices, StateShaderRead},
				{ResourcePositions, StateShaderRead},
				{ResourceNormals, StateShaderRead},
				{ResourceUVs, StateShaderRead},
				{ResourceViewUniform, StateShaderRead},
				{ResourceColor, StateRenderTarget},
			},
		},
	)

	if bounds {
		steps = append(steps, frameStep{
			pass: passBounds,
			before: []Usage{
				{ResourceClusterBounds, StateCopyDest},
				{ResourceClusterBounds, StateShaderRead},
				{ResourceDepth, StateDepthRead},
			},
			uses: []Usage{
				{ResourceClusterBounds, StateShaderRead},
				{ResourceViewUniform, StateShaderRead},
				{ResourceDepth, StateDepthRead},
				{ResourceColor, StateRenderTarget},
			},
		})
	}

	return append(steps, frameStep{
		pass: passPresent,
		before: []Usage{
			{ResourceColor, StateShaderRead},
			{ResourceSwapchain, StateRenderTarget},
		},
		uses: []Usage{
			{ResourceColor, StateShaderRead},
			{ResourceSwapchain, StateRenderTarget},
		},
		after: []Usage{{ResourceSwapchain, StatePresent}},
	})
}

// runSchedule walks the steps, issuing each step's transitions and validating its accesses
// before calling exec. A nil exec only validates.
//
// Parameters:
//   - t: the tracker holding current states
//   - steps: the frame's steps
//   - exec: encodes or submits one step
//
// Returns:
//   - error: the first failed transition, missing barrier or exec error
func runSchedule(t *ResourceTracker, steps []frameStep, exec func(frameStep) error) error {
	for _, s := range steps {
		for _, b := range s.before {
			if err := t.Transition(b.Resource, b.State); err != nil {
				return err
			}
		}
		for _, u := range s.uses {
			if err := t.Require(u.Resource, u.State); err != nil {
				return fmt.Errorf("%s pass: %w", s.pass, err)
			}
		}
		if exec != nil {
			if err := exec(s); err != nil {
				return fmt.Errorf("%s pass: %w", s.pass, err)
			}
		}
		for _, a := range s.after {
			if err := t.Transition(a.Resource, a.State); err != nil {
				return err
			}
		}
	}
	return nil
}
