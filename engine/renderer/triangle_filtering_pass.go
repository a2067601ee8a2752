package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/renderer/pipeline"
	"github.com/shadowP12/visibility-buffer/engine/renderer/shader"
)

// Bindings of the filter kernel.
const (
	filterBindingPositions = iota
	filterBindingIndices
	filterBindingMeshConstants
	filterBindingSmallBatches
	filterBindingFilteredIndices
	filterBindingUncompacted
	filterBindingDrawCounter
	filterBindingView
)

// triangleFilteringPass turns a filtering.Plan into GPU work: it clears the draw slots, runs one
// filter dispatch per batch and compacts the populated slots into indirect draw commands.
//
// It owns the filtered index stream. The stream is sized to the bound scene's index count and
// reallocated only when a larger scene is bound.
type triangleFilteringPass struct {
	cfg filtering.Config

	clearPipeline   pipeline.Pipeline
	filterPipeline  pipeline.Pipeline
	compactPipeline pipeline.Pipeline

	clearGroup   bind_group_provider.BindGroupProvider
	filterGroup  bind_group_provider.BindGroupProvider
	compactGroup bind_group_provider.BindGroupProvider

	smallBatch   *wgpu.Buffer
	uncompacted  *wgpu.Buffer
	drawCounter  *wgpu.Buffer
	drawCommands *wgpu.Buffer

	filtered         *wgpu.Buffer
	filteredCapacity uint64
}

func newComputePipeline(b RendererBackend, asset string) (pipeline.Pipeline, error) {
	s, err := shader.Load(asset, shader.ShaderTypeCompute)
	if err != nil {
		return nil, err
	}
	p := pipeline.NewPipeline(asset, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
	if err := b.RegisterComputePipeline(p); err != nil {
		return nil, fmt.Errorf("%s: %w", asset, err)
	}
	return p, nil
}

func newTriangleFilteringPass(b RendererBackend, cfg filtering.Config) (*triangleFilteringPass, error) {
	f := &triangleFilteringPass{
		cfg:          cfg,
		clearGroup:   bind_group_provider.NewBindGroupProvider("Clear Draws"),
		filterGroup:  bind_group_provider.NewBindGroupProvider("Triangle Filtering"),
		compactGroup: bind_group_provider.NewBindGroupProvider("Batch Compaction"),
	}
	if err := f.init(b); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

func (f *triangleFilteringPass) init(b RendererBackend) error {
	var err error
	if f.clearPipeline, err = newComputePipeline(b, "clear_buffers.wgsl"); err != nil {
		return err
	}
	if f.filterPipeline, err = newComputePipeline(b, "triangle_filtering.wgsl"); err != nil {
		return err
	}
	if f.compactPipeline, err = newComputePipeline(b, "batch_compaction.wgsl"); err != nil {
		return err
	}

	slots := uint64(f.cfg.MaxDrawCommands)
	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	if f.smallBatch, err = b.CreateBuffer("Small Batch", uint64(f.cfg.BatchCount)*filtering.SmallBatchDataSize, storage); err != nil {
		return err
	}
	if f.uncompacted, err = b.CreateBuffer("Uncompacted Draws", slots*filtering.UncompactedDrawCommandSize, storage); err != nil {
		return err
	}
	if f.drawCounter, err = b.CreateBuffer("Draw Counter", filtering.DrawCounterSize, storage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	if f.drawCommands, err = b.CreateBuffer("Draw Commands", slots*filtering.IndexedIndirectDrawSize, storage|wgpu.BufferUsageIndirect); err != nil {
		return err
	}

	f.clearGroup.ShareBuffer(0, f.drawCounter)
	f.clearGroup.ShareBuffer(1, f.uncompacted)
	if err := b.InitBindGroup(f.clearGroup, f.clearPipeline, 0); err != nil {
		return err
	}

	f.compactGroup.ShareBuffer(0, f.drawCounter)
	f.compactGroup.ShareBuffer(1, f.uncompacted)
	f.compactGroup.ShareBuffer(2, f.drawCommands)
	return b.InitBindGroup(f.compactGroup, f.compactPipeline, 0)
}

// ensureFiltered grows the filtered index stream to hold indexCount indices.
//
// Returns:
//   - bool: whether the buffer was reallocated
//   - error: if allocation fails
func (f *triangleFilteringPass) ensureFiltered(b RendererBackend, indexCount int) (bool, error) {
	size := max(uint64(indexCount)*4, 4)
	if f.filtered != nil && size <= f.filteredCapacity {
		return false, nil
	}
	buf, err := b.CreateBuffer("Filtered Indices", size, wgpu.BufferUsageStorage|wgpu.BufferUsageIndex)
	if err != nil {
		return false, err
	}
	if f.filtered != nil {
		f.filtered.Release()
	}
	f.filtered = buf
	f.filteredCapacity = size
	return true, nil
}

// bindScene rebuilds the filter bind group for a scene's geometry.
func (f *triangleFilteringPass) bindScene(b RendererBackend, scene Scene, view *wgpu.Buffer) error {
	if _, err := f.ensureFiltered(b, scene.IndexCount()); err != nil {
		return err
	}
	f.filterGroup.InvalidateBindGroup()
	f.filterGroup.ShareBuffer(filterBindingPositions, scene.PositionBuffer())
	f.filterGroup.ShareBuffer(filterBindingIndices, scene.IndexBuffer())
	f.filterGroup.ShareBuffer(filterBindingMeshConstants, scene.MeshConstantsBuffer())
	f.filterGroup.ShareBuffer(filterBindingSmallBatches, f.smallBatch)
	f.filterGroup.ShareBuffer(filterBindingFilteredIndices, f.filtered)
	f.filterGroup.ShareBuffer(filterBindingUncompacted, f.uncompacted)
	f.filterGroup.ShareBuffer(filterBindingDrawCounter, f.drawCounter)
	f.filterGroup.ShareBuffer(filterBindingView, view)
	return b.InitBindGroup(f.filterGroup, f.filterPipeline, 0)
}

func dispatch(encoder *wgpu.CommandEncoder, p pipeline.Pipeline, group bind_group_provider.BindGroupProvider, workgroups uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.ComputePipeline())
	pass.SetBindGroup(0, group.BindGroup(), nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
	pass.Release()
}

// clear zeroes the draw counter and every draw slot.
func (f *triangleFilteringPass) clear(b RendererBackend) error {
	encoder, err := b.CreateEncoder()
	if err != nil {
		return err
	}
	dispatch(encoder, f.clearPipeline, f.clearGroup, common.CeilDiv(uint32(f.cfg.MaxDrawCommands), filtering.WorkgroupSize))
	return b.Submit(encoder)
}

// filterBatch uploads one batch and dispatches one workgroup per entry. Each batch is its own
// submission because every batch reuses the small batch buffer.
func (f *triangleFilteringPass) filterBatch(b RendererBackend, batch filtering.Batch) error {
	if len(batch.Entries) == 0 {
		return nil
	}
	if len(batch.Entries) > f.cfg.BatchCount {
		return fmt.Errorf("batch of %d entries exceeds batch capacity %d", len(batch.Entries), f.cfg.BatchCount)
	}
	b.WriteBuffer(f.smallBatch, 0, filtering.MarshalSmallBatch(batch.Entries))

	encoder, err := b.CreateEncoder()
	if err != nil {
		return err
	}
	dispatch(encoder, f.filterPipeline, f.filterGroup, uint32(len(batch.Entries)))
	return b.Submit(encoder)
}

// compact records the compaction kernel into the frame's final encoder.
func (f *triangleFilteringPass) compact(encoder *wgpu.CommandEncoder) {
	dispatch(encoder, f.compactPipeline, f.compactGroup, 1)
}

func (f *triangleFilteringPass) Release() {
	for _, g := range []bind_group_provider.BindGroupProvider{f.clearGroup, f.filterGroup, f.compactGroup} {
		g.Release()
	}
	for _, p := range []pipeline.Pipeline{f.clearPipeline, f.filterPipeline, f.compactPipeline} {
		if p != nil {
			p.Release()
		}
	}
	for _, buf := range []*wgpu.Buffer{f.smallBatch, f.uncompacted, f.drawCounter, f.drawCommands, f.filtered} {
		if buf != nil {
			buf.Release()
		}
	}
}
