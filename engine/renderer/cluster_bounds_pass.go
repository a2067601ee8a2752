package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/bind_group_provider"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/renderer/pipeline"
)

// clusterBoundsPass overlays the bounds of the frame's visible clusters as translucent boxes,
// depth tested against the visibility pass.
type clusterBoundsPass struct {
	pipeline pipeline.Pipeline
	group    bind_group_provider.BindGroupProvider

	bounds   *wgpu.Buffer
	capacity int
}

func newClusterBoundsPass(b RendererBackend) (*clusterBoundsPass, error) {
	p, err := newRenderPipeline(b, "cluster_bounds.wgsl",
		pipeline.WithColorFormat(ColorFormat),
		pipeline.WithDepth(DepthFormat, wgpu.CompareFunctionLessEqual, false),
		pipeline.WithAlphaBlending(),
	)
	if err != nil {
		return nil, err
	}
	return &clusterBoundsPass{
		pipeline: p,
		group:    bind_group_provider.NewBindGroupProvider("Cluster Bounds"),
	}, nil
}

// bind sizes the bounds buffer for every cluster of the scene.
func (c *clusterBoundsPass) bind(b RendererBackend, view *wgpu.Buffer, scene Scene) error {
	total := 0
	for _, m := range scene.Clusters() {
		total += len(m.Clusters)
	}
	total = max(total, 1)
	if c.bounds == nil || total > c.capacity {
		buf, err := b.CreateBuffer("Cluster Bounds", uint64(total)*cluster.GPUClusterBoundsSize,
			wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		c.group.SetBuffer(1, buf)
		c.bounds = buf
		c.capacity = total
	}
	c.group.InvalidateBindGroup()
	c.group.ShareBuffer(0, view)
	return b.InitBindGroup(c.group, c.pipeline, 0)
}

// visibleBounds collects the bounds of every cluster the plan submits, in plan order.
func visibleBounds(meshes []cluster.MeshClusters, plan *filtering.Plan) []cluster.GPUClusterBounds {
	out := make([]cluster.GPUClusterBounds, 0, plan.VisibleClusters)
	for _, batch := range plan.Batches {
		for _, e := range batch.Entries {
			if int(e.MeshIndex) >= len(meshes) {
				continue
			}
			mesh := &meshes[e.MeshIndex]
			ci := int(e.IndexOffset/3) / cluster.ClusterSize
			if ci < len(mesh.Clusters) {
				out = append(out, mesh.Clusters[ci].Bounds())
			}
		}
	}
	return out
}

// encode uploads the bounds and draws one cube instance per visible cluster over the color target.
func (c *clusterBoundsPass) encode(b RendererBackend, encoder *wgpu.CommandEncoder, targets *renderTargets, cube bind_group_provider.BindGroupProvider, bounds []cluster.GPUClusterBounds) error {
	if len(bounds) > c.capacity {
		bounds = bounds[:c.capacity]
	}
	b.WriteBuffer(c.bounds, 0, common.SliceToBytes(bounds))

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    targets.colorView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:         targets.depthView,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		},
	})
	defer pass.Release()

	if len(bounds) > 0 {
		pass.SetPipeline(c.pipeline.RenderPipeline())
		pass.SetBindGroup(0, c.group.BindGroup(), nil)
		drawGeometry(pass, cube, uint32(len(bounds)))
	}
	return pass.End()
}

func (c *clusterBoundsPass) Release() {
	c.group.Release()
	c.pipeline.Release()
}
