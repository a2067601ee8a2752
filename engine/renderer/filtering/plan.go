package filtering

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
)

// View is the camera state a plan is built against.
type View struct {
	CameraPosition mgl32.Vec3

	// Frustum is consulted only when Config.FrustumCulling is set.
	Frustum *common.Frustum
}

// Batch is one filter dispatch: one workgroup per entry.
type Batch struct {
	Entries []SmallBatchData
}

// Plan is the host-side result of scanning every cluster for one frame.
type Plan struct {
	Batches []Batch

	// DrawCount is the number of draw slots the filter kernel will open; it equals the
	// draw count produced by compaction.
	DrawCount uint32

	// IndexCount is the number of filtered indices written this frame.
	IndexCount uint32

	VisibleClusters int
	CulledClusters  int
	DroppedClusters int
}

// Triangles returns the number of triangles submitted to the filter kernel.
func (p *Plan) Triangles() int {
	return int(p.IndexCount / 3)
}

// Overflowed reports whether any cluster was dropped for lack of draw slots.
func (p *Plan) Overflowed() bool {
	return p.DroppedClusters > 0
}

type planner struct {
	cfg  Config
	plan *Plan

	batch     []SmallBatchData
	drawOpen  bool
	dropping  bool
	drawStart uint32
	drawID    uint32
}

// BuildPlan scans the meshes' clusters in storage order, culls them against the view and packs the
// survivors into batches with precomputed, disjoint output regions.
//
// A draw is a run of consecutive entries in one batch. A draw closes when its batch flushes, and at
// every mesh boundary. Without PackMeshes a mesh boundary also flushes the batch.
//
// Parameters:
//   - meshes: clusters per mesh, index-aligned with the scene's MeshConstants
//   - view: camera state for this frame
//   - cfg: batching and capacity configuration
//
// Returns:
//   - *Plan: batches and statistics for the frame
//   - error: ErrDrawCapacityExceeded under OverflowFail, or a configuration error
func BuildPlan(meshes []cluster.MeshClusters, view View, cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &planner{
		cfg:   cfg,
		plan:  &Plan{},
		batch: make([]SmallBatchData, 0, cfg.BatchCount),
	}
	useFrustum := cfg.FrustumCulling && view.Frustum != nil

	for mi := range meshes {
		mesh := &meshes[mi]
		for ci := range mesh.Clusters {
			c := &mesh.Clusters[ci]
			if c.IsCulled(view.CameraPosition) || (useFrustum && !c.InFrustum(*view.Frustum)) {
				p.plan.CulledClusters++
				continue
			}
			compact := mesh.Compacts[ci]
			if err := p.add(SmallBatchData{
				MeshIndex:   uint32(mi),
				IndexOffset: compact.ClusterStart * 3,
				FaceCount:   compact.TriangleCount,
			}); err != nil {
				return nil, err
			}
		}
		p.closeDraw()
		if !cfg.PackMeshes {
			p.flush()
		}
	}
	p.closeDraw()
	p.flush()
	return p.plan, nil
}

func (p *planner) add(e SmallBatchData) error {
	if !p.drawOpen {
		if err := p.openDraw(); err != nil {
			return err
		}
	}
	if p.dropping {
		p.plan.DroppedClusters++
		return nil
	}

	e.OutputIndexOffset = p.plan.IndexCount
	e.DrawBatchStart = p.drawStart
	e.AccumDrawIndex = p.drawID
	p.plan.IndexCount += e.FaceCount * 3
	p.plan.VisibleClusters++
	p.batch = append(p.batch, e)

	if len(p.batch) >= p.cfg.BatchCount {
		p.flush()
		p.closeDraw()
	}
	return nil
}

func (p *planner) openDraw() error {
	p.drawOpen = true
	if p.plan.DrawCount >= uint32(p.cfg.MaxDrawCommands) {
		if p.cfg.Overflow == OverflowFail {
			return fmt.Errorf("%w: frame needs more than %d draws", ErrDrawCapacityExceeded, p.cfg.MaxDrawCommands)
		}
		p.dropping = true
		return nil
	}
	p.drawID = p.plan.DrawCount
	p.drawStart = uint32(len(p.batch))
	return nil
}

func (p *planner) closeDraw() {
	if !p.drawOpen {
		return
	}
	if !p.dropping {
		p.plan.DrawCount++
	}
	p.drawOpen = false
	p.dropping = false
}

func (p *planner) flush() {
	if len(p.batch) == 0 {
		return
	}
	entries := make([]SmallBatchData, len(p.batch))
	copy(entries, p.batch)
	p.plan.Batches = append(p.plan.Batches, Batch{Entries: entries})
	p.batch = p.batch[:0]
}
