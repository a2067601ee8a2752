package renderer

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/window"
)

// Scene is the GPU-resident geometry the renderer draws. Buffers are read-only for the renderer
// and stay owned by the scene.
type Scene interface {
	// ID identifies the scene; a new ID makes the renderer rebuild its scene bind groups.
	ID() string

	// Clusters returns the clusters of every mesh, index-aligned with the mesh constants.
	Clusters() []cluster.MeshClusters

	// IndexCount returns the total number of indices across all meshes.
	IndexCount() int

	// PositionBuffer, NormalBuffer and UVBuffer hold tightly packed f32 vertex attributes in
	// one global vertex space.
	PositionBuffer() *wgpu.Buffer
	NormalBuffer() *wgpu.Buffer
	UVBuffer() *wgpu.Buffer

	// IndexBuffer holds every mesh's u32 indices back to back.
	IndexBuffer() *wgpu.Buffer

	// MeshConstantsBuffer holds one filtering.MeshConstants per mesh.
	MeshConstantsBuffer() *wgpu.Buffer
}

// BufferUploader creates and releases the device buffers a Scene uploads its geometry into.
type BufferUploader interface {
	// CreateBufferInit creates a buffer holding data, padded to a multiple of four bytes.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: buffer usage flags
	//   - data: the initial contents
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: if creation fails
	CreateBufferInit(label string, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error)

	// ReleaseBuffer releases buf. A nil buffer is ignored.
	ReleaseBuffer(buf *wgpu.Buffer)
}

// FrameStats summarizes the culling and batching of one rendered frame.
type FrameStats struct {
	VisibleClusters int
	CulledClusters  int
	DroppedClusters int
	DrawCount       int
	Batches         int
	Triangles       int

	// Barriers is the number of resource state transitions issued for the frame.
	Barriers int
}

func newFrameStats(plan *filtering.Plan) FrameStats {
	return FrameStats{
		VisibleClusters: plan.VisibleClusters,
		CulledClusters:  plan.CulledClusters,
		DroppedClusters: plan.DroppedClusters,
		DrawCount:       int(plan.DrawCount),
		Batches:         len(plan.Batches),
		Triangles:       plan.Triangles(),
	}
}

type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	logger      common.Logger
	tracker     *ResourceTracker

	cfg             filtering.Config
	shadingMode     ShadingMode
	backfaceCulling bool
	showBounds      bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode

	context    *renderingContext
	targets    *renderTargets
	viewBuffer *wgpu.Buffer

	filtering  *triangleFilteringPass
	visibility *visibilityBufferPass
	shading    *shadingPass
	bounds     *clusterBoundsPass
	present    *presentPass

	scene       Scene
	sceneID     string
	boundsBound bool
	overflowing bool
}

// Renderer draws clustered scenes through GPU triangle filtering into a visibility buffer.
//
// A frame culls clusters on the host, filters their triangles on the GPU into a compact index
// stream with indirect draw commands, rasterizes triangle identifiers, then shades every pixel
// from those identifiers. Every pass runs on one queue in a fixed order and each resource
// transition between passes is recorded by the renderer's ResourceTracker.
type Renderer interface {
	// Render draws one frame of scene as seen from cam and presents it.
	// A nil scene, a nil camera or a zero-sized surface renders nothing.
	//
	// Parameters:
	//   - scene: the GPU-resident scene to draw
	//   - cam: the viewing camera
	//
	// Returns:
	//   - FrameStats: culling and batching statistics for the frame
	//   - error: filtering.ErrDrawCapacityExceeded under OverflowFail, or a GPU error
	Render(scene Scene, cam camera.Camera) (FrameStats, error)

	// Resize reconfigures the surface and recreates the render targets.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: if the surface or the targets cannot be recreated
	Resize(width, height int) error

	// SetPresentMode changes the present mode. It takes effect at the next Resize.
	SetPresentMode(mode PresentMode)

	ShadingMode() ShadingMode

	SetShadingMode(mode ShadingMode)

	// SetClusterBounds toggles the cluster bounds overlay.
	SetClusterBounds(enabled bool)

	// Config returns the filtering configuration in use.
	Config() filtering.Config

	// Tracker returns the resource state tracker validating every frame.
	Tracker() *ResourceTracker

	// Uploader returns the device buffer factory scenes upload their geometry through.
	Uploader() BufferUploader

	// Release frees every GPU resource owned by the renderer and the device.
	// Scenes must be released before the renderer.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the device for a window's surface and every pass of the frame.
//
// Parameters:
//   - backendType: the GPU backend to use
//   - window: the window providing the surface and its initial size
//   - options: functional options configuring the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: if the configuration is invalid or the device or a pass cannot be created
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(backendType, options...)
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend, err = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter)
	}
	if err != nil {
		return nil, err
	}
	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(max(window.Width(), 1), max(window.Height(), 1)); err != nil {
		r.backend.Release()
		return nil, err
	}

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.Resize(window.Width(), window.Height()); err != nil {
		r.Release()
		return nil, err
	}
	r.logger.Infof("renderer ready: %d draw slots, batches of %d, overflow %s", r.cfg.MaxDrawCommands, r.cfg.BatchCount, r.cfg.Overflow)
	return r, nil
}

func newRenderer(backendType RendererBackendType, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		logger:      common.NewNopLogger(),
		cfg:         filtering.DefaultConfig(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.tracker = NewResourceTracker(r.logger)
	registerFrameResources(r.tracker)
	return r
}

func (r *renderer) init() error {
	var err error
	if r.context, err = newRenderingContext(r.backend); err != nil {
		return err
	}
	if r.viewBuffer, err = r.backend.CreateBuffer("View Uniform", camera.GPUViewUniformSize,
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if r.filtering, err = newTriangleFilteringPass(r.backend, r.cfg); err != nil {
		return err
	}
	if r.visibility, err = newVisibilityBufferPass(r.backend); err != nil {
		return err
	}
	if r.shading, err = newShadingPass(r.backend); err != nil {
		return err
	}
	if r.bounds, err = newClusterBoundsPass(r.backend); err != nil {
		return err
	}
	r.present, err = newPresentPass(r.backend)
	return err
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.targets != nil {
		r.targets.Release()
		r.targets = nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	targets, err := newRenderTargets(r.backend, uint32(width), uint32(height))
	if err != nil {
		return err
	}
	r.targets = targets
	if err := r.present.bind(r.backend, targets); err != nil {
		return err
	}
	if r.scene != nil {
		return r.bindSceneTargets()
	}
	return nil
}

// bindScene rebuilds the scene-dependent bind groups when a different scene is rendered.
func (r *renderer) bindScene(scene Scene) error {
	if r.scene != nil && r.sceneID == scene.ID() {
		return nil
	}
	r.scene = nil
	r.boundsBound = false
	if err := r.filtering.bindScene(r.backend, scene, r.viewBuffer); err != nil {
		return err
	}
	r.scene = scene
	r.sceneID = scene.ID()
	r.logger.Debugf("bound scene %s: %d meshes, %d indices", r.sceneID, len(scene.Clusters()), scene.IndexCount())
	return r.bindSceneTargets()
}

func (r *renderer) bindSceneTargets() error {
	if err := r.visibility.bind(r.backend, r.viewBuffer, r.scene.PositionBuffer(), r.filtering.filtered); err != nil {
		return err
	}
	return r.shading.bind(r.backend, r.viewBuffer, r.targets, r.scene, r.filtering.filtered, r.filtering.drawCommands)
}

func (r *renderer) viewFlags() uint32 {
	var flags uint32
	if r.backfaceCulling {
		flags |= camera.ViewFlagTriangleBackfaceCulling
	}
	return flags
}

func (r *renderer) planView(cam camera.Camera) filtering.View {
	view := filtering.View{CameraPosition: cam.Translation()}
	if r.cfg.FrustumCulling {
		frustum := cam.Frustum()
		view.Frustum = &frustum
	}
	return view
}

// frameContext carries one frame's data between schedule steps.
type frameContext struct {
	plan    *filtering.Plan
	uniform camera.GPUViewUniform
	bounds  []cluster.GPUClusterBounds
	encoder *wgpu.CommandEncoder
}

func (r *renderer) Render(scene Scene, cam camera.Camera) (FrameStats, error) {
	if scene == nil || cam == nil {
		return FrameStats{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.targets == nil {
		return FrameStats{}, nil
	}
	if err := r.bindScene(scene); err != nil {
		return FrameStats{}, err
	}
	if r.showBounds && !r.boundsBound {
		if err := r.bounds.bind(r.backend, r.viewBuffer, scene); err != nil {
			return FrameStats{}, err
		}
		r.boundsBound = true
	}

	plan, err := filtering.BuildPlan(scene.Clusters(), r.planView(cam), r.cfg)
	if err != nil {
		return FrameStats{}, err
	}
	if plan.Overflowed() != r.overflowing {
		r.overflowing = plan.Overflowed()
		if r.overflowing {
			r.logger.Warnf("draw capacity %d reached, dropping %d clusters", r.cfg.MaxDrawCommands, plan.DroppedClusters)
		}
	}

	f := &frameContext{
		plan:    plan,
		uniform: cam.ViewUniform(r.targets.width, r.targets.height, uint32(r.shadingMode), r.viewFlags()),
	}
	if r.showBounds {
		f.bounds = visibleBounds(scene.Clusters(), plan)
	}

	r.tracker.ResetBarriers()
	err = runSchedule(r.tracker, frameSchedule(len(plan.Batches), r.showBounds), func(step frameStep) error {
		return r.execute(f, step)
	})
	if f.encoder != nil {
		f.encoder.Release()
	}
	if err != nil {
		return FrameStats{}, err
	}

	stats := newFrameStats(plan)
	stats.Barriers = len(r.tracker.Barriers())
	return stats, nil
}

// execute records or submits one step. The clear and every filter batch are separate
// submissions; compaction through present share the frame's final encoder.
func (r *renderer) execute(f *frameContext, step frameStep) error {
	switch step.pass {
	case passClear:
		r.backend.WriteBuffer(r.viewBuffer, 0, f.uniform.Marshal())
		return r.filtering.clear(r.backend)

	case passFilter:
		return r.filtering.filterBatch(r.backend, f.plan.Batches[step.batch])

	case passCompact:
		encoder, err := r.backend.CreateEncoder()
		if err != nil {
			return err
		}
		f.encoder = encoder
		r.filtering.compact(encoder)
		return nil

	case passVisibility:
		return r.visibility.encode(f.encoder, r.targets, r.filtering.drawCommands, f.plan.DrawCount)

	case passShading:
		return r.shading.encode(f.encoder, r.targets, r.context.quad)

	case passBounds:
		return r.bounds.encode(r.backend, f.encoder, r.targets, r.context.cube, f.bounds)

	case passPresent:
		swapchain, err := r.backend.AcquireFrame()
		if err != nil {
			return err
		}
		defer r.backend.Present()
		if err := r.present.encode(f.encoder, swapchain, r.context.quad); err != nil {
			return err
		}
		encoder := f.encoder
		f.encoder = nil
		return r.backend.Submit(encoder)
	}
	return nil
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) ShadingMode() ShadingMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadingMode
}

func (r *renderer) SetShadingMode(mode ShadingMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shadingMode = mode
}

func (r *renderer) SetClusterBounds(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showBounds = enabled
}

func (r *renderer) Config() filtering.Config {
	return r.cfg
}

func (r *renderer) Uploader() BufferUploader {
	return r.backend
}

func (r *renderer) Tracker() *ResourceTracker {
	return r.tracker
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.targets != nil {
		r.targets.Release()
		r.targets = nil
	}
	if r.present != nil {
		r.present.Release()
	}
	if r.bounds != nil {
		r.bounds.Release()
	}
	if r.shading != nil {
		r.shading.Release()
	}
	if r.visibility != nil {
		r.visibility.Release()
	}
	if r.filtering != nil {
		r.filtering.Release()
	}
	if r.viewBuffer != nil {
		r.viewBuffer.Release()
	}
	if r.context != nil {
		r.context.Release()
	}
	r.scene = nil
	if r.backend != nil {
		r.backend.Release()
		r.backend = nil
	}
}
