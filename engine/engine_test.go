package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/window"
)

// fakeWindow records callbacks and runs its loop until closed.
type fakeWindow struct {
	mu     sync.Mutex
	closed bool
	titles []string

	onUpdate      func()
	onResize      func(width, height int)
	onScroll      func(offsetY float64)
	onKey         func(key int, pressed bool)
	onMouseButton func(button int, pressed bool, x, y float64)
	onCursor      func(x, y float64)
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(cb func())                   { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int))  { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(offsetY float64))    { w.onScroll = cb }
func (w *fakeWindow) SetKeyCallback(cb func(key int, pressed bool)) { w.onKey = cb }
func (w *fakeWindow) SetCursorCallback(cb func(x, y float64))       { w.onCursor = cb }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor    { return nil }
func (w *fakeWindow) Width() int                                    { return 800 }
func (w *fakeWindow) Height() int                                   { return 400 }
func (w *fakeWindow) SetTitle(title string)                         { w.titles = append(w.titles, title) }
func (w *fakeWindow) SetMouseButtonCallback(cb func(int, bool, float64, float64)) {
	w.onMouseButton = cb
}

func (w *fakeWindow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWindow) Run() {
	deadline := time.Now().Add(5 * time.Second)
	for w.IsRunning() && time.Now().Before(deadline) {
		if w.onUpdate != nil {
			w.onUpdate()
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeRenderer struct {
	mu      sync.Mutex
	frames  int
	resizes [][2]int
	mode    renderer.ShadingMode
	bounds  []bool
	scenes  []renderer.Scene
	errAt   int
	err     error
}

var _ renderer.Renderer = &fakeRenderer{}

func (r *fakeRenderer) Render(scene renderer.Scene, _ camera.Camera) (renderer.FrameStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.scenes = append(r.scenes, scene)
	if r.errAt > 0 && r.frames >= r.errAt {
		return renderer.FrameStats{}, r.err
	}
	return renderer.FrameStats{VisibleClusters: r.frames, DrawCount: 1}, nil
}

func (r *fakeRenderer) Resize(width, height int) error {
	r.resizes = append(r.resizes, [2]int{width, height})
	return nil
}

func (r *fakeRenderer) SetPresentMode(renderer.PresentMode)      {}
func (r *fakeRenderer) ShadingMode() renderer.ShadingMode        { return r.mode }
func (r *fakeRenderer) SetShadingMode(mode renderer.ShadingMode) { r.mode = mode }
func (r *fakeRenderer) SetClusterBounds(enabled bool)            { r.bounds = append(r.bounds, enabled) }
func (r *fakeRenderer) Config() filtering.Config                 { return filtering.DefaultConfig() }
func (r *fakeRenderer) Tracker() *renderer.ResourceTracker       { return nil }
func (r *fakeRenderer) Uploader() renderer.BufferUploader        { return nil }
func (r *fakeRenderer) Release()                                 {}

func (r *fakeRenderer) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func newTestEngine(t *testing.T, r *fakeRenderer, options ...EngineBuilderOption) (*engine, *fakeWindow, camera.Camera) {
	t.Helper()
	w := &fakeWindow{}
	cam := camera.NewCamera()
	options = append([]EngineBuilderOption{
		WithWindow(w), WithRenderer(r), WithCamera(cam), WithLogger(common.NewNopLogger()),
	}, options...)
	e, err := NewEngine(options...)
	require.NoError(t, err)
	return e.(*engine), w, cam
}

func TestNewEngine_RequiresComponents(t *testing.T) {
	_, err := NewEngine(WithWindow(&fakeWindow{}))
	assert.Error(t, err)
}

func TestEngine_InputBindings(t *testing.T) {
	r := &fakeRenderer{}
	e, w, cam := newTestEngine(t, r)
	assert.InDelta(t, 2.0, cam.Aspect(), 1e-6)

	startEuler := cam.Euler()
	w.onMouseButton(common.MouseButtonLeft, true, 100, 100)
	w.onCursor(90, 100)
	w.onMouseButton(common.MouseButtonLeft, false, 90, 100)
	w.onCursor(0, 0)
	assert.InDelta(t, startEuler.Y()+10*e.controller.TurnRate(), cam.Euler().Y(), 1e-6)

	w.onMouseButton(common.MouseButtonRight, true, 0, 0)
	assert.False(t, e.controller.Dragging())

	startPos := cam.Translation()
	w.onScroll(1)
	moved := cam.Translation().Sub(startPos)
	assert.InDelta(t, e.controller.MoveSpeed(), moved.Len(), 1e-5)

	w.onKey(common.Key2, true)
	assert.Equal(t, renderer.ShadingModeNormals, r.mode)
	w.onKey(common.Key4, false)
	assert.Equal(t, renderer.ShadingModeNormals, r.mode, "releases are ignored")
	w.onKey(common.Key3, true)
	assert.Equal(t, renderer.ShadingModeDraw, r.mode)
	w.onKey(common.KeyB, true)
	w.onKey(common.KeyB, true)
	assert.Equal(t, []bool{true, false}, r.bounds)

	w.onResize(300, 100)
	assert.Equal(t, [][2]int{{300, 100}}, r.resizes)
	assert.InDelta(t, 3.0, cam.Aspect(), 1e-6)
	w.onResize(0, 0)
	assert.InDelta(t, 3.0, cam.Aspect(), 1e-6, "minimized windows keep the aspect")
}

func TestEngine_RunUntilQuit(t *testing.T) {
	r := &fakeRenderer{}
	e, w, _ := newTestEngine(t, r, WithTitle("viewer"), WithProfiling(true, time.Millisecond))

	scene := &struct{ renderer.Scene }{}
	e.SetScene(scene)

	var frames int
	e.SetRenderCallback(func(dt float32, stats renderer.FrameStats) {
		frames++
		if frames == 20 {
			e.Quit()
		}
	})
	require.NoError(t, e.Run())

	assert.GreaterOrEqual(t, r.frameCount(), 20)
	assert.Equal(t, renderer.Scene(scene), r.scenes[0])
	assert.Positive(t, e.LastFrameStats().VisibleClusters)
	assert.True(t, w.closed)
	e.Quit()
}

func TestEngine_RenderErrorStopsRun(t *testing.T) {
	boom := errors.New("device lost")
	r := &fakeRenderer{errAt: 3, err: boom}
	e, w, _ := newTestEngine(t, r)

	err := e.Run()
	assert.ErrorIs(t, err, boom)
	assert.True(t, w.closed)
	assert.Equal(t, 3, r.frameCount())
}

func TestEngine_OverflowKeepsRendering(t *testing.T) {
	r := &fakeRenderer{errAt: 1, err: fmt.Errorf("frame: %w", filtering.ErrDrawCapacityExceeded)}
	e, _, _ := newTestEngine(t, r)
	e.SetRenderCallback(func(float32, renderer.FrameStats) {
		if r.frameCount() >= 5 {
			e.Quit()
		}
	})
	assert.NoError(t, e.Run())
	assert.GreaterOrEqual(t, r.frameCount(), 5)
}

func TestEngine_TickRate(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeRenderer{}, WithTickRate(120))
	assert.Equal(t, time.Second/120, e.engineTickRate)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
}

func TestEngine_ProfilerToggledFromTickLoop(t *testing.T) {
	r := &fakeRenderer{}
	e, w, _ := newTestEngine(t, r, WithTitle("viewer"), WithProfiling(false, time.Millisecond), WithTickRate(500))

	var ticks int
	e.SetTickCallback(func(float32) {
		ticks++
		if ticks%2 == 1 {
			e.EnableProfiler()
		} else {
			e.DisableProfiler()
		}
	})
	start := time.Now()
	e.SetRenderCallback(func(float32, renderer.FrameStats) {
		if time.Since(start) > 150*time.Millisecond {
			e.Quit()
		}
		time.Sleep(100 * time.Microsecond)
	})
	require.NoError(t, e.Run())

	reported := false
	for _, title := range w.titles {
		if strings.HasPrefix(title, "viewer | ") {
			reported = true
		}
	}
	assert.True(t, reported, "profiler enabled from the tick loop reports to the title, got %v", w.titles)
}
