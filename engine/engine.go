package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/profiler"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
	"github.com/shadowP12/visibility-buffer/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	mu *sync.RWMutex

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window     window.Window
	renderer   renderer.Renderer
	camera     camera.Camera
	controller camera.CameraController
	scene      renderer.Scene
	logger     common.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32, stats renderer.FrameStats)

	lastStats    renderer.FrameStats
	renderErr    error
	title        string
	pendingTitle string
	profileEvery time.Duration

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine drives the viewer: window events feed the camera controller and renderer toggles,
// a fixed-rate tick loop runs application logic, and a render loop draws the current scene.
type Engine interface {
	// Window returns the window the engine polls.
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	Renderer() renderer.Renderer

	// Camera returns the viewing camera.
	Camera() camera.Camera

	// Controller returns the drag and scroll controller attached to the camera.
	Controller() camera.CameraController

	// Scene returns the scene currently drawn, or nil.
	Scene() renderer.Scene

	// SetScene replaces the scene drawn from the next frame on. The caller keeps ownership of
	// the previous scene.
	//
	// Parameters:
	//   - s: the scene to draw, or nil to draw nothing
	SetScene(s renderer.Scene)

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables periodic profiling output.
	EnableProfiler()

	// DisableProfiler disables periodic profiling output.
	DisableProfiler()

	// SetTickRate sets the tick loop rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick with the elapsed seconds.
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: receives the elapsed seconds and the frame's statistics
	SetRenderCallback(callback func(deltaTime float32, stats renderer.FrameStats))

	// SetRenderFrameLimit caps the render loop in frames per second; 0 uncaps it.
	SetRenderFrameLimit(fps float64)

	// LastFrameStats returns the statistics of the most recent frame.
	LastFrameStats() renderer.FrameStats

	// Run starts the tick and render loops and polls the window until it closes, then stops
	// both loops.
	//
	// Returns:
	//   - error: the error that stopped the render loop, if any
	Run() error

	// Quit signals every loop to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates an Engine. WithWindow, WithRenderer and WithCamera are required.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: if a required component is missing
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.RWMutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
		logger:          common.NewDefaultLogger("engine", false),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.window == nil || e.renderer == nil || e.camera == nil {
		return nil, errors.New("engine: NewEngine requires a window, a renderer and a camera")
	}
	if e.controller == nil {
		e.controller = camera.NewCameraController(e.camera)
	}
	e.profiler = profiler.NewProfiler(
		profiler.WithLogger(e.logger),
		profiler.WithInterval(e.profileEvery),
		profiler.WithReportCallback(e.onProfile),
	)
	if w, h := e.window.Width(), e.window.Height(); w > 0 && h > 0 {
		e.camera.SetAspect(float32(w) / float32(h))
	}
	e.bindInput()
	return e, nil
}

// bindInput routes window events: left drag rotates, scroll moves, keys 1 to 4 select the
// shading mode and B toggles the cluster bounds overlay.
func (e *engine) bindInput() {
	boundsEnabled := false

	e.window.SetResizeCallback(func(width, height int) {
		if err := e.renderer.Resize(width, height); err != nil {
			e.logger.Errorf("resize to %dx%d failed: %v", width, height, err)
		}
		if width > 0 && height > 0 {
			e.camera.SetAspect(float32(width) / float32(height))
		}
	})
	e.window.SetMouseButtonCallback(func(button int, pressed bool, x, y float64) {
		if button != common.MouseButtonLeft {
			return
		}
		if pressed {
			e.controller.BeginDrag(x, y)
		} else {
			e.controller.EndDrag()
		}
	})
	e.window.SetCursorCallback(e.controller.Drag)
	e.window.SetScrollCallback(e.controller.Scroll)
	e.window.SetKeyCallback(func(key int, pressed bool) {
		if !pressed {
			return
		}
		switch key {
		case common.Key1:
			e.renderer.SetShadingMode(renderer.ShadingModeLit)
		case common.Key2:
			e.renderer.SetShadingMode(renderer.ShadingModeNormals)
		case common.Key3:
			e.renderer.SetShadingMode(renderer.ShadingModeDraw)
		case common.Key4:
			e.renderer.SetShadingMode(renderer.ShadingModeTriangle)
		case common.KeyB:
			boundsEnabled = !boundsEnabled
			e.renderer.SetClusterBounds(boundsEnabled)
		default:
			return
		}
		e.logger.Debugf("shading %s, cluster bounds %t", e.renderer.ShadingMode(), boundsEnabled)
	})
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Controller() camera.CameraController {
	return e.controller
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Scene() renderer.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scene
}

func (e *engine) SetScene(s renderer.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = s
}

func (e *engine) LastFrameStats() renderer.FrameStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStats
}

func (e *engine) Run() error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.window.SetUpdateCallback(e.update)
	e.handle()
	e.window.Run()
	e.signalQuit()
	e.wg.Wait()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renderErr
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleTick()
	go e.handleRender()
}

// handleTick runs the fixed-rate tick loop and listens for rate changes until quit.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender draws frames until quit. A frame error other than a draw capacity overflow
// stops the engine and is returned from Run; a panic does the same.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.stopWithError(fmt.Errorf("render loop panic: %v", r))
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		stats, err := e.renderer.Render(e.Scene(), e.camera)
		switch {
		case errors.Is(err, filtering.ErrDrawCapacityExceeded):
			e.logger.Warnf("frame dropped: %v", err)
		case err != nil:
			e.stopWithError(err)
			return
		}

		e.mu.Lock()
		e.lastStats = stats
		e.mu.Unlock()

		if e.renderCallback != nil {
			e.renderCallback(dt, stats)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Record(stats)
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// update runs on the window thread once per event loop iteration. GLFW only accepts window
// calls from that thread, so title changes and the close after a quit happen here.
func (e *engine) update() {
	if e.quitting() {
		_ = e.window.Close()
		return
	}
	e.mu.Lock()
	title := e.pendingTitle
	e.pendingTitle = ""
	e.mu.Unlock()
	if title != "" {
		e.window.SetTitle(title)
	}
}

// onProfile turns a profiler report into a window title for the next update.
func (e *engine) onProfile(s profiler.Snapshot) {
	if e.title == "" {
		return
	}
	e.mu.Lock()
	e.pendingTitle = fmt.Sprintf("%s | %.0f fps | %.0f clusters | %.0f draws", e.title, s.FPS, s.VisibleClusters, s.DrawCount)
	e.mu.Unlock()
}

// stopWithError records the first fatal error and quits.
func (e *engine) stopWithError(err error) {
	e.mu.Lock()
	if e.renderErr == nil {
		e.renderErr = err
	}
	e.mu.Unlock()
	e.logger.Errorf("render loop stopped: %v", err)
	e.signalQuit()
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the tick rate. If the engine is running, the change takes effect on the
// next tick.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		e.engineTickRate = newRate
		return
	}
	// replace a pending value rather than block
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32, stats renderer.FrameStats)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
