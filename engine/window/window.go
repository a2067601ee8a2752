package window

import (
	"errors"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotInitialized is returned when an operation needs the platform window before it exists.
var ErrNotInitialized = errors.New("window is not initialized")

// Window provides platform windowing and input event handling for the viewer.
// Callbacks run on the thread that calls Run.
type Window interface {
	// SetUpdateCallback sets the function called once per event loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for vertical scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving the scroll offset in notches (positive = away from the user)
	SetScrollCallback(callback func(offsetY float64))

	// SetKeyCallback sets the callback for key presses and releases. Key codes are the values
	// in common's Key constants. Repeats are reported as presses.
	SetKeyCallback(callback func(key int, pressed bool))

	// SetMouseButtonCallback sets the callback for mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the button (common.MouseButton*), the new state and the
	//     cursor position in window coordinates
	SetMouseButtonCallback(callback func(button int, pressed bool, x, y float64))

	// SetCursorCallback sets the callback for cursor movement.
	SetCursorCallback(callback func(x, y float64))

	// SetTitle replaces the title bar text.
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true until the window is closed.
	IsRunning() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: ErrNotInitialized if the window was never created
	Close() error

	// Run polls events and calls the update callback until the window is closed.
	Run()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow holds window configuration, platform state and event callbacks.
type engineWindow struct {
	title string

	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	// width and height track the framebuffer, which differs from the window size on high-DPI displays.
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onUpdate      func()
	onResize      func(width, height int)
	onScroll      func(offsetY float64)
	onKey         func(key int, pressed bool)
	onMouseButton func(button int, pressed bool, x, y float64)
	onCursor      func(x, y float64)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "Visibility Buffer",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 240,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = clampDim(w.width, w.minWidth, w.maxWidth)
	w.height = clampDim(w.height, w.minHeight, w.maxHeight)
	return w
}

// clampDim limits v to [lo, hi]; a non-positive bound is ignored.
func clampDim(v, lo, hi int) int {
	if lo > 0 && v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(offsetY float64)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key int, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button int, pressed bool, x, y float64)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetCursorCallback(callback func(x, y float64)) {
	w.onCursor = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Run() {
	for w.IsRunning() {
		if ok := platformProcessMessages(w); !ok {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// Event dispatch shared by the platform layer. Kept free of platform types.

func (w *engineWindow) dispatchResize(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) dispatchScroll(offsetY float64) {
	if offsetY != 0 && w.onScroll != nil {
		w.onScroll(offsetY)
	}
}

func (w *engineWindow) dispatchKey(key int, pressed bool) {
	if w.onKey != nil {
		w.onKey(key, pressed)
	}
}

func (w *engineWindow) dispatchMouseButton(button int, pressed bool, x, y float64) {
	if w.onMouseButton != nil {
		w.onMouseButton(button, pressed, x, y)
	}
}

func (w *engineWindow) dispatchCursor(x, y float64) {
	if w.onCursor != nil {
		w.onCursor(x, y)
	}
}
