package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadowP12/visibility-buffer/common"
)

func TestNewEngineWindow_Defaults(t *testing.T) {
	w := newEngineWindow()
	assert.Equal(t, 1280, w.Width())
	assert.Equal(t, 720, w.Height())
	assert.Equal(t, "Visibility Buffer", w.title)
}

func TestNewEngineWindow_ClampsSize(t *testing.T) {
	w := newEngineWindow(WithSize(100, 5000), WithSizeLimits(640, 480, 1920, 1080))
	assert.Equal(t, 640, w.Width())
	assert.Equal(t, 1080, w.Height())

	w = newEngineWindow(WithSize(100, 5000), WithSizeLimits(0, 0, 0, 0))
	assert.Equal(t, 100, w.Width())
	assert.Equal(t, 5000, w.Height())
}

func TestEngineWindow_Dispatch(t *testing.T) {
	w := newEngineWindow(WithTitle("test"))

	var resized [][2]int
	w.SetResizeCallback(func(width, height int) { resized = append(resized, [2]int{width, height}) })
	w.dispatchResize(800, 600)
	w.dispatchResize(800, 600)
	assert.Equal(t, [][2]int{{800, 600}}, resized, "unchanged sizes are not reported")
	assert.Equal(t, 800, w.Width())

	var scrolls []float64
	w.SetScrollCallback(func(offsetY float64) { scrolls = append(scrolls, offsetY) })
	w.dispatchScroll(0)
	w.dispatchScroll(-2)
	assert.Equal(t, []float64{-2}, scrolls)

	var button int
	var pressed bool
	var at [2]float64
	w.SetMouseButtonCallback(func(b int, p bool, x, y float64) { button, pressed, at = b, p, [2]float64{x, y} })
	w.dispatchMouseButton(common.MouseButtonLeft, true, 10, 20)
	assert.Equal(t, common.MouseButtonLeft, button)
	assert.True(t, pressed)
	assert.Equal(t, [2]float64{10, 20}, at)

	var keys []int
	w.SetKeyCallback(func(key int, p bool) {
		if p {
			keys = append(keys, key)
		}
	})
	w.dispatchKey(common.KeyB, true)
	w.dispatchKey(common.KeyB, false)
	assert.Equal(t, []int{common.KeyB}, keys)

	w.SetCursorCallback(nil)
	assert.NotPanics(t, func() { w.dispatchCursor(1, 2) })
}

func TestEngineWindow_NotInitialized(t *testing.T) {
	w := newEngineWindow()
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)
	assert.NotPanics(t, func() { w.SetTitle("x") })
	assert.NotPanics(t, w.Run)
}
