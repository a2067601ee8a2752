package script

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
)

type fakeView struct {
	modes  []renderer.ShadingMode
	bounds []bool
}

func (v *fakeView) SetShadingMode(mode renderer.ShadingMode) { v.modes = append(v.modes, mode) }
func (v *fakeView) SetClusterBounds(enabled bool)            { v.bounds = append(v.bounds, enabled) }

type fixedBounds struct{ lo, hi mgl32.Vec3 }

func (b fixedBounds) Bounds() (mgl32.Vec3, mgl32.Vec3) { return b.lo, b.hi }

func newHost(t *testing.T, options ...ScriptBuilderOption) (ScriptHost, camera.Camera) {
	t.Helper()
	cam := camera.NewCamera()
	h, err := NewScriptHost(cam, options...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, cam
}

func TestScriptHost_UpdateMovesCamera(t *testing.T) {
	h, cam := newHost(t)
	require.NoError(t, h.LoadString("slide", `
		calls = 0
		function init() calls = calls + 1 end
		function update(t, dt)
			camera.set_position(t, dt, calls)
		end
	`))

	require.NoError(t, h.Update(0.5))
	require.NoError(t, h.Update(0.25))
	assert.InDelta(t, 0.75, h.Elapsed(), 1e-9)
	assertVec3Near(t, mgl32.Vec3{0.75, 0.25, 1}, cam.Translation(), 1e-6, "init runs once")
}

func TestScriptHost_LookAt(t *testing.T) {
	h, cam := newHost(t)
	require.NoError(t, h.LoadString("look", `
		function update(t, dt)
			camera.set_position(4, 3, 5)
			camera.look_at(1, 1, 1)
		end
	`))
	require.NoError(t, h.Update(0.1))

	want := mgl32.Vec3{-3, -2, -4}.Normalize()
	assertVec3Near(t, want, cam.Forward(), 1e-5)
	assert.Zero(t, cam.Euler().Z())
}

func TestScriptHost_ViewAndBounds(t *testing.T) {
	view := &fakeView{}
	h, cam := newHost(t,
		WithViewControl(view),
		WithBounds(fixedBounds{lo: mgl32.Vec3{-1, -2, -3}, hi: mgl32.Vec3{1, 2, 3}}),
	)
	require.NoError(t, h.LoadString("view", `
		view.set_shading("triangle")
		view.set_bounds(true)
		local x0, y0, z0, x1, y1, z1 = scene.bounds()
		camera.set_position(x0 + x1, y1, z0)
		camera.set_fov(60)
	`))

	assert.Equal(t, []renderer.ShadingMode{renderer.ShadingModeTriangle}, view.modes)
	assert.Equal(t, []bool{true}, view.bounds)
	assert.Equal(t, mgl32.Vec3{0, 2, -3}, cam.Translation())
	assert.InDelta(t, mgl32.DegToRad(60), cam.Fov(), 1e-6)
}

func TestScriptHost_Errors(t *testing.T) {
	h, _ := newHost(t)

	err := h.LoadString("broken", "function update(")
	assert.ErrorContains(t, err, "script broken")

	assert.Error(t, h.LoadString("mode", `view.set_shading("wireframe")`))
	assert.Error(t, h.LoadString("fov", `camera.set_fov(200)`))
	assert.Error(t, h.LoadString("sandbox", `dofile("x.lua")`))
	assert.Error(t, h.LoadString("init", `function init() error("boom") end`))

	require.NoError(t, h.LoadString("runtime", `function update(t) error("bad frame") end`))
	err = h.Update(0.1)
	assert.ErrorContains(t, err, "script runtime: update")
	assert.ErrorContains(t, err, "bad frame")
}

func TestScriptHost_NoScript(t *testing.T) {
	h, _ := newHost(t)
	assert.NoError(t, h.Update(1))
	assert.Zero(t, h.Elapsed())

	require.NoError(t, h.LoadString("static", `x = 1`))
	assert.NoError(t, h.Update(1), "update is optional")
}

func TestScriptHost_PrintUsesLogger(t *testing.T) {
	var logs bytes.Buffer
	h, _ := newHost(t, WithLogger(common.NewWriterLogger("script", false, &logs, &logs)))
	require.NoError(t, h.LoadString("hello", `print("frame", 1, true)`))
	assert.Contains(t, logs.String(), "[hello] frame\t1\ttrue")
}

func TestScriptHost_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "path.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function update(t) camera.set_position(0, t, 0) end`), 0o644))

	h, cam := newHost(t)
	require.NoError(t, h.LoadFile(path))
	require.NoError(t, h.Update(2))
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, cam.Translation())

	assert.Error(t, h.LoadFile(filepath.Join(t.TempDir(), "missing.lua")))
}

func TestScriptHost_BuiltinOrbit(t *testing.T) {
	h, cam := newHost(t, WithBounds(fixedBounds{lo: mgl32.Vec3{-1, 0, -1}, hi: mgl32.Vec3{1, 2, 1}}))
	require.NoError(t, h.LoadBuiltin("orbit"))
	require.NoError(t, h.Update(0))

	center := mgl32.Vec3{0, 1, 0}
	toCenter := center.Sub(cam.Translation())
	assert.InDelta(t, 0.7, -toCenter.Y(), 1e-5)
	assertVec3Near(t, toCenter.Normalize(), cam.Forward(), 1e-5)

	assert.ErrorIs(t, h.LoadBuiltin("missing"), ErrUnknownBuiltin)
}

func TestNewScriptHost_RequiresCamera(t *testing.T) {
	_, err := NewScriptHost(nil)
	assert.Error(t, err)
}

func assertVec3Near(t *testing.T, want, got mgl32.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta, msgAndArgs...)
}
