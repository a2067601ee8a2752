package script

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
)

//go:embed assets/*.lua
var builtinFS embed.FS

// ErrUnknownBuiltin is returned by LoadBuiltin for names without an embedded script.
var ErrUnknownBuiltin = errors.New("unknown builtin script")

// ViewControl is the part of the renderer a script may drive.
type ViewControl interface {
	SetShadingMode(mode renderer.ShadingMode)
	SetClusterBounds(enabled bool)
}

// BoundsSource reports the world-space extent scripts frame the camera against.
type BoundsSource interface {
	Bounds() (mgl32.Vec3, mgl32.Vec3)
}

// ScriptHost runs a Lua script that animates the camera.
//
// A script may define init(), called once after loading, and update(t, dt), called on every
// Update with the seconds since load and since the previous update. The globals camera, view,
// scene and log expose the host API; print is routed to the logger. Safe for concurrent use.
type ScriptHost interface {
	// LoadFile loads and runs a script file, then calls its init function.
	//
	// Parameters:
	//   - path: path to a .lua file
	//
	// Returns:
	//   - error: on a syntax error or a runtime error in the chunk or init
	LoadFile(path string) error

	// LoadString loads a script from source. name identifies the script in errors.
	LoadString(name, source string) error

	// LoadBuiltin loads one of the embedded scripts by name, such as "orbit".
	LoadBuiltin(name string) error

	// Update advances the script clock by dt seconds and calls update(t, dt).
	//
	// Parameters:
	//   - dt: elapsed seconds since the previous update
	//
	// Returns:
	//   - error: a runtime error raised by the script
	Update(dt float32) error

	// Elapsed returns the script clock in seconds.
	Elapsed() float64

	// Close releases the Lua state.
	Close()
}

type scriptHost struct {
	mu *sync.Mutex

	state  *lua.LState
	name   string
	loaded bool
	t      float64

	camera camera.Camera
	view   ViewControl
	bounds BoundsSource
	logger common.Logger
}

var _ ScriptHost = &scriptHost{}

// NewScriptHost creates a Lua state bound to cam. Only the base, table, string and math
// libraries are opened, without file loading.
//
// Parameters:
//   - cam: the camera scripts move
//   - options: functional options to configure the host
//
// Returns:
//   - ScriptHost: the host, with no script loaded
//   - error: if the Lua libraries fail to open
func NewScriptHost(cam camera.Camera, options ...ScriptBuilderOption) (ScriptHost, error) {
	if cam == nil {
		return nil, errors.New("script: NewScriptHost requires a non-nil Camera")
	}
	h := &scriptHost{
		mu:     &sync.Mutex{},
		camera: cam,
		logger: common.NewNopLogger(),
	}
	for _, option := range options {
		option(h)
	}

	h.state = lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := h.state.CallByParam(lua.P{Fn: h.state.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			h.state.Close()
			return nil, fmt.Errorf("failed to open lua library %s: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		h.state.SetGlobal(name, lua.LNil)
	}
	h.register()
	return h, nil
}

func (h *scriptHost) register() {
	L := h.state
	L.SetGlobal("print", L.NewFunction(h.luaPrint))
	L.SetGlobal("log", L.NewFunction(h.luaPrint))
	L.SetGlobal("camera", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"position":     h.luaPosition,
		"set_position": h.luaSetPosition,
		"rotation":     h.luaRotation,
		"set_rotation": h.luaSetRotation,
		"look_at":      h.luaLookAt,
		"forward":      h.luaForward,
		"set_fov":      h.luaSetFov,
	}))
	L.SetGlobal("view", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"set_shading": h.luaSetShading,
		"set_bounds":  h.luaSetBounds,
	}))
	L.SetGlobal("scene", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"bounds": h.luaBounds,
	}))
}

func (h *scriptHost) LoadFile(path string) error {
	return h.load(path, func(L *lua.LState) error { return L.DoFile(path) })
}

func (h *scriptHost) LoadString(name, source string) error {
	return h.load(name, func(L *lua.LState) error { return L.DoString(source) })
}

func (h *scriptHost) LoadBuiltin(name string) error {
	src, err := builtinFS.ReadFile("assets/" + name + ".lua")
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}
	return h.LoadString(name, string(src))
}

// load replaces the update and init globals, runs the chunk and then init.
func (h *scriptHost) load(name string, run func(L *lua.LState) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.SetGlobal("init", lua.LNil)
	h.state.SetGlobal("update", lua.LNil)
	h.name, h.loaded, h.t = name, false, 0

	if err := run(h.state); err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	if fn, ok := h.state.GetGlobal("init").(*lua.LFunction); ok {
		if err := h.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			return fmt.Errorf("script %s: init: %w", name, err)
		}
	}
	h.loaded = true
	h.logger.Infof("loaded camera script %s", name)
	return nil
}

func (h *scriptHost) Update(dt float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	h.t += float64(dt)
	fn, ok := h.state.GetGlobal("update").(*lua.LFunction)
	if !ok {
		return nil
	}
	if err := h.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(h.t), lua.LNumber(dt)); err != nil {
		return fmt.Errorf("script %s: update: %w", h.name, err)
	}
	return nil
}

func (h *scriptHost) Elapsed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.t
}

func (h *scriptHost) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != nil {
		h.state.Close()
		h.state = nil
		h.loaded = false
	}
}

func pushVec3(L *lua.LState, v mgl32.Vec3) int {
	L.Push(lua.LNumber(v.X()))
	L.Push(lua.LNumber(v.Y()))
	L.Push(lua.LNumber(v.Z()))
	return 3
}

func checkVec3(L *lua.LState, first int) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(L.CheckNumber(first)),
		float32(L.CheckNumber(first + 1)),
		float32(L.CheckNumber(first + 2)),
	}
}

func (h *scriptHost) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	h.logger.Infof("[%s] %s", h.name, strings.Join(parts, "\t"))
	return 0
}

func (h *scriptHost) luaPosition(L *lua.LState) int {
	return pushVec3(L, h.camera.Translation())
}

func (h *scriptHost) luaSetPosition(L *lua.LState) int {
	h.camera.SetTranslation(checkVec3(L, 1))
	return 0
}

func (h *scriptHost) luaRotation(L *lua.LState) int {
	return pushVec3(L, h.camera.Euler())
}

func (h *scriptHost) luaSetRotation(L *lua.LState) int {
	h.camera.SetEuler(checkVec3(L, 1))
	return 0
}

func (h *scriptHost) luaForward(L *lua.LState) int {
	return pushVec3(L, h.camera.Forward())
}

// luaLookAt turns the camera toward a point. Roll is cleared; looking straight up or down
// keeps the current yaw.
func (h *scriptHost) luaLookAt(L *lua.LState) int {
	dir := checkVec3(L, 1).Sub(h.camera.Translation())
	if dir.Len() < 1e-6 {
		return 0
	}
	dir = dir.Normalize()
	euler := h.camera.Euler()
	euler[0] = float32(math.Asin(float64(mgl32.Clamp(dir.Y(), -1, 1))))
	if math.Abs(float64(dir.X()))+math.Abs(float64(dir.Z())) > 1e-6 {
		euler[1] = float32(math.Atan2(float64(-dir.X()), float64(-dir.Z())))
	}
	euler[2] = 0
	h.camera.SetEuler(euler)
	return 0
}

func (h *scriptHost) luaSetFov(L *lua.LState) int {
	deg := float32(L.CheckNumber(1))
	if deg <= 0 || deg >= 180 {
		L.ArgError(1, "fov must be in (0, 180) degrees")
		return 0
	}
	h.camera.SetFov(mgl32.DegToRad(deg))
	return 0
}

func (h *scriptHost) luaSetShading(L *lua.LState) int {
	mode, err := renderer.ParseShadingMode(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	if h.view != nil {
		h.view.SetShadingMode(mode)
	}
	return 0
}

func (h *scriptHost) luaSetBounds(L *lua.LState) int {
	enabled := L.CheckBool(1)
	if h.view != nil {
		h.view.SetClusterBounds(enabled)
	}
	return 0
}

// luaBounds returns min x, y, z then max x, y, z; all zero without a bounds source.
func (h *scriptHost) luaBounds(L *lua.LState) int {
	var lo, hi mgl32.Vec3
	if h.bounds != nil {
		lo, hi = h.bounds.Bounds()
	}
	pushVec3(L, lo)
	pushVec3(L, hi)
	return 6
}
