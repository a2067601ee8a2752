package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/shadowP12/visibility-buffer/common"
)

// Default camera placement.
var (
	DefaultTranslation = mgl32.Vec3{-0.0805, 1.6797, 2.2851}
	DefaultEuler       = mgl32.Vec3{-0.184, 0.093, 0}
)

type cameraImpl struct {
	mu *sync.Mutex

	translation mgl32.Vec3
	euler       mgl32.Vec3
	scale       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	transformDirty bool
	projDirty      bool

	transform  mgl32.Mat4
	view       mgl32.Mat4
	projection mgl32.Mat4
}

// Camera is a perspective camera placed by a translation, euler rotation and scale.
// The view matrix is the inverse of the composed T*R*S transform. Matrices are recomputed
// lazily after any setter.
type Camera interface {
	// Translation returns the camera position in world space.
	Translation() mgl32.Vec3

	// Euler returns the rotation as (pitch, yaw, roll) in radians.
	Euler() mgl32.Vec3

	// Scale returns the transform scale.
	Scale() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Transform returns the camera-to-world matrix.
	Transform() mgl32.Mat4

	// Forward returns the unit view direction in world space.
	Forward() mgl32.Vec3

	// ViewMatrix returns the world-to-view matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the view-to-clip matrix with depth mapped to [0, 1].
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns ProjectionMatrix * ViewMatrix.
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the world-space clip planes of the current view.
	Frustum() common.Frustum

	// ViewUniform packs the camera state for GPU upload.
	//
	// Parameters:
	//   - width, height: render target size in pixels
	//   - shadingMode: value forwarded to the shading pass
	//   - flags: ViewFlag bits
	//
	// Returns:
	//   - GPUViewUniform: the packed uniform
	ViewUniform(width, height uint32, shadingMode, flags uint32) GPUViewUniform

	// SetTranslation moves the camera.
	SetTranslation(t mgl32.Vec3)

	// SetEuler sets the rotation as (pitch, yaw, roll) in radians.
	SetEuler(e mgl32.Vec3)

	// SetScale sets the transform scale.
	SetScale(s mgl32.Vec3)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height).
	SetAspect(aspect float32)

	// SetNearFar sets both clipping plane distances.
	SetNearFar(near, far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at the default placement with a 45 degree field of view and
// clip planes at 0.1 and 100.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:             &sync.Mutex{},
		translation:    DefaultTranslation,
		euler:          DefaultEuler,
		scale:          mgl32.Vec3{1, 1, 1},
		fov:            45.0 * (math.Pi / 180.0),
		aspect:         1.0,
		near:           0.1,
		far:            100.0,
		transformDirty: true,
		projDirty:      true,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Translation() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.translation
}

func (c *cameraImpl) Euler() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.euler
}

func (c *cameraImpl) Scale() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Transform() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateTransform()
	return c.transform
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateTransform()
	return common.SafeNormalize(c.transform.Col(2).Vec3().Mul(-1))
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateTransform()
	return c.view
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateProjection()
	return c.projection
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection()
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ExtractFrustum(c.viewProjection())
}

func (c *cameraImpl) ViewUniform(width, height uint32, shadingMode, flags uint32) GPUViewUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	vp := c.viewProjection()
	return GPUViewUniform{
		View:           [16]float32(c.view),
		Proj:           [16]float32(c.projection),
		InvViewProj:    [16]float32(vp.Inv()),
		CameraPosition: [3]float32(c.translation),
		Flags:          flags,
		Viewport:       [2]float32{float32(width), float32(height)},
		ShadingMode:    shadingMode,
	}
}

func (c *cameraImpl) SetTranslation(t mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.translation = t
	c.transformDirty = true
}

func (c *cameraImpl) SetEuler(e mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.euler = e
	c.transformDirty = true
}

func (c *cameraImpl) SetScale(s mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scale = s
	c.transformDirty = true
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.projDirty = true
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.projDirty = true
}

func (c *cameraImpl) SetNearFar(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near, c.far = near, far
	c.projDirty = true
}

// viewProjection refreshes both matrices and returns their product. Caller must hold the mutex.
func (c *cameraImpl) viewProjection() mgl32.Mat4 {
	c.updateTransform()
	c.updateProjection()
	return c.projection.Mul4(c.view)
}

// updateTransform recomposes T*R*S and its inverse when dirty. Caller must hold the mutex.
func (c *cameraImpl) updateTransform() {
	if !c.transformDirty {
		return
	}
	c.transform = common.ComposeTRS(c.translation, eulerToQuat(c.euler), c.scale)
	c.view = c.transform.Inv()
	c.transformDirty = false
}

// updateProjection rebuilds the perspective matrix when dirty. Caller must hold the mutex.
func (c *cameraImpl) updateProjection() {
	if !c.projDirty {
		return
	}
	c.projection = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.projDirty = false
}

// eulerToQuat builds Rz(roll) * Ry(yaw) * Rx(pitch).
func eulerToQuat(e mgl32.Vec3) mgl32.Quat {
	return mgl32.AnglesToQuat(e.Z(), e.Y(), e.X(), mgl32.ZYX)
}
