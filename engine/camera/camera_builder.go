package camera

import "github.com/go-gl/mathgl/mgl32"

type CameraBuilderOption func(*cameraImpl)

// WithTranslation sets the initial camera position.
//
// Parameters:
//   - t: world-space position
//
// Returns:
//   - CameraBuilderOption: a function that sets the translation
func WithTranslation(t mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.translation = t
	}
}

// WithEuler sets the initial rotation as (pitch, yaw, roll) in radians.
//
// Parameters:
//   - e: euler angles in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the rotation
func WithEuler(e mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.euler = e
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNearFar sets the clipping plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets both planes
func WithNearFar(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near, c.far = near, far
	}
}
