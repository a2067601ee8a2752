package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraController turns pointer input into camera motion: a drag rotates the camera and
// the scroll wheel moves it along its view direction.
type CameraController interface {
	// Camera returns the controlled camera.
	Camera() Camera

	// BeginDrag starts a rotation drag at the given cursor position.
	//
	// Parameters:
	//   - x, y: cursor position in window coordinates
	BeginDrag(x, y float64)

	// Drag rotates the camera by the cursor movement since the last call.
	// Does nothing unless a drag is active.
	//
	// Parameters:
	//   - x, y: cursor position in window coordinates
	Drag(x, y float64)

	// EndDrag stops the active drag.
	EndDrag()

	// Dragging reports whether a drag is active.
	Dragging() bool

	// Scroll moves the camera forward for positive offsets and backward for negative ones.
	//
	// Parameters:
	//   - offsetY: scroll wheel notches
	Scroll(offsetY float64)

	// TurnRate returns radians of rotation per pixel of drag.
	TurnRate() float32

	// MoveSpeed returns world units moved per scroll notch.
	MoveSpeed() float32
}

type cameraControllerImpl struct {
	mu *sync.Mutex

	camera   Camera
	dragging bool
	start    mgl32.Vec2

	turnRate  float32
	moveSpeed float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController attaches a controller to a camera.
//
// Parameters:
//   - cam: the camera to drive
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(cam Camera, options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:        &sync.Mutex{},
		camera:    cam,
		turnRate:  0.001,
		moveSpeed: 0.2,
	}
	for _, option := range options {
		option(cc)
	}
	return cc
}

func (cc *cameraControllerImpl) Camera() Camera {
	return cc.camera
}

func (cc *cameraControllerImpl) BeginDrag(x, y float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dragging = true
	cc.start = mgl32.Vec2{float32(x), float32(y)}
}

func (cc *cameraControllerImpl) Drag(x, y float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.dragging {
		return
	}
	pos := mgl32.Vec2{float32(x), float32(y)}
	offset := cc.start.Sub(pos)
	cc.start = pos

	euler := cc.camera.Euler()
	euler[0] += offset.Y() * cc.turnRate
	euler[1] += offset.X() * cc.turnRate
	cc.camera.SetEuler(euler)
}

func (cc *cameraControllerImpl) EndDrag() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dragging = false
}

func (cc *cameraControllerImpl) Dragging() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.dragging
}

func (cc *cameraControllerImpl) Scroll(offsetY float64) {
	forward := cc.camera.Forward()
	pos := cc.camera.Translation().Add(forward.Mul(float32(offsetY) * cc.moveSpeed))
	cc.camera.SetTranslation(pos)
}

func (cc *cameraControllerImpl) TurnRate() float32 {
	return cc.turnRate
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	return cc.moveSpeed
}
