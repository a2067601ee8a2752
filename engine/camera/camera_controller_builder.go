package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithTurnRate sets the rotation applied per pixel of drag.
//
// Parameters:
//   - rate: radians per pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the turn rate
func WithTurnRate(rate float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.turnRate = rate
	}
}

// WithMoveSpeed sets the distance moved per scroll notch.
//
// Parameters:
//   - speed: world units per notch
//
// Returns:
//   - CameraControllerOption: functional option to set the move speed
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.moveSpeed = speed
	}
}
