// Package kalman defines the interface the tracker uses to talk to the
// external 6-DoF unscented Kalman filter. The filter itself
// — state propagation, IMU integration, delayed-measurement injection — is
// out of scope; only the operations the core calls are specified here.
package kalman

import (
	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// Sample is a single IMU reading at a device-clock timestamp.
type Sample struct {
	DeviceTimeNS int64
	AngularVel   r3.Vector
	Accel        r3.Vector
	Mag          r3.Vector
}

// Estimate is the filter's pose/velocity/uncertainty output at a point in
// time.
type Estimate struct {
	Pose         spatialmath.Pose
	Velocity     r3.Vector
	Acceleration r3.Vector
	PosErrorRad  r3.Vector // standard deviation, per axis
	RotErrorRad  r3.Vector
}

// Filter is the per-device 6-DoF fusion filter.
type Filter interface {
	Init(numDelaySlots int)
	Clear()

	IMUUpdate(sample Sample)

	// PrepareDelaySlot reserves slotID to receive a measurement timestamped
	// at deviceTimeNS, called when the exposure that will produce that
	// measurement is first seen.
	PrepareDelaySlot(deviceTimeNS int64, slotID int)

	// ReleaseDelaySlot gives slotID back to the filter once no frame holds
	// a claim on it any longer.
	ReleaseDelaySlot(slotID int)

	// PoseUpdate injects a full 6-DoF pose observation at the given slot.
	PoseUpdate(deviceTimeNS int64, pose spatialmath.Pose, slotID int)

	// PositionUpdate injects a position-only observation, used when the
	// tracker's fusion policy is device.PositionUpdateOnly.
	PositionUpdate(deviceTimeNS int64, pos r3.Vector, slotID int)

	GetPoseAt(deviceTimeNS int64) Estimate
}
