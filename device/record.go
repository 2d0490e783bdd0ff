// Package device implements the tracked-device record: per-device IMU
// timeline, delay-slot manager, and output pose filter. Every exported
// method takes the device's own lock; callers must never hold a sensor lock
// while calling in. The tracker may call in while holding its own lock
// (tracker before device).
package device

import (
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/kalman"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

// Kind tags a device's role. The HMD's special casing (XZ mirror,
// MatchAllBlobs, bootstrap source) is modelled as a capability flag set at
// construction, not a runtime id check.
type Kind int

const (
	KindController Kind = iota
	KindHMD
)

// FusionPolicy selects whether accepted observations are injected as full
// 6-DoF poses or position-only. Surfaced as runtime config rather than a
// compile-time switch.
type FusionPolicy int

const (
	PoseUpdate FusionPolicy = iota
	PositionUpdateOnly
)

// PendingIMUCapacity bounds the telemetry-flush IMU buffer.
const PendingIMUCapacity = 256

// PoseLostThreshold is how long a device may go without a fused
// observation before GetViewPose freezes its position.
const PoseLostThreshold = 500 * time.Millisecond

// OutputSmoothingAlpha is the exponential filter's smoothing factor applied
// in GetViewPose. Higher values track the filter's raw output more closely.
const OutputSmoothingAlpha = 0.35

// Record is a tracked device.
type Record struct {
	mu sync.Mutex

	ID            int
	Kind          Kind
	FusionToModel spatialmath.Pose // IMU-to-model rigid offset
	Policy        FusionPolicy

	filter kalman.Filter
	logger logging.Logger

	haveClock     bool
	lastDeviceTS  uint32
	deviceClockNS int64

	slots    [NumPoseDelaySlots]Slot
	nextSlot int

	pending []kalman.Sample

	haveObservedPose   bool
	lastObservedPoseTS int64
	lastObservedPose   spatialmath.Pose

	haveReported   bool
	reportedPos    r3.Vector
	reportedVel    r3.Vector
	reportedOrient quat.Number
	lastViewPoseTS int64
}

// New constructs a device record and initialises its filter with
// NumPoseDelaySlots delay slots.
func New(id int, kind Kind, fusionToModel spatialmath.Pose, filter kalman.Filter, logger logging.Logger) *Record {
	d := &Record{
		ID:             id,
		Kind:           kind,
		FusionToModel:  fusionToModel,
		filter:         filter,
		logger:         logger,
		reportedOrient: quat.Number{Real: 1},
	}
	filter.Init(NumPoseDelaySlots)
	return d
}

// Claim increments slotID's refcount; see claim in delayslot.go.
func (d *Record) Claim(slotID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claim(slotID)
}

// Release decrements slotID's refcount; see release in delayslot.go.
func (d *Record) Release(slotID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(slotID)
}

// ChangedExposure performs the paired release(old)+claim(new) when a
// buffer's exposure stamp changes out from under an in-flight claim.
func (d *Record) ChangedExposure(oldSlot, newSlot int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changedExposure(oldSlot, newSlot)
}
