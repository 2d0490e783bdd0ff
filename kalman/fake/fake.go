// Package fake provides a minimal but behaviorally real kalman.Filter for
// tests: it integrates angular velocity from IMU samples into an
// orientation estimate and holds position at the last fused observation,
// which is enough to exercise the device package's pose-lost freeze rule
// without pulling in a real UKF.
package fake

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/kalman"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

type slot struct {
	valid        bool
	deviceTimeNS int64
}

// Filter is the fake kalman.Filter implementation.
type Filter struct {
	mu sync.Mutex

	slots []slot

	haveIMU     bool
	lastIMUTime int64
	orientation quat.Number

	havePose bool
	pos      r3.Vector
	vel      r3.Vector

	// Calls records every PoseUpdate/PositionUpdate/PrepareDelaySlot/
	// ReleaseDelaySlot invocation for assertions.
	Calls []string
}

// New returns a fake filter with no delay slots; call Init to size it.
func New() *Filter {
	return &Filter{orientation: quat.Number{Real: 1}}
}

func (f *Filter) Init(numDelaySlots int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots = make([]slot, numDelaySlots)
}

func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.slots {
		f.slots[i] = slot{}
	}
	f.haveIMU = false
	f.havePose = false
	f.orientation = quat.Number{Real: 1}
	f.pos = r3.Vector{}
	f.vel = r3.Vector{}
}

func (f *Filter) IMUUpdate(s kalman.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.haveIMU {
		dt := float64(s.DeviceTimeNS-f.lastIMUTime) / 1e9
		if dt > 0 {
			angle := s.AngularVel.Norm() * dt
			if angle > 0 {
				q := spatialmath.QuaternionFromAxisAngle(s.AngularVel, angle)
				f.orientation = quat.Mul(q, f.orientation)
			}
		}
	}
	f.haveIMU = true
	f.lastIMUTime = s.DeviceTimeNS
}

func (f *Filter) PrepareDelaySlot(deviceTimeNS int64, slotID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slotID] = slot{valid: true, deviceTimeNS: deviceTimeNS}
	f.Calls = append(f.Calls, "prepare")
}

func (f *Filter) ReleaseDelaySlot(slotID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slotID] = slot{}
	f.Calls = append(f.Calls, "release")
}

func (f *Filter) PoseUpdate(deviceTimeNS int64, pose spatialmath.Pose, slotID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pose.Point()
	f.orientation = pose.Orientation()
	f.havePose = true
	f.Calls = append(f.Calls, "pose_update")
}

func (f *Filter) PositionUpdate(deviceTimeNS int64, pos r3.Vector, slotID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
	f.havePose = true
	f.Calls = append(f.Calls, "position_update")
}

func (f *Filter) GetPoseAt(deviceTimeNS int64) kalman.Estimate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return kalman.Estimate{
		Pose:     spatialmath.NewPose(f.pos, f.orientation),
		Velocity: f.vel,
	}
}
