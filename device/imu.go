package device

import (
	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/kalman"
)

// IMUUpdate extends deviceTS to the device's 64-bit nanosecond clock, feeds
// the sample to the filter, and appends it to the bounded pending buffer
// used for telemetry flush.
func (d *Record) IMUUpdate(deviceTS uint32, angVel, accel, mag r3.Vector) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts := d.extendClock(deviceTS)
	sample := kalman.Sample{DeviceTimeNS: ts, AngularVel: angVel, Accel: accel, Mag: mag}
	d.filter.IMUUpdate(sample)

	if len(d.pending) >= PendingIMUCapacity {
		d.pending = d.pending[1:]
	}
	d.pending = append(d.pending, sample)

	return ts
}

// DrainPending returns and clears the pending IMU buffer, for a telemetry
// collaborator to flush. Telemetry sinks themselves are out of scope here;
// this is just the bounded buffer feeding them.
func (d *Record) DrainPending() []kalman.Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pending
	d.pending = nil
	return out
}

// DeviceTimeNS returns the device's current extended clock value.
func (d *Record) DeviceTimeNS() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceClockNS
}
