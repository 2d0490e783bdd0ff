package device

import (
	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// ExposureSnapshot is the per-device slice of exposure info the tracker
// broadcasts.
type ExposureSnapshot struct {
	DeviceTimeNS int64
	Pose         spatialmath.Pose
	PosErrorRad  r3.Vector
	RotErrorRad  r3.Vector
	FusionSlot   int
}

// UpdateExposure computes the per-device exposure snapshot: it predicts the device's model-frame pose at deviceTimeNS (for stage 1's
// prior), allocates a delay slot round-robin, and asks the filter to
// prepare it. FusionSlot is -1 if no slot was free.
func (d *Record) UpdateExposure(deviceTimeNS int64) ExposureSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	pose, posErr, rotErr := d.modelPoseLocked(deviceTimeNS)
	slot := d.allocateSlot(deviceTimeNS)
	return ExposureSnapshot{
		DeviceTimeNS: deviceTimeNS,
		Pose:         pose,
		PosErrorRad:  posErr,
		RotErrorRad:  rotErr,
		FusionSlot:   slot,
	}
}

// modelPoseLocked computes the device's model-frame pose estimate at
// deviceTimeNS. Caller must hold d.mu.
func (d *Record) modelPoseLocked(deviceTimeNS int64) (pose spatialmath.Pose, posErr, rotErr r3.Vector) {
	est := d.filter.GetPoseAt(deviceTimeNS)

	pos := est.Pose.Point()
	if d.stale(deviceTimeNS) && d.haveReported {
		pos = d.reportedPos
	}
	orient := est.Pose.Orientation()
	framePose := spatialmath.NewPose(pos, orient)

	if d.Kind == KindHMD {
		framePose = spatialmath.MirrorXZ(framePose)
	}
	modelPose := spatialmath.Compose(framePose, d.FusionToModel)

	posErr = spatialmath.Rotate(orient, est.PosErrorRad)
	rotErr = spatialmath.Rotate(orient, est.RotErrorRad)
	return modelPose, posErr, rotErr
}

// stale reports whether the device has had no fused observation within
// PoseLostThreshold of deviceTimeNS.
//
// Caller must hold d.mu.
func (d *Record) stale(deviceTimeNS int64) bool {
	if !d.haveObservedPose {
		return true
	}
	return deviceTimeNS-d.lastObservedPoseTS > PoseLostThreshold.Nanoseconds()
}

// ViewPose is the tracker's externally reported pose estimate.
type ViewPose struct {
	Pose         spatialmath.Pose
	Velocity     r3.Vector
	Acceleration r3.Vector
}

func lerp(a, b r3.Vector, alpha float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(alpha))
}

// GetViewPose returns the externally reported pose estimate: if the device
// clock has advanced since the last report, query the filter, freeze position and
// velocity when the last fused observation is stale, then smooth through an
// exponential filter.
func (d *Record) GetViewPose(deviceTimeNS int64) ViewPose {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.haveReported && deviceTimeNS <= d.lastViewPoseTS {
		return ViewPose{Pose: spatialmath.NewPose(d.reportedPos, d.reportedOrient), Velocity: d.reportedVel}
	}

	est := d.filter.GetPoseAt(deviceTimeNS)
	pos := est.Pose.Point()
	vel := est.Velocity

	if d.stale(deviceTimeNS) {
		if d.haveReported {
			pos = d.reportedPos
		}
		vel = r3.Vector{}
	}
	orient := est.Pose.Orientation()

	outPos, outVel := pos, vel
	if d.haveReported {
		outPos = lerp(d.reportedPos, pos, OutputSmoothingAlpha)
		outVel = lerp(d.reportedVel, vel, OutputSmoothingAlpha)
	}

	d.reportedPos, d.reportedVel, d.reportedOrient = outPos, outVel, orient
	d.haveReported = true
	d.lastViewPoseTS = deviceTimeNS

	return ViewPose{Pose: spatialmath.NewPose(outPos, orient), Velocity: outVel, Acceleration: est.Acceleration}
}

// ModelPoseUpdate undoes the IMU->model rigid offset (and, for the HMD,
// mirrors device axes into view-plane axes), finds the delay slot the
// exposure claimed, and injects the pose into the filter if that slot still
// matches. It returns whether the observation was actually fused; a false
// return is not an error — the slot may never have been allocated, or may
// have already been overwritten by a newer exposure.
func (d *Record) ModelPoseUpdate(exp ExposureSnapshot, pose spatialmath.Pose, source string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	fusionPose := spatialmath.Compose(pose, spatialmath.Invert(d.FusionToModel))
	if d.Kind == KindHMD {
		fusionPose = spatialmath.MirrorXZ(fusionPose)
	}

	if !d.slotMatches(exp.FusionSlot, exp.DeviceTimeNS) {
		d.logger.Warnw("dropping pose observation: delay slot no longer matches",
			"device", d.ID, "source", source, "slot", exp.FusionSlot)
		return false
	}

	switch d.Policy {
	case PositionUpdateOnly:
		d.filter.PositionUpdate(exp.DeviceTimeNS, fusionPose.Point(), exp.FusionSlot)
	default:
		d.filter.PoseUpdate(exp.DeviceTimeNS, fusionPose, exp.FusionSlot)
	}

	d.lastObservedPoseTS = exp.DeviceTimeNS
	d.lastObservedPose = fusionPose
	d.haveObservedPose = true

	// The observation is fused; this device's claim on the exposure's delay
	// slot can be released immediately rather than waiting for the frame
	// itself to be recycled.
	d.release(exp.FusionSlot)

	return true
}
