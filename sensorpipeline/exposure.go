package sensorpipeline

import (
	"time"

	"github.com/viam-labs/constellation-tracker/capture"
)

// AdoptExposure is the tracker-driven broadcast path (sensor_update_exposure):
// it adopts newExp into the frame currently in capture if that frame has no
// exposure yet, or if newExp's count differs and localTS is still within
// exposureAdoptionWindow of the frame's USB start timestamp. A late update
// is silently dropped; the frame keeps whatever exposure it already has.
func (s *Sensor) AdoptExposure(newExp capture.ExposureInfo, localTS time.Time) {
	s.mu.Lock()
	frame := s.curCaptureFrame
	if frame == nil {
		s.mu.Unlock()
		return
	}

	hadOld := frame.ExposureInfoValid
	oldExp := frame.ExposureInfo
	adopt := !hadOld
	if hadOld && newExp.Count != oldExp.Count && localTS.Sub(frame.StartTS) <= exposureAdoptionWindow {
		adopt = true
	}
	if adopt {
		frame.ExposureInfo = newExp
		frame.ExposureInfoValid = true
		frame.NDevices = newExp.NDevices
	}
	s.mu.Unlock()

	if !adopt {
		return
	}
	if hadOld {
		s.claimDevices(newExp, &oldExp)
	} else {
		s.claimDevices(newExp, nil)
	}
}

// claimDevices runs the claim (or paired release+claim, when old is
// non-nil) delay-slot hooks for a newly adopted exposure. Must be called
// without the sensor lock held, since it takes each device's own lock.
func (s *Sensor) claimDevices(exp capture.ExposureInfo, old *capture.ExposureInfo) {
	for i := 0; i < exp.NDevices; i++ {
		dev := s.callbacks.DeviceAt(i)
		if dev == nil {
			continue
		}
		if old != nil && i < old.NDevices {
			dev.ChangedExposure(old.Devices[i].FusionSlot, exp.Devices[i].FusionSlot)
		} else {
			dev.Claim(exp.Devices[i].FusionSlot)
		}
	}
}

// releaseClaims runs the release hook for a frame's exposure that is being
// discarded without ever reaching frame-release (the stale-reuse and
// rescue-from-fast-queue paths of onStartOfFrame). Must be called without
// the sensor lock held.
func (s *Sensor) releaseClaims(valid bool, exp capture.ExposureInfo) {
	if !valid {
		return
	}
	for i := 0; i < exp.NDevices; i++ {
		dev := s.callbacks.DeviceAt(i)
		if dev == nil {
			continue
		}
		dev.Release(exp.Devices[i].FusionSlot)
	}
}

// releaseFrame is the single frame-release choke point: it releases every
// device's claim on this frame's exposure (skipping devices that already
// released their own claim inside device.ModelPoseUpdate on a successful
// fuse), returns the borrowed blob observation, and puts the frame back on
// the pool's free list.
func (s *Sensor) releaseFrame(frame *capture.Frame) {
	if frame.ExposureInfoValid {
		for i := 0; i < frame.NDevices; i++ {
			if frame.DeviceState[i].FoundDevicePose {
				continue
			}
			dev := s.callbacks.DeviceAt(i)
			if dev == nil {
				continue
			}
			dev.Release(frame.ExposureInfo.Devices[i].FusionSlot)
		}
	}
	if frame.Observation != nil {
		s.detector.ReleaseObservation(frame.Observation)
		frame.Observation = nil
	}

	s.mu.Lock()
	s.pool.Release(frame)
	s.mu.Unlock()
}
