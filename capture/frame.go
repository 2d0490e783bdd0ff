// Package capture implements the capture frame type and the four-buffer
// pool it cycles through.
package capture

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// NumBuffers is NUM_CAPTURE_BUFFERS.
const NumBuffers = 4

// MaxDevices bounds per-frame per-device state; exceeding it is an
// invariant violation.
const MaxDevices = 8

// DeviceExposure is one device's slice of the broadcast exposure info.
type DeviceExposure struct {
	DeviceTimeNS int64
	CapturePose  spatialmath.Pose
	PosErrorRad  r3.Vector
	RotErrorRad  r3.Vector
	FusionSlot   int // -1 if none was free
}

// ExposureInfo is the tracker-wide broadcast snapshot a frame is stamped
// with at start-of-frame.
type ExposureInfo struct {
	LocalTS         time.Time
	HMDTS           int64
	Count           uint64
	LEDPatternPhase int
	NDevices        int
	Devices         [MaxDevices]DeviceExposure
}

// DeviceCaptureState is the per-device scratch state a frame accumulates
// across the fast/long analysis stages.
type DeviceCaptureState struct {
	CaptureWorldPose spatialmath.Pose
	GravityErrorRad  float64

	FinalCamPose    spatialmath.Pose
	FoundDevicePose bool

	Metrics blob.PoseMetrics
}

// Frame is one of the pool's NumBuffers capture buffers.
type Frame struct {
	ID int // 0..NumBuffers-1

	Pixels        []byte
	Width, Height int

	StartTS time.Time

	ExposureInfo      ExposureInfo
	ExposureInfoValid bool

	Observation *blob.Observation

	DeviceState [MaxDevices]DeviceCaptureState
	NDevices    int

	// Timestamps, for telemetry.
	DeliveredTS   time.Time
	FastStartTS   time.Time
	BlobDoneTS    time.Time
	FastFinishTS  time.Time
	LongStartTS   time.Time
	LongFinishTS  time.Time

	NeedLongAnalysis        bool
	LongAnalysisFoundBlobs  bool
}

// Reset clears a frame's per-capture state before it re-enters the pool, but
// keeps its pixel buffer allocation.
func (f *Frame) Reset() {
	f.ExposureInfo = ExposureInfo{}
	f.ExposureInfoValid = false
	f.Observation = nil
	f.DeviceState = [MaxDevices]DeviceCaptureState{}
	f.NDevices = 0
	f.StartTS = time.Time{}
	f.DeliveredTS = time.Time{}
	f.FastStartTS = time.Time{}
	f.BlobDoneTS = time.Time{}
	f.FastFinishTS = time.Time{}
	f.LongStartTS = time.Time{}
	f.LongFinishTS = time.Time{}
	f.NeedLongAnalysis = false
	f.LongAnalysisFoundBlobs = false
}
