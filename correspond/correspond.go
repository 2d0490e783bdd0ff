// Package correspond orchestrates per-frame blob-to-device correspondence:
// a fast re-acquisition pass keyed off the previous frame's labels, and a
// two-pass deep search that lets devices compete over shared blobs. It also
// derives a sensor's camera-to-world transform from the first confident HMD
// observation (the bootstrap step).
package correspond

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// SensorView is the slice of sensor state the driver needs, kept narrow so
// this package never has to import sensorpipeline.
type SensorView interface {
	Intrinsics() *blob.Intrinsics
	Detector() blob.Detector
	PnP() blob.PnPSolver
	Evaluator() blob.Evaluator
	Search() blob.CorrespondenceSearch
	ModelFor(deviceID int) *blob.LEDModel

	CameraPose() (spatialmath.Pose, bool)
	Bootstrap(camPose spatialmath.Pose)

	// PublishLabels republishes obs's labels for deviceID into the
	// detector's persistent cross-frame state, under the sensor's own lock.
	PublishLabels(obs *blob.Observation, deviceID int)
}

// gravityWorld is the up axis in the tracking model frame.
var gravityWorld = r3.Vector{X: 0, Y: 1, Z: 0}

func gravityErrorOf(dev capture.DeviceExposure) float64 {
	return math.Hypot(dev.RotErrorRad.X, dev.RotErrorRad.Z)
}

// goodPoseMatch and strongPoseMatch read a little better as named
// predicates than inline field checks at every call site below.
func goodPoseMatch(m blob.PoseMetrics) bool   { return m.GoodMatch }
func strongPoseMatch(m blob.PoseMetrics) bool { return m.StrongMatch }

// resolvedIn reports whether device index i already has a pose for frame f.
func resolvedIn(f *capture.Frame, i int) bool { return f.DeviceState[i].FoundDevicePose }
