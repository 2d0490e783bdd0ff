package correspond

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

const (
	alignedGravityTolerance  = 45 * math.Pi / 180
	minAlignedSwingTolerance = 10 * math.Pi / 180
)

// RunDeep runs the two-pass full correspondence search over every device
// fast re-acquisition left unresolved. Pass 0 only accepts strong matches,
// so a device that needs the expensive full search never blocks a
// strongly-confident sibling from claiming contested blobs; pass 1 relaxes
// to a plain good match and re-checks anything pass 0 accepted in case a
// later strong match stole its blobs.
func RunDeep(sv SensorView, frame *capture.Frame, devices []*device.Record) {
	ev := sv.Evaluator()
	search := sv.Search()
	intr := sv.Intrinsics()

	camPose, haveCam := sv.CameraPose()
	var cameraGravity r3.Vector
	if haveCam {
		cameraGravity = spatialmath.Rotate(spatialmath.Invert(camPose).Orientation(), gravityWorld)
	}

	for pass := 0; pass < 2; pass++ {
		for i := 0; i < frame.NDevices && i < len(devices); i++ {
			dev := devices[i]
			if dev == nil || resolvedIn(frame, i) {
				continue
			}
			exp := frame.ExposureInfo.Devices[i]
			if exp.FusionSlot == -1 {
				continue
			}
			model := sv.ModelFor(dev.ID)
			if model == nil {
				continue
			}

			gravErr := gravityErrorOf(exp)
			aligned := haveCam && gravErr < alignedGravityTolerance
			tolerance := math.Max(2*gravErr, minAlignedSwingTolerance)

			flags := blob.StopForStrongMatch
			if dev.Kind == device.KindHMD {
				flags |= blob.MatchAllBlobs
			}
			if pass == 0 {
				flags |= blob.ShallowSearch
			} else {
				flags |= blob.DeepSearch
			}

			if pass == 1 && frame.DeviceState[i].Metrics.GoodMatch {
				var recheck blob.PoseMetrics
				if aligned {
					recheck = ev.EvaluatePoseWithPrior(frame.DeviceState[i].FinalCamPose, exp.CapturePose, exp.PosErrorRad, exp.RotErrorRad, frame.Observation.Blobs, model, intr)
				} else {
					recheck = ev.EvaluatePose(frame.DeviceState[i].FinalCamPose, frame.Observation.Blobs, model, intr)
				}
				if goodPoseMatch(recheck) {
					continue
				}
				flags |= blob.ShallowSearch
				frame.DeviceState[i].Metrics = blob.PoseMetrics{}
			}

			search.SetBlobs(frame.Observation.Blobs)

			var pose spatialmath.Pose
			var metrics blob.PoseMetrics
			var found bool
			if aligned {
				pose, metrics, found = search.FindOnePoseAligned(dev.ID, flags, cameraGravity, tolerance)
			} else {
				pose, metrics, found = search.FindOnePose(dev.ID, flags)
			}

			// Every search call writes the device's score and candidate pose,
			// whether or not this pass ends up accepting it, so a
			// good-but-not-strong pass-0 candidate is still there for pass 1
			// to cheaply re-score instead of starting a deep search cold.
			frame.DeviceState[i].Metrics = metrics
			frame.DeviceState[i].FinalCamPose = pose

			if !found || !goodPoseMatch(metrics) {
				continue
			}
			if pass == 0 && !strongPoseMatch(metrics) {
				continue
			}

			if applyAcceptedPose(sv, frame, i, dev, pose, exp) {
				sv.PublishLabels(frame.Observation, dev.ID)
			}
		}
	}
}
