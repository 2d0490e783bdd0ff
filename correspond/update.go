package correspond

import (
	"math"

	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

const bootstrapGravityTolerance = 15 * math.Pi / 180

func toExposureSnapshot(e capture.DeviceExposure) device.ExposureSnapshot {
	return device.ExposureSnapshot{
		DeviceTimeNS: e.DeviceTimeNS,
		Pose:         e.CapturePose,
		PosErrorRad:  e.PosErrorRad,
		RotErrorRad:  e.RotErrorRad,
		FusionSlot:   e.FusionSlot,
	}
}

// applyAcceptedPose relabels blobs around an accepted object->camera
// candidate, refines it once more with PnP, and either fuses the refined
// pose into the device's filter (when the sensor already has a camera
// pose) or attempts the one-time camera-pose bootstrap for the HMD. It
// returns whether the refined candidate still scored a good match.
func applyAcceptedPose(sv SensorView, frame *capture.Frame, i int, dev *device.Record, objCamPose spatialmath.Pose, exp capture.DeviceExposure) bool {
	obs := frame.Observation
	model := sv.ModelFor(dev.ID)
	intr := sv.Intrinsics()
	ev := sv.Evaluator()

	blob.ClearDeviceLabels(obs, dev.ID)
	ev.MarkMatchingBlobs(objCamPose, obs, model, intr)

	refined := objCamPose
	if r, ok := sv.PnP().EstimateInitialPose(blob.LabelledBlobs(obs, dev.ID), model, intr, objCamPose); ok {
		refined = r
	}
	ev.MarkMatchingBlobs(refined, obs, model, intr)
	frame.DeviceState[i].FinalCamPose = refined

	metrics := ev.EvaluatePose(refined, obs.Blobs, model, intr)
	if !goodPoseMatch(metrics) {
		return false
	}
	frame.DeviceState[i].Metrics = metrics

	if camPose, haveCam := sv.CameraPose(); haveCam {
		worldPose := spatialmath.Compose(camPose, refined)
		if dev.ModelPoseUpdate(toExposureSnapshot(exp), worldPose, "correspond") {
			frame.DeviceState[i].FoundDevicePose = true
		}
		return true
	}

	if dev.Kind == device.KindHMD &&
		quat.Abs(exp.CapturePose.Orientation()) > 0.9 &&
		gravityErrorOf(exp) < bootstrapGravityTolerance {
		sv.Bootstrap(Bootstrap(refined, exp.CapturePose))
	}
	return true
}
