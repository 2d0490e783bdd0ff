package correspond

import (
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// minLabelledForReacquire is the count of blobs already carrying a device's
// label that must be exceeded before a PnP-only re-acquisition is attempted.
const minLabelledForReacquire = 4

// RunFast runs the bounded, re-acquisition-only first pass over every
// device present at capture time. Devices it cannot confidently place are
// left unresolved and frame.NeedLongAnalysis is set so the deep pass picks
// them up.
func RunFast(sv SensorView, frame *capture.Frame, devices []*device.Record) {
	intr := sv.Intrinsics()
	ev := sv.Evaluator()

	for i := 0; i < frame.NDevices && i < len(devices); i++ {
		dev := devices[i]
		if dev == nil {
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

		objCamPose := exp.CapturePose
		if camPose, haveCam := sv.CameraPose(); haveCam {
			objCamPose = spatialmath.Compose(spatialmath.Invert(camPose), exp.CapturePose)
		}

		metrics := ev.EvaluatePoseWithPrior(objCamPose, exp.CapturePose, exp.PosErrorRad, exp.RotErrorRad, frame.Observation.Blobs, model, intr)
		accepted := goodPoseMatch(metrics)

		if !accepted && blob.CountLabelled(frame.Observation, dev.ID, true) > minLabelledForReacquire {
			if refined, ok := sv.PnP().EstimateInitialPose(blob.LabelledBlobs(frame.Observation, dev.ID), model, intr, objCamPose); ok {
				metrics = ev.EvaluatePoseWithPrior(refined, exp.CapturePose, exp.PosErrorRad, exp.RotErrorRad, frame.Observation.Blobs, model, intr)
				if goodPoseMatch(metrics) {
					objCamPose = refined
					accepted = true
				}
			}
		}

		if !accepted {
			frame.NeedLongAnalysis = true
			continue
		}

		applyAcceptedPose(sv, frame, i, dev, objCamPose, exp)
	}
}
