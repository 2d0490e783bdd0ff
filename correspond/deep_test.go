package correspond

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/device"
	kalmanfake "github.com/viam-labs/constellation-tracker/kalman/fake"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

func TestRunDeepAcceptsStrongMatchInPass0(t *testing.T) {
	sv := newTestSensorView()
	sv.search.FindOnePoseFunc = func(deviceID int, flags blob.SearchFlags) (spatialmath.Pose, blob.PoseMetrics, bool) {
		if !flags.Has(blob.ShallowSearch) {
			return spatialmath.Identity(), blob.PoseMetrics{}, false
		}
		return spatialmath.Identity(), blob.PoseMetrics{GoodMatch: true, StrongMatch: true}, true
	}
	sv.evaluator.EvaluatePoseFunc = func(pose spatialmath.Pose, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}

	dev := newTestDevice(device.KindController)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	RunDeep(sv, frame, []*device.Record{dev})

	require.True(t, frame.DeviceState[0].Metrics.GoodMatch)
	require.Contains(t, sv.published, 0)
}

func TestRunDeepSkipsAlreadyResolvedDevice(t *testing.T) {
	sv := newTestSensorView()
	calls := 0
	sv.search.FindOnePoseFunc = func(deviceID int, flags blob.SearchFlags) (spatialmath.Pose, blob.PoseMetrics, bool) {
		calls++
		return spatialmath.Identity(), blob.PoseMetrics{}, false
	}

	dev := newTestDevice(device.KindController)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	frame.DeviceState[0].FoundDevicePose = true

	RunDeep(sv, frame, []*device.Record{dev})
	require.Equal(t, 0, calls)
}

func TestRunDeepPass1RechecksGoodButNotStrongPass0Candidate(t *testing.T) {
	sv := newTestSensorView()
	sv.haveCam = true
	sv.camPose = spatialmath.Identity()

	searchCalls := map[int]int{}
	sv.search.FindOnePoseAlignedFunc = func(deviceID int, flags blob.SearchFlags, gravity r3.Vector, tolerance float64) (spatialmath.Pose, blob.PoseMetrics, bool) {
		searchCalls[deviceID]++
		switch deviceID {
		case 0:
			// Always a strong match: resolved outright in pass 0, claiming
			// whatever blobs it needs before device 1 gets another look.
			return spatialmath.Identity(), blob.PoseMetrics{GoodMatch: true, StrongMatch: true}, true
		case 1:
			if searchCalls[1] == 1 {
				// Pass 0: a good but not strong candidate for device 1.
				return spatialmath.Identity(), blob.PoseMetrics{GoodMatch: true, StrongMatch: false}, true
			}
			// Pass 1, after the recheck below rejects the stale candidate:
			// a fresh search now finds a strong match.
			return spatialmath.Identity(), blob.PoseMetrics{GoodMatch: true, StrongMatch: true}, true
		}
		return spatialmath.Identity(), blob.PoseMetrics{}, false
	}

	recheckCalls := 0
	sv.evaluator.EvaluatePoseWithPriorFunc = func(pose, ref spatialmath.Pose, posErr, rotErr r3.Vector, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		recheckCalls++
		return blob.PoseMetrics{GoodMatch: false}
	}
	sv.evaluator.EvaluatePoseFunc = func(pose spatialmath.Pose, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}

	dev0 := device.New(0, device.KindController, spatialmath.Identity(), kalmanfake.New(), logging.NewTestLogger())
	dev1 := device.New(1, device.KindController, spatialmath.Identity(), kalmanfake.New(), logging.NewTestLogger())
	sv.models[0] = &blob.LEDModel{DeviceID: 0}
	sv.models[1] = &blob.LEDModel{DeviceID: 1}

	frame := newTestFrame(2)
	// Give each device an open delay slot matching the frame's exposure
	// stamp, so ModelPoseUpdate's slot-freshness check accepts the fuse.
	exp0 := dev0.UpdateExposure(frame.ExposureInfo.Devices[0].DeviceTimeNS)
	dev0.Claim(exp0.FusionSlot)
	exp1 := dev1.UpdateExposure(frame.ExposureInfo.Devices[1].DeviceTimeNS)
	dev1.Claim(exp1.FusionSlot)

	RunDeep(sv, frame, []*device.Record{dev0, dev1})

	require.True(t, frame.DeviceState[0].FoundDevicePose)
	require.True(t, frame.DeviceState[1].Metrics.GoodMatch, "device 1's pass-0 candidate must survive into pass 1")
	require.Contains(t, sv.published, 1)
	require.Equal(t, 1, recheckCalls, "pass 1 must re-score device 1's own pass-0 candidate rather than searching cold")
	require.Equal(t, 2, searchCalls[1], "device 1 only searches again after its recheck fails")
}

func TestRunDeepAlignedUsesCameraGravity(t *testing.T) {
	sv := newTestSensorView()
	sv.haveCam = true
	sv.camPose = spatialmath.Identity()

	var gotGravity r3.Vector
	sv.search.FindOnePoseAlignedFunc = func(deviceID int, flags blob.SearchFlags, gravity r3.Vector, tolerance float64) (spatialmath.Pose, blob.PoseMetrics, bool) {
		gotGravity = gravity
		return spatialmath.Identity(), blob.PoseMetrics{GoodMatch: true, StrongMatch: true}, true
	}
	sv.evaluator.EvaluatePoseFunc = func(pose spatialmath.Pose, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}

	dev := newTestDevice(device.KindController)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	frame.ExposureInfo.Devices[0].RotErrorRad = r3.Vector{} // zero gravity error -> aligned permitted

	RunDeep(sv, frame, []*device.Record{dev})
	require.InDelta(t, 1, gotGravity.Y, 1e-9)
}
