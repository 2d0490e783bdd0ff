package correspond

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"github.com/viam-labs/constellation-tracker/blob"
	blobfake "github.com/viam-labs/constellation-tracker/blob/fake"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	kalmanfake "github.com/viam-labs/constellation-tracker/kalman/fake"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

type testSensorView struct {
	intr      *blob.Intrinsics
	detector  *blobfake.Detector
	pnp       *blobfake.PnPSolver
	evaluator *blobfake.Evaluator
	search    *blobfake.CorrespondenceSearch
	models    map[int]*blob.LEDModel

	camPose      spatialmath.Pose
	haveCam      bool
	bootstrapped *spatialmath.Pose
	published    []int
}

func newTestSensorView() *testSensorView {
	return &testSensorView{
		intr:      blob.NewIntrinsics(500, 500, 320, 240, blob.Distortion{}),
		detector:  &blobfake.Detector{},
		pnp:       &blobfake.PnPSolver{},
		evaluator: &blobfake.Evaluator{},
		search:    &blobfake.CorrespondenceSearch{},
		models:    map[int]*blob.LEDModel{},
	}
}

func (sv *testSensorView) Intrinsics() *blob.Intrinsics            { return sv.intr }
func (sv *testSensorView) Detector() blob.Detector                 { return sv.detector }
func (sv *testSensorView) PnP() blob.PnPSolver                     { return sv.pnp }
func (sv *testSensorView) Evaluator() blob.Evaluator               { return sv.evaluator }
func (sv *testSensorView) Search() blob.CorrespondenceSearch       { return sv.search }
func (sv *testSensorView) ModelFor(deviceID int) *blob.LEDModel    { return sv.models[deviceID] }
func (sv *testSensorView) CameraPose() (spatialmath.Pose, bool)    { return sv.camPose, sv.haveCam }
func (sv *testSensorView) Bootstrap(p spatialmath.Pose) {
	if sv.bootstrapped == nil {
		sv.bootstrapped = &p
	}
}
func (sv *testSensorView) PublishLabels(obs *blob.Observation, deviceID int) {
	sv.published = append(sv.published, deviceID)
}

func newTestFrame(nDevices int) *capture.Frame {
	f := &capture.Frame{Observation: &blob.Observation{Blobs: []blob.Blob{{X: 1, Y: 1}}}}
	f.NDevices = nDevices
	f.ExposureInfoValid = true
	for i := 0; i < nDevices; i++ {
		f.ExposureInfo.Devices[i] = capture.DeviceExposure{
			DeviceTimeNS: int64(i + 1),
			CapturePose:  spatialmath.Identity(),
			FusionSlot:   0,
		}
	}
	f.ExposureInfo.NDevices = nDevices
	return f
}

func newTestDevice(kind device.Kind) *device.Record {
	return device.New(0, kind, spatialmath.Identity(), kalmanfake.New(), logging.NewTestLogger())
}

func TestRunFastAcceptsGoodMatchWithoutCameraPose(t *testing.T) {
	sv := newTestSensorView()
	sv.evaluator.EvaluatePoseWithPriorFunc = func(pose, ref spatialmath.Pose, posErr, rotErr r3.Vector, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}
	sv.evaluator.EvaluatePoseFunc = func(pose spatialmath.Pose, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}

	dev := newTestDevice(device.KindController)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	RunFast(sv, frame, []*device.Record{dev})

	require.False(t, frame.NeedLongAnalysis)
	require.False(t, frame.DeviceState[0].FoundDevicePose, "no camera pose yet: only bootstrap or nothing should happen")
}

func TestRunFastRejectsSendsToLongQueue(t *testing.T) {
	sv := newTestSensorView()
	sv.evaluator.EvaluatePoseWithPriorFunc = func(pose, ref spatialmath.Pose, posErr, rotErr r3.Vector, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: false}
	}
	dev := newTestDevice(device.KindController)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	RunFast(sv, frame, []*device.Record{dev})

	require.True(t, frame.NeedLongAnalysis)
}

func TestRunFastBootstrapsHMD(t *testing.T) {
	sv := newTestSensorView()
	sv.evaluator.EvaluatePoseWithPriorFunc = func(pose, ref spatialmath.Pose, posErr, rotErr r3.Vector, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}
	sv.evaluator.EvaluatePoseFunc = func(pose spatialmath.Pose, blobs []blob.Blob, m *blob.LEDModel, i *blob.Intrinsics) blob.PoseMetrics {
		return blob.PoseMetrics{GoodMatch: true}
	}

	dev := newTestDevice(device.KindHMD)
	sv.models[0] = &blob.LEDModel{DeviceID: 0}

	frame := newTestFrame(1)
	frame.ExposureInfo.Devices[0].CapturePose = spatialmath.Identity() // unit-magnitude orientation, zero gravity error
	RunFast(sv, frame, []*device.Record{dev})

	require.NotNil(t, sv.bootstrapped)
}
