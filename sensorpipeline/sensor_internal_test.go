package sensorpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	blobfake "github.com/viam-labs/constellation-tracker/blob/fake"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	kalmanfake "github.com/viam-labs/constellation-tracker/kalman/fake"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"github.com/viam-labs/constellation-tracker/transport"
)

type fakeTransport struct {
	sof   transport.SOFCallback
	frame transport.FrameCallback
	live  *transport.Frame
}

func (f *fakeTransport) StreamSetup(sof transport.SOFCallback, frame transport.FrameCallback) error {
	f.sof, f.frame = sof, frame
	return nil
}
func (f *fakeTransport) StreamStart() error { return nil }
func (f *fakeTransport) StreamStop() error  { return nil }
func (f *fakeTransport) SetFrame(fr *transport.Frame) {
	f.live = fr
}

type fakeCallbacks struct {
	exp     capture.ExposureInfo
	haveExp bool
	devices []*device.Record
}

func (c *fakeCallbacks) CurrentExposure() (capture.ExposureInfo, bool) { return c.exp, c.haveExp }
func (c *fakeCallbacks) DeviceAt(i int) *device.Record {
	if i < 0 || i >= len(c.devices) {
		return nil
	}
	return c.devices[i]
}

func newTestSensor(cb *fakeCallbacks) (*Sensor, *fakeTransport) {
	tr := &fakeTransport{}
	s := New(Config{ID: "sensor0", Width: 4, Height: 4, Transport: tr, Detector: &blobfake.Detector{}}, cb, logging.NewTestLogger())
	_ = s.transport.StreamSetup(s.onStartOfFrame, s.onFrameCaptured)
	return s, tr
}

func newDeviceWithSlot(t *testing.T, deviceTimeNS int64) (*device.Record, int) {
	dev := device.New(0, device.KindController, spatialmath.Identity(), kalmanfake.New(), logging.NewTestLogger())
	exp := dev.UpdateExposure(deviceTimeNS)
	require.GreaterOrEqual(t, exp.FusionSlot, 0)
	return dev, exp.FusionSlot
}

func TestOnStartOfFrameClaimsAndStampsExposure(t *testing.T) {
	dev, slot := newDeviceWithSlot(t, 100)
	cb := &fakeCallbacks{devices: []*device.Record{dev}}
	cb.exp = capture.ExposureInfo{NDevices: 1, Count: 1}
	cb.exp.Devices[0] = capture.DeviceExposure{DeviceTimeNS: 100, FusionSlot: slot}
	cb.haveExp = true

	s, tr := newTestSensor(cb)
	s.onStartOfFrame(time.Now())

	require.NotNil(t, s.curCaptureFrame)
	require.True(t, s.curCaptureFrame.ExposureInfoValid)
	require.Equal(t, 1, dev.SlotUseCounts()[slot])
	require.NotNil(t, tr.live)
	require.Equal(t, 16, len(tr.live.Pixels))
}

func TestOnFrameCapturedPushesToFastQueue(t *testing.T) {
	dev, slot := newDeviceWithSlot(t, 100)
	cb := &fakeCallbacks{devices: []*device.Record{dev}}
	cb.exp = capture.ExposureInfo{NDevices: 1, Count: 1}
	cb.exp.Devices[0] = capture.DeviceExposure{DeviceTimeNS: 100, FusionSlot: slot}
	cb.haveExp = true

	s, tr := newTestSensor(cb)
	s.onStartOfFrame(time.Now())
	s.onFrameCaptured(tr.live)

	require.Nil(t, s.curCaptureFrame)
	require.Equal(t, 1, s.fastQueue.Len())
}

func TestStallReuseEmitsSyntheticReleaseWithoutLeakingUseCount(t *testing.T) {
	dev, slot := newDeviceWithSlot(t, 100)
	cb := &fakeCallbacks{devices: []*device.Record{dev}}
	cb.exp = capture.ExposureInfo{NDevices: 1, Count: 1}
	cb.exp.Devices[0] = capture.DeviceExposure{DeviceTimeNS: 100, FusionSlot: slot}
	cb.haveExp = true

	s, _ := newTestSensor(cb)
	s.onStartOfFrame(time.Now())
	require.Equal(t, 1, dev.SlotUseCounts()[slot])

	// A second start-of-frame fires before frame-captured: the same buffer
	// is reused, the new claim is taken and the stale claim is then
	// released, leaving use_count at 1 rather than accumulating or
	// dropping to zero.
	s.onStartOfFrame(time.Now())

	require.Equal(t, 1, dev.SlotUseCounts()[slot])
	require.Equal(t, 1, s.Stats().SyntheticReleases)
}

func TestReleaseFrameSkipsDeviceThatAlreadyFused(t *testing.T) {
	dev, slot := newDeviceWithSlot(t, 100)
	cb := &fakeCallbacks{devices: []*device.Record{dev}}
	s, _ := newTestSensor(cb)

	dev.Claim(slot)
	frame := s.pool.Acquire()
	frame.ExposureInfoValid = true
	frame.NDevices = 1
	frame.ExposureInfo.Devices[0] = capture.DeviceExposure{FusionSlot: slot}
	frame.DeviceState[0].FoundDevicePose = true

	s.detector = &blobfake.Detector{}
	s.releaseFrame(frame)

	require.Equal(t, 1, dev.SlotUseCounts()[slot], "a device that already fused its pose releases its own claim; releaseFrame must not release it a second time")
}
