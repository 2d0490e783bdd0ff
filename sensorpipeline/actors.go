package sensorpipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/correspond"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/internal/workers"
	"github.com/viam-labs/constellation-tracker/transport"
)

// Start registers the transport callbacks and starts the fast and long
// analysis workers, then starts the transport's stream.
func (s *Sensor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.sessionID = uuid.New()
	sessionID := s.sessionID
	s.mu.Unlock()

	if err := s.transport.StreamSetup(s.onStartOfFrame, s.onFrameCaptured); err != nil {
		return errors.Wrap(err, "sensorpipeline: stream setup")
	}
	s.workers = workers.New(ctx, s.fastWorkerLoop, s.longWorkerLoop)
	if err := s.transport.StreamStart(); err != nil {
		return errors.Wrap(err, "sensorpipeline: stream start")
	}
	s.logger.Infow("sensorpipeline: stream started", "sensor", s.id, "session", sessionID)
	return nil
}

// Stop tells both workers to exit, stops the transport, and releases any
// frame still queued or in capture back to the pool. It returns any error
// the transport reported while stopping the stream.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	s.shutdown = true
	s.cond.Broadcast()
	s.mu.Unlock()

	stopErr := s.transport.StreamStop()
	if s.workers != nil {
		s.workers.Stop()
	}

	s.mu.Lock()
	var leftover []*capture.Frame
	for h := s.fastQueue.Pop(); h != nil; h = s.fastQueue.Pop() {
		leftover = append(leftover, h.(*capture.Frame))
	}
	for h := s.longQueue.Pop(); h != nil; h = s.longQueue.Pop() {
		leftover = append(leftover, h.(*capture.Frame))
	}
	if s.curCaptureFrame != nil {
		leftover = append(leftover, s.curCaptureFrame)
		s.curCaptureFrame = nil
	}
	s.mu.Unlock()

	for _, f := range leftover {
		s.releaseFrame(f)
	}
	s.logger.Infow("sensorpipeline: stream stopped", "sensor", s.id, "session", s.SessionID())
	return stopErr
}

// onStartOfFrame implements the capture actor's start-of-frame handler: it
// picks a frame buffer (acquiring, reusing a not-yet-delivered one, or
// rescuing one from the fast queue under sustained USB stall), stamps it
// with the tracker's current exposure snapshot if one is available, and
// hands the buffer to the transport.
func (s *Sensor) onStartOfFrame(startTS time.Time) {
	s.mu.Lock()

	var frame *capture.Frame
	synthetic := false
	var staleStartTS time.Time
	var staleExp capture.ExposureInfo
	staleValid := false

	switch {
	case s.curCaptureFrame != nil:
		frame = s.curCaptureFrame
		staleStartTS = frame.StartTS
		staleExp, staleValid = frame.ExposureInfo, frame.ExposureInfoValid
		synthetic = true
	default:
		if acquired := s.pool.Acquire(); acquired != nil {
			frame = acquired
		} else if rescued, _ := s.fastQueue.Rewind().(*capture.Frame); rescued != nil {
			frame = rescued
			staleStartTS = frame.StartTS
			staleExp, staleValid = frame.ExposureInfo, frame.ExposureInfoValid
			synthetic = true
			s.stats.DroppedFrames++
		}
	}

	if frame == nil {
		s.mu.Unlock()
		s.logger.Warnw("start-of-frame with no frame buffer available; USB stall exceeds recovery capacity", "sensor", s.id)
		return
	}

	staleObs := frame.Observation
	frame.Reset()
	frame.StartTS = startTS

	var newExp capture.ExposureInfo
	haveNewExp := false
	if exp, ok := s.callbacks.CurrentExposure(); ok {
		frame.ExposureInfo = exp
		frame.ExposureInfoValid = true
		frame.NDevices = exp.NDevices
		newExp, haveNewExp = exp, true
	}
	s.curCaptureFrame = frame
	s.stats.SyntheticReleases += boolToInt(synthetic)
	s.mu.Unlock()

	if staleObs != nil {
		s.detector.ReleaseObservation(staleObs)
	}
	// Claim the new exposure before releasing the stale one, so a slot the
	// two share is not invalidated by its count passing through zero.
	if haveNewExp {
		s.claimDevices(newExp, nil)
	}
	if synthetic {
		s.releaseClaims(staleValid, staleExp)
		s.logger.Warnw("synthetic frame-release for stale start-of-frame", "sensor", s.id, "stale_start_ts", staleStartTS)
	}

	s.transport.SetFrame(&transport.Frame{Pixels: frame.Pixels, Width: frame.Width, Height: frame.Height})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// onFrameCaptured implements the capture actor's frame-captured handler. tf
// must be the same buffer handed to the transport for s.curCaptureFrame by
// the preceding onStartOfFrame; a transport that delivers a different
// buffer is a bug in the transport, not a recoverable condition here.
func (s *Sensor) onFrameCaptured(tf *transport.Frame) {
	s.mu.Lock()
	frame := s.curCaptureFrame
	if frame == nil {
		s.mu.Unlock()
		s.logger.Errorw("frame-captured with no frame in capture", "sensor", s.id)
		return
	}
	if !sameBuffer(tf.Pixels, frame.Pixels) {
		panic(fmt.Sprintf("sensorpipeline: frame-captured delivered a buffer that does not match the frame in capture (sensor %q)", s.id))
	}
	s.curCaptureFrame = nil
	ctx := context.Background()
	if s.workers != nil {
		ctx = s.workers.Context()
	}
	s.mu.Unlock()

	frame.DeliveredTS = time.Now()

	if !frame.ExposureInfoValid {
		s.releaseFrame(frame)
		return
	}

	for i := 0; i < frame.NDevices; i++ {
		dev := frame.ExposureInfo.Devices[i]
		frame.DeviceState[i].CaptureWorldPose = dev.CapturePose
		frame.DeviceState[i].GravityErrorRad = gravityErrorOf(dev)
	}

	obs, err := s.detector.Process(ctx, frame.Pixels, frame.Width, frame.Height, frame.ExposureInfo.LEDPatternPhase)
	frame.BlobDoneTS = time.Now()
	if err != nil {
		s.logger.Errorw("blob detector process failed", "sensor", s.id, "error", err)
		s.releaseFrame(frame)
		return
	}
	frame.Observation = obs

	s.mu.Lock()
	s.fastQueue.Push(frame)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// sameBuffer reports whether a and b are backed by the same underlying
// array, used to assert that a delivered frame matches the buffer it was
// handed for capture.
func sameBuffer(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

func gravityErrorOf(e capture.DeviceExposure) float64 {
	return math.Hypot(e.RotErrorRad.X, e.RotErrorRad.Z)
}

// fastWorkerLoop implements the fast analysis worker.
func (s *Sensor) fastWorkerLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		for s.fastQueue.Len() == 0 && !s.shutdown {
			s.cond.Wait()
		}
		if s.shutdown {
			s.mu.Unlock()
			return
		}
		frame := s.fastQueue.Pop().(*capture.Frame)
		s.mu.Unlock()

		frame.FastStartTS = time.Now()
		correspond.RunFast(s, frame, s.deviceSlice(frame.NDevices))
		frame.FastFinishTS = time.Now()

		s.mu.Lock()
		if frame.NeedLongAnalysis && !s.longAnalysisBusy {
			if stale, _ := s.longQueue.Rewind().(*capture.Frame); stale != nil {
				s.stats.LongDiscards++
				s.mu.Unlock()
				s.releaseFrame(stale)
				s.mu.Lock()
			}
			s.longQueue.Push(frame)
			s.cond.Broadcast()
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()
		s.releaseFrame(frame)
	}
}

// longWorkerLoop implements the long analysis worker.
func (s *Sensor) longWorkerLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		for s.longQueue.Len() == 0 && !s.shutdown {
			s.cond.Wait()
		}
		if s.shutdown {
			s.mu.Unlock()
			return
		}
		frame := s.longQueue.Pop().(*capture.Frame)
		s.longAnalysisBusy = true
		s.mu.Unlock()

		frame.LongStartTS = time.Now()
		correspond.RunDeep(s, frame, s.deviceSlice(frame.NDevices))
		frame.LongFinishTS = time.Now()

		s.mu.Lock()
		s.longAnalysisBusy = false
		s.mu.Unlock()

		s.releaseFrame(frame)
	}
}

// deviceSlice resolves the first n device records through the callback,
// outside any lock the caller might be holding.
func (s *Sensor) deviceSlice(n int) []*device.Record {
	out := make([]*device.Record, n)
	for i := 0; i < n; i++ {
		out[i] = s.callbacks.DeviceAt(i)
	}
	return out
}
