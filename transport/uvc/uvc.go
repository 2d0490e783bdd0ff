//go:build linux

// Package uvc implements transport.Sensor against a real V4L2 UVC camera
// using github.com/blackjack/webcam, the same low-level binding rdk uses in
// vision/webcam_linux.go. Unlike the higher-level pion/mediadevices stack
// rdk also carries, this binding exposes frame-by-frame buffer ownership
// directly, which is the shape the transport.Sensor set-frame/frame-callback
// model needs.
package uvc

import (
	"context"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/viam-labs/constellation-tracker/internal/workers"
	"github.com/viam-labs/constellation-tracker/transport"
)

// v4l2PixFmtGrey is the V4L2 8-bit greyscale pixel format fourcc, the format
// the tracked devices' IR sensors deliver (from
// github.com/blackjack/webcam/examples; see vision/webcam_linux.go for the
// sibling YUYV/MJPEG path used by rdk's own webcam source).
const v4l2PixFmtGrey = 0x59455247

// Sensor adapts a V4L2 device node to transport.Sensor.
type Sensor struct {
	cam           *webcam.Webcam
	width, height uint32

	mu   sync.Mutex
	sof  transport.SOFCallback
	fcb  transport.FrameCallback
	live *transport.Frame

	workers workers.Group
}

// Open opens path (e.g. "/dev/video0") and negotiates greyscale capture at
// the requested resolution.
func Open(path string, width, height uint32) (*Sensor, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening uvc device %s", path)
	}

	format, w, h, err := cam.SetImageFormat(webcam.PixelFormat(v4l2PixFmtGrey), width, height)
	if err != nil {
		cam.Close()
		return nil, errors.Wrapf(err, "negotiating format on %s", path)
	}
	_ = format

	if err := cam.SetBufferCount(4); err != nil {
		cam.Close()
		return nil, errors.Wrapf(err, "setting buffer count on %s", path)
	}

	return &Sensor{cam: cam, width: w, height: h}, nil
}

func (s *Sensor) StreamSetup(sof transport.SOFCallback, frame transport.FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sof = sof
	s.fcb = frame
	return nil
}

func (s *Sensor) SetFrame(f *transport.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = f
}

// StreamStart begins streaming and starts the poll loop that stands in for
// the USB event thread's interrupt-driven SOF/frame callbacks: blackjack/
// webcam exposes no SOF interrupt, so StreamStart timestamps "start of
// frame" immediately before WaitForFrame, which is the closest analogue
// available over V4L2's buffer-queue model.
func (s *Sensor) StreamStart() error {
	if err := s.cam.StartStreaming(); err != nil {
		return errors.Wrap(err, "starting uvc stream")
	}
	s.workers = workers.New(context.Background(), s.pollLoop)
	return nil
}

func (s *Sensor) StreamStop() error {
	if s.workers != nil {
		s.workers.Stop()
	}
	return errors.Wrap(s.cam.StopStreaming(), "stopping uvc stream")
}

func (s *Sensor) pollLoop(ctx context.Context) {
	for ctx.Err() == nil {
		start := time.Now()
		s.mu.Lock()
		sof, fcb := s.sof, s.fcb
		s.mu.Unlock()
		if sof != nil {
			sof(start)
		}

		err := s.cam.WaitForFrame(1)
		if err != nil {
			if _, ok := err.(*webcam.Timeout); ok {
				continue
			}
			return
		}

		raw, err := s.cam.ReadFrame()
		// Read the live buffer only now: the SOF callback above may have
		// handed over a new one.
		s.mu.Lock()
		live := s.live
		s.mu.Unlock()
		if err != nil || len(raw) == 0 || live == nil {
			continue
		}
		copy(live.Pixels, raw)
		if fcb != nil {
			fcb(live)
		}
	}
}

// Close releases the device. Safe to call after StreamStop.
func (s *Sensor) Close() error {
	return s.cam.Close()
}
