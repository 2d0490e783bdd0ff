// Package sensorpipeline runs one physical sensor's three cooperating
// actors — the USB capture callback, the fast-analysis worker, and the
// long-analysis worker — over a four-buffer capture pool, and exposes the
// sensor-local state (camera pose, intrinsics, detector/search handles) the
// correspond package needs to resolve devices against each frame.
package sensorpipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/correspond"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/internal/framequeue"
	"github.com/viam-labs/constellation-tracker/internal/workers"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"github.com/viam-labs/constellation-tracker/transport"
)

// exposureAdoptionWindow bounds how late a broadcast exposure update may
// arrive and still be stamped onto the frame currently in capture.
const exposureAdoptionWindow = 5 * time.Millisecond

// Callbacks is the sensor's non-owning back-reference to its tracker: a
// sensor never holds a pointer to the tracker itself, only this interface,
// supplied once at construction.
type Callbacks interface {
	// CurrentExposure returns the tracker's current broadcast exposure
	// snapshot, or ok=false if none has been published yet. Implementations
	// must not block on the tracker's own lock in a way that could dead
	// lock against a caller already holding the sensor lock.
	CurrentExposure() (capture.ExposureInfo, bool)

	// DeviceAt returns the device record at index i, as ordered in the
	// exposure info devices this sensor currently sees, or nil.
	DeviceAt(i int) *device.Record
}

// Stats is the sensor's cumulative diagnostic counters.
type Stats struct {
	DroppedFrames     int
	SyntheticReleases int
	LongDiscards      int
}

// Config configures one Sensor.
type Config struct {
	ID            string
	Width, Height int

	Intrinsics *blob.Intrinsics
	Detector   blob.Detector
	PnP        blob.PnPSolver
	Evaluator  blob.Evaluator
	Search     blob.CorrespondenceSearch

	Transport transport.Sensor
}

// Sensor is one camera sensor's pipeline context.
type Sensor struct {
	id        string
	logger    logging.Logger
	transport transport.Sensor
	callbacks Callbacks

	intrinsics *blob.Intrinsics
	detector   blob.Detector
	pnp        blob.PnPSolver
	evaluator  blob.Evaluator
	search     blob.CorrespondenceSearch

	pool      *capture.Pool
	fastQueue *framequeue.Queue
	longQueue *framequeue.Queue

	mu               sync.Mutex
	cond             *sync.Cond
	curCaptureFrame  *capture.Frame
	longAnalysisBusy bool
	shutdown         bool
	haveCameraPose   bool
	cameraPose       spatialmath.Pose
	models           map[int]*blob.LEDModel
	stats            Stats
	sessionID        uuid.UUID

	workers workers.Group
}

// SessionID returns the identifier of the sensor's current (or most recent)
// Start/Stop stream session, for correlating log lines across a run. It is
// the zero UUID before Start has been called once.
func (s *Sensor) SessionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// New constructs a Sensor. It does not start any goroutine or touch the
// transport until Start is called.
func New(cfg Config, callbacks Callbacks, logger logging.Logger) *Sensor {
	s := &Sensor{
		id:         cfg.ID,
		logger:     logger,
		transport:  cfg.Transport,
		callbacks:  callbacks,
		intrinsics: cfg.Intrinsics,
		detector:   cfg.Detector,
		pnp:        cfg.PnP,
		evaluator:  cfg.Evaluator,
		search:     cfg.Search,
		pool:       capture.NewPool(cfg.Width, cfg.Height),
		fastQueue:  framequeue.New(capture.NumBuffers + 1),
		longQueue:  framequeue.New(capture.NumBuffers + 1),
		models:     map[int]*blob.LEDModel{},
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ID returns the sensor's identifier.
func (s *Sensor) ID() string { return s.id }

// Stats returns a snapshot of the sensor's diagnostic counters.
func (s *Sensor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SetModel registers deviceID's LED constellation with the sensor's
// correspondence search and makes it available to applyAcceptedPose's PnP
// refinement.
func (s *Sensor) SetModel(deviceID int, model *blob.LEDModel) bool {
	s.mu.Lock()
	s.models[deviceID] = model
	s.mu.Unlock()
	return s.search.SetModel(deviceID, model)
}

// correspond.SensorView implementation.

func (s *Sensor) Intrinsics() *blob.Intrinsics     { return s.intrinsics }
func (s *Sensor) Detector() blob.Detector          { return s.detector }
func (s *Sensor) PnP() blob.PnPSolver              { return s.pnp }
func (s *Sensor) Evaluator() blob.Evaluator        { return s.evaluator }
func (s *Sensor) Search() blob.CorrespondenceSearch { return s.search }

func (s *Sensor) ModelFor(deviceID int) *blob.LEDModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models[deviceID]
}

func (s *Sensor) CameraPose() (spatialmath.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraPose, s.haveCameraPose
}

// Bootstrap sets the sensor's camera pose if it has not already been set
// this sensor's lifetime — at most once.
func (s *Sensor) Bootstrap(camPose spatialmath.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveCameraPose {
		return
	}
	s.cameraPose = camPose
	s.haveCameraPose = true
	s.logger.Infow("camera pose bootstrapped", "sensor", s.id)
}

func (s *Sensor) PublishLabels(obs *blob.Observation, deviceID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.UpdateLabels(obs, deviceID)
}

var _ correspond.SensorView = (*Sensor)(nil)
