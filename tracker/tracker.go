// Package tracker implements the tracker core: the set of tracked devices
// and attached sensors, and the cross-sensor exposure-info broadcast that
// ties camera observations to the inertial fusion timeline. It is the
// top-level object a caller constructs and drives.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/capture"
	"github.com/viam-labs/constellation-tracker/device"
	"github.com/viam-labs/constellation-tracker/kalman"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/sensorpipeline"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// Tracker owns the device and sensor registries and the broadcast exposure
// state. Its lock guards the registries only; the broadcast exposure
// snapshot lives behind a separate atomic so a sensor reading it at
// start-of-frame never has to acquire the tracker lock — sensor and
// tracker locking must never invert the tracker->sensor order.
type Tracker struct {
	mu      sync.Mutex
	devices []*device.Record
	sensors map[string]*sensorpipeline.Sensor

	exposure    atomic.Pointer[capture.ExposureInfo]
	exposureSeq uint64

	logger logging.Logger
	policy device.FusionPolicy
}

// New constructs an empty Tracker. policy selects whether accepted pose
// observations are injected into each device's filter as full 6-DoF poses
// or position-only.
func New(policy device.FusionPolicy, logger logging.Logger) *Tracker {
	return &Tracker{
		sensors: map[string]*sensorpipeline.Sensor{},
		logger:  logger,
		policy:  policy,
	}
}

// AddDevice registers a new tracked device. ledModel is registered with
// every currently attached sensor's correspondence search. The device's
// index among devices added so far becomes its position in future exposure
// broadcasts; devices added later never receive retroactive slots in
// exposures that predate them.
func (t *Tracker) AddDevice(id int, kind device.Kind, fusionToModel spatialmath.Pose, filter kalman.Filter, ledModel *blob.LEDModel) *device.Record {
	d := device.New(id, kind, fusionToModel, filter, t.logger)
	d.Policy = t.policy

	t.mu.Lock()
	t.devices = append(t.devices, d)
	sensors := make([]*sensorpipeline.Sensor, 0, len(t.sensors))
	for _, s := range t.sensors {
		sensors = append(sensors, s)
	}
	t.mu.Unlock()

	for _, s := range sensors {
		s.SetModel(id, ledModel)
	}
	return d
}

// DeviceAt returns the i'th device added to the tracker, or nil. It
// implements sensorpipeline.Callbacks.
func (t *Tracker) DeviceAt(i int) *device.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.devices) {
		return nil
	}
	return t.devices[i]
}

// Devices returns every tracked device.
func (t *Tracker) Devices() []*device.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*device.Record, len(t.devices))
	copy(out, t.devices)
	return out
}

// AddSensor attaches a sensor built by the caller (typically via
// sensorpipeline.New(cfg, t, logger)) and registers each LED model in
// models with it, keyed by device id. Models of devices added to the tracker
// before the sensor are not registered unless the caller passes them in
// models.
func (t *Tracker) AddSensor(s *sensorpipeline.Sensor, models map[int]*blob.LEDModel) error {
	t.mu.Lock()
	if _, exists := t.sensors[s.ID()]; exists {
		t.mu.Unlock()
		return errors.Errorf("tracker: sensor %q already attached", s.ID())
	}
	t.sensors[s.ID()] = s
	t.mu.Unlock()

	for id, model := range models {
		s.SetModel(id, model)
	}
	return nil
}

// Sensor returns the attached sensor with the given id, or nil.
func (t *Tracker) Sensor(id string) *sensorpipeline.Sensor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sensors[id]
}

// StartAll starts every attached sensor's pipeline.
func (t *Tracker) StartAll(ctx context.Context) error {
	t.mu.Lock()
	sensors := make([]*sensorpipeline.Sensor, 0, len(t.sensors))
	for _, s := range t.sensors {
		sensors = append(sensors, s)
	}
	t.mu.Unlock()

	for _, s := range sensors {
		if err := s.Start(ctx); err != nil {
			return errors.Wrapf(err, "tracker: starting sensor %q", s.ID())
		}
	}
	return nil
}

// StopAll stops every attached sensor's pipeline, continuing past individual
// failures and returning their combined error.
func (t *Tracker) StopAll() error {
	t.mu.Lock()
	sensors := make([]*sensorpipeline.Sensor, 0, len(t.sensors))
	for _, s := range t.sensors {
		sensors = append(sensors, s)
	}
	t.mu.Unlock()

	var errs error
	for _, s := range sensors {
		errs = multierr.Combine(errs, s.Stop())
	}
	return errs
}

// CurrentExposure implements sensorpipeline.Callbacks: a lock-free read of
// the latest broadcast exposure snapshot.
func (t *Tracker) CurrentExposure() (capture.ExposureInfo, bool) {
	p := t.exposure.Load()
	if p == nil {
		return capture.ExposureInfo{}, false
	}
	return *p, true
}

// UpdateExposure advances the broadcast exposure: if count is unchanged
// from the last broadcast, only the LED phase is refreshed. Otherwise every
// currently known device is given a fresh delay-slot allocation and the
// resulting exposure snapshot is broadcast to every attached sensor.
func (t *Tracker) UpdateExposure(hmdTS int64, count uint64, exposureHMDTS int64, ledPhase int) {
	t.mu.Lock()

	if prev := t.exposure.Load(); prev != nil && prev.Count == count {
		refreshed := *prev
		refreshed.LEDPatternPhase = ledPhase
		t.exposure.Store(&refreshed)
		t.mu.Unlock()
		return
	}

	exp := capture.ExposureInfo{
		LocalTS:         time.Now(),
		HMDTS:           hmdTS,
		Count:           count,
		LEDPatternPhase: ledPhase,
		NDevices:        len(t.devices),
	}
	if exp.NDevices > capture.MaxDevices {
		exp.NDevices = capture.MaxDevices
	}
	for i := 0; i < exp.NDevices; i++ {
		snap := t.devices[i].UpdateExposure(exposureHMDTS)
		exp.Devices[i] = capture.DeviceExposure{
			DeviceTimeNS: snap.DeviceTimeNS,
			CapturePose:  snap.Pose,
			PosErrorRad:  snap.PosErrorRad,
			RotErrorRad:  snap.RotErrorRad,
			FusionSlot:   snap.FusionSlot,
		}
	}

	sensors := make([]*sensorpipeline.Sensor, 0, len(t.sensors))
	for _, s := range t.sensors {
		sensors = append(sensors, s)
	}
	t.mu.Unlock()

	t.exposure.Store(&exp)
	for _, s := range sensors {
		s.AdoptExposure(exp, exp.LocalTS)
	}
}
