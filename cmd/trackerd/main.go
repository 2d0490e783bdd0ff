// Command trackerd loads a tracker configuration, attaches its configured
// sensors and devices, and runs the pipeline until interrupted. Wiring a
// real blob detector, PnP solver, pose evaluator, and correspondence search
// is left to the caller: this binary only demonstrates the shape, and always
// uses the blob fakes and the fake Kalman filter as stand-ins.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	blobfake "github.com/viam-labs/constellation-tracker/blob/fake"
	"github.com/viam-labs/constellation-tracker/device"
	kalmanfake "github.com/viam-labs/constellation-tracker/kalman/fake"
	"github.com/viam-labs/constellation-tracker/logging"
	"github.com/viam-labs/constellation-tracker/sensorpipeline"
	"github.com/viam-labs/constellation-tracker/spatialmath"
	"github.com/viam-labs/constellation-tracker/tracker"
	"github.com/viam-labs/constellation-tracker/transport/uvc"
)

func main() {
	configPath := flag.String("config", "", "path to a tracker config JSON file")
	flag.Parse()

	logger := logging.NewLogger("trackerd")
	if err := run(*configPath, logger); err != nil {
		logger.Errorw("trackerd exiting", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger logging.Logger) error {
	if configPath == "" {
		return errors.New("trackerd: -config is required")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "trackerd: reading config")
	}
	cfg, err := tracker.ParseConfig("config", data)
	if err != nil {
		return errors.Wrap(err, "trackerd: invalid config")
	}

	policy := device.PoseUpdate
	if cfg.Policy == "position_update" {
		policy = device.PositionUpdateOnly
	}
	t := tracker.New(policy, logger)

	for _, dc := range cfg.Devices {
		kind := device.KindController
		if dc.Kind == "hmd" {
			kind = device.KindHMD
		}
		model := deviceLEDModel(dc)
		fusionToModel := spatialmath.NewPose(
			r3.Vector{X: dc.FusionToModel[0], Y: dc.FusionToModel[1], Z: dc.FusionToModel[2]},
			quatFrom(dc.FusionToModel),
		)
		t.AddDevice(dc.ID, kind, fusionToModel, kalmanfake.New(), model)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, sc := range cfg.Sensors {
		cam, err := uvc.Open(sc.DevicePath, sc.Width, sc.Height)
		if err != nil {
			return errors.Wrapf(err, "trackerd: opening sensor %q", sc.ID)
		}
		intr := blobIntrinsics(sc)
		s := sensorpipeline.New(sensorpipeline.Config{
			ID:         sc.ID,
			Width:      int(sc.Width),
			Height:     int(sc.Height),
			Intrinsics: intr,
			Detector:   &blobfake.Detector{},
			PnP:        &blobfake.PnPSolver{},
			Evaluator:  &blobfake.Evaluator{},
			Search:     &blobfake.CorrespondenceSearch{},
			Transport:  cam,
		}, t, logger)
		if err := t.AddSensor(s, nil); err != nil {
			return errors.Wrap(err, "trackerd: attaching sensor")
		}
	}

	if err := t.StartAll(ctx); err != nil {
		return errors.Wrap(err, "trackerd: starting sensors")
	}
	defer func() {
		if err := t.StopAll(); err != nil {
			logger.Errorw("trackerd: error stopping sensors", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Infow("trackerd: shutting down")
	return nil
}
