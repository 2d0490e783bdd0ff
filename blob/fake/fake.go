// Package fake provides func-injection fakes for every external
// image/math collaborator the correspondence driver depends on, in the
// style of rdk's testutils/inject package: each fake exposes a *Func field
// per method that the test sets to script the fake's behavior. A method
// whose field is unset returns a fixed inert default (an empty or
// not-found result, or nothing) instead of panicking.
package fake

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// Detector is an injectable blob.Detector.
type Detector struct {
	ProcessFunc            func(ctx context.Context, pixels []byte, width, height int, ledPhase int) (*blob.Observation, error)
	ReleaseObservationFunc func(obs *blob.Observation)
	UpdateLabelsFunc       func(obs *blob.Observation, deviceID int)

	Updates []LabelUpdate
}

// LabelUpdate records a call to UpdateLabels for assertions.
type LabelUpdate struct {
	DeviceID int
	Blobs    []blob.Blob
}

func (d *Detector) Process(ctx context.Context, pixels []byte, width, height int, ledPhase int) (*blob.Observation, error) {
	if d.ProcessFunc == nil {
		return &blob.Observation{}, nil
	}
	return d.ProcessFunc(ctx, pixels, width, height, ledPhase)
}

func (d *Detector) ReleaseObservation(obs *blob.Observation) {
	if d.ReleaseObservationFunc != nil {
		d.ReleaseObservationFunc(obs)
	}
}

func (d *Detector) UpdateLabels(obs *blob.Observation, deviceID int) {
	if obs != nil {
		d.Updates = append(d.Updates, LabelUpdate{DeviceID: deviceID, Blobs: append([]blob.Blob(nil), obs.Blobs...)})
	}
	if d.UpdateLabelsFunc != nil {
		d.UpdateLabelsFunc(obs, deviceID)
	}
}

// PnPSolver is an injectable blob.PnPSolver.
type PnPSolver struct {
	EstimateInitialPoseFunc func(blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics, guess spatialmath.Pose) (spatialmath.Pose, bool)
}

func (p *PnPSolver) EstimateInitialPose(blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics, guess spatialmath.Pose) (spatialmath.Pose, bool) {
	if p.EstimateInitialPoseFunc == nil {
		return guess, false
	}
	return p.EstimateInitialPoseFunc(blobs, model, intr, guess)
}

// Evaluator is an injectable blob.Evaluator.
type Evaluator struct {
	EvaluatePoseFunc           func(pose spatialmath.Pose, blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics) blob.PoseMetrics
	EvaluatePoseWithPriorFunc  func(pose, reference spatialmath.Pose, posError, rotError r3.Vector, blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics) blob.PoseMetrics
	MarkMatchingBlobsFunc      func(pose spatialmath.Pose, obs *blob.Observation, model *blob.LEDModel, intr *blob.Intrinsics)
}

func (e *Evaluator) EvaluatePose(pose spatialmath.Pose, blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics) blob.PoseMetrics {
	if e.EvaluatePoseFunc == nil {
		return blob.PoseMetrics{}
	}
	return e.EvaluatePoseFunc(pose, blobs, model, intr)
}

func (e *Evaluator) EvaluatePoseWithPrior(pose, reference spatialmath.Pose, posError, rotError r3.Vector, blobs []blob.Blob, model *blob.LEDModel, intr *blob.Intrinsics) blob.PoseMetrics {
	if e.EvaluatePoseWithPriorFunc == nil {
		return blob.PoseMetrics{}
	}
	return e.EvaluatePoseWithPriorFunc(pose, reference, posError, rotError, blobs, model, intr)
}

func (e *Evaluator) MarkMatchingBlobs(pose spatialmath.Pose, obs *blob.Observation, model *blob.LEDModel, intr *blob.Intrinsics) {
	if e.MarkMatchingBlobsFunc != nil {
		e.MarkMatchingBlobsFunc(pose, obs, model, intr)
	}
}

// CorrespondenceSearch is an injectable blob.CorrespondenceSearch.
type CorrespondenceSearch struct {
	SetModelFunc             func(deviceID int, model *blob.LEDModel) bool
	SetBlobsFunc             func(blobs []blob.Blob)
	FindOnePoseFunc          func(deviceID int, flags blob.SearchFlags) (spatialmath.Pose, blob.PoseMetrics, bool)
	FindOnePoseAlignedFunc   func(deviceID int, flags blob.SearchFlags, gravity r3.Vector, tolerance float64) (spatialmath.Pose, blob.PoseMetrics, bool)
}

func (c *CorrespondenceSearch) SetModel(deviceID int, model *blob.LEDModel) bool {
	if c.SetModelFunc == nil {
		return true
	}
	return c.SetModelFunc(deviceID, model)
}

func (c *CorrespondenceSearch) SetBlobs(blobs []blob.Blob) {
	if c.SetBlobsFunc != nil {
		c.SetBlobsFunc(blobs)
	}
}

func (c *CorrespondenceSearch) FindOnePose(deviceID int, flags blob.SearchFlags) (spatialmath.Pose, blob.PoseMetrics, bool) {
	if c.FindOnePoseFunc == nil {
		return spatialmath.Identity(), blob.PoseMetrics{}, false
	}
	return c.FindOnePoseFunc(deviceID, flags)
}

func (c *CorrespondenceSearch) FindOnePoseAligned(deviceID int, flags blob.SearchFlags, gravity r3.Vector, tolerance float64) (spatialmath.Pose, blob.PoseMetrics, bool) {
	if c.FindOnePoseAlignedFunc == nil {
		return spatialmath.Identity(), blob.PoseMetrics{}, false
	}
	return c.FindOnePoseAlignedFunc(deviceID, flags, gravity, tolerance)
}
