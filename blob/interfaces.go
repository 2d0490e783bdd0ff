// Package blob defines the types the correspondence driver exchanges with
// the blob detector, PnP solver, pose-scoring evaluators, and
// correspondence search — all external collaborators supplied by the
// caller. Only their interfaces are specified here; concrete
// implementations live in blob/fake for tests and are supplied by the
// caller in production.
package blob

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/spatialmath"
)

// PoseMetrics is the result of scoring a candidate pose against a blob
// observation. Strong implies good but not vice versa.
type PoseMetrics struct {
	GoodMatch    bool
	StrongMatch  bool
	MatchedBlobs int
	VisibleLEDs  int
}

// Detector extracts blobs from a raw frame and maintains the cross-frame
// label state that correspondence search updates.
type Detector interface {
	// Process extracts a fresh Observation from a grayscale frame buffer.
	Process(ctx context.Context, pixels []byte, width, height int, ledPhase int) (*Observation, error)

	// ReleaseObservation returns a borrowed Observation to the detector.
	// Every Process call must be paired with exactly one ReleaseObservation.
	ReleaseObservation(obs *Observation)

	// UpdateLabels publishes obs's current labels for deviceID back into
	// the detector's persistent state so the next frame's fast stage
	// benefits from them.
	UpdateLabels(obs *Observation, deviceID int)
}

// PnPSolver recovers an object-to-camera pose from a set of labelled blobs
// and a device's LED model.
type PnPSolver interface {
	EstimateInitialPose(blobs []Blob, model *LEDModel, intr *Intrinsics, guess spatialmath.Pose) (spatialmath.Pose, bool)
}

// Evaluator scores a candidate pose against an observation.
type Evaluator interface {
	EvaluatePose(pose spatialmath.Pose, blobs []Blob, model *LEDModel, intr *Intrinsics) PoseMetrics

	// EvaluatePoseWithPrior penalises candidates whose delta from reference
	// exceeds posError/rotError (radians).
	EvaluatePoseWithPrior(pose, reference spatialmath.Pose, posError, rotError r3.Vector, blobs []Blob, model *LEDModel, intr *Intrinsics) PoseMetrics

	// MarkMatchingBlobs labels blobs in obs whose projection under pose
	// matches an LED of model within tolerance.
	MarkMatchingBlobs(pose spatialmath.Pose, obs *Observation, model *LEDModel, intr *Intrinsics)
}

// SearchFlags is the bitset passed to CorrespondenceSearch.FindOnePose*.
type SearchFlags uint8

const (
	StopForStrongMatch SearchFlags = 1 << iota
	MatchAllBlobs
	ShallowSearch
	DeepSearch
)

// Has reports whether f contains every bit in mask.
func (f SearchFlags) Has(mask SearchFlags) bool { return f&mask == mask }

// CorrespondenceSearch performs the full blobs-to-device-pose correspondence
// search used by the deep analysis stage.
type CorrespondenceSearch interface {
	SetModel(deviceID int, model *LEDModel) bool
	SetBlobs(blobs []Blob)

	FindOnePose(deviceID int, flags SearchFlags) (spatialmath.Pose, PoseMetrics, bool)

	// FindOnePoseAligned constrains the search to the swing component of
	// gravity, within tolerance radians.
	FindOnePoseAligned(deviceID int, flags SearchFlags, gravity r3.Vector, tolerance float64) (spatialmath.Pose, PoseMetrics, bool)
}
