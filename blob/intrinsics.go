package blob

import "github.com/go-gl/mathgl/mgl64"

// Distortion holds a camera's radial/tangential distortion coefficients.
// Named fields rather than an indexed array by design: a flat five-element
// array invites aliasing bugs where one coefficient silently overwrites
// another during decode. The coefficients are those of the Brown-Conrady
// model, conventionally ordered K1, K2, P1, P2, K3; the fields below are
// declared in a different order, which carries no meaning (see DESIGN.md).
// Calibration decode itself
// is out of scope here; this type is just the destination shape it fills in.
type Distortion struct {
	K1, K2, K3 float64
	P1, P2     float64
	Fisheye    bool
}

// Intrinsics is a sensor's pinhole camera matrix and distortion model, as
// consumed by the PnP solver and the pose-scoring evaluators.
type Intrinsics struct {
	K          mgl64.Mat3
	Distortion Distortion
}

// NewIntrinsics builds an Intrinsics from focal lengths and principal point.
func NewIntrinsics(fx, fy, cx, cy float64, dist Distortion) *Intrinsics {
	return &Intrinsics{
		K: mgl64.Mat3{
			fx, 0, 0,
			0, fy, 0,
			cx, cy, 1,
		},
		Distortion: dist,
	}
}
