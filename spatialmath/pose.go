// Package spatialmath provides the rigid-transform math the tracker needs to
// move poses between object, camera, and world frames: composition,
// inversion, and point/vector transformation. It is a trimmed adaptation of
// rdk's spatialmath package, specialised to what the correspondence driver
// and device pose filter actually use.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: an orientation (unit quaternion) plus a
// translation, stored as a dual quaternion so that composition and inversion
// are cheap and numerically well behaved across long chains (object -> camera
// -> world).
type Pose struct {
	dq dualquat.Number
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{dualquat.Number{Real: quat.Number{Real: 1}}}
}

// NewPose builds a pose from a translation and an orientation quaternion.
// orientation need not be normalized.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	orientation = quat.Scale(1/quat.Abs(orientation), orientation)
	dual := quat.Mul(quat.Number{Imag: point.X / 2, Jmag: point.Y / 2, Kmag: point.Z / 2}, orientation)
	return Pose{dualquat.Number{Real: orientation, Dual: dual}}
}

// Point returns the pose's translation component.
func (p Pose) Point() r3.Vector {
	t := dualquat.Mul(p.dq, dualquat.Conj(p.dq)).Dual
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Orientation returns the pose's rotation as a unit quaternion.
func (p Pose) Orientation() quat.Number {
	return p.dq.Real
}

// Compose returns a∘b: the transform that first applies b, then a. If a maps
// object->camera and b maps camera->world, Compose(b, a) maps object->world.
func Compose(a, b Pose) Pose {
	return Pose{dualquat.Mul(a.dq, b.dq)}
}

// Invert returns p⁻¹.
func Invert(p Pose) Pose {
	return Pose{dualquat.ConjQuat(p.dq)}
}

// Apply transforms point x from the frame p maps from into the frame p maps
// to: Apply(Invert(p), Apply(p, x)) == x up to numeric tolerance.
func Apply(p Pose, x r3.Vector) r3.Vector {
	pure := dualquat.Number{Real: quat.Number{Real: 1}, Dual: quat.Number{Imag: x.X, Jmag: x.Y, Kmag: x.Z}}
	res := dualquat.Mul(dualquat.Mul(p.dq, pure), dualquat.Conj(p.dq))
	return r3.Vector{X: res.Dual.Imag, Y: res.Dual.Jmag, Z: res.Dual.Kmag}
}

// Rotate rotates vector v by orientation o only (no translation); used to
// move the gravity vector and the pos/rot error vectors between frames.
func Rotate(o quat.Number, v r3.Vector) r3.Vector {
	pure := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	res := quat.Mul(quat.Mul(o, pure), quat.Conj(o))
	return r3.Vector{X: res.Imag, Y: res.Jmag, Z: res.Kmag}
}

// MirrorXZ mirrors a pose across the XZ plane: negates Y translation and the
// X and Z components of the orientation (keeping W and Y) so that device axes convert to
// view-plane axes. Used for the HMD's device-axes -> view-plane-axes
// conversion in device.ModelPoseUpdate.
func MirrorXZ(p Pose) Pose {
	pt := p.Point()
	o := p.Orientation()
	return NewPose(
		r3.Vector{X: pt.X, Y: -pt.Y, Z: pt.Z},
		quat.Number{Real: o.Real, Imag: -o.Imag, Jmag: o.Jmag, Kmag: -o.Kmag},
	)
}

// QuaternionFromAxisAngle builds a unit quaternion rotating by angle radians
// around axis.
func QuaternionFromAxisAngle(axis r3.Vector, angle float64) quat.Number {
	axis = axis.Normalize()
	s := math.Sin(angle / 2)
	return quat.Number{Real: math.Cos(angle / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// AlmostEqual reports whether two poses differ by less than tol in both
// translation (same units as Point) and angle (radians).
func AlmostEqual(a, b Pose, tol float64) bool {
	if a.Point().Sub(b.Point()).Norm() > tol {
		return false
	}
	delta := quat.Mul(b.Orientation(), quat.Conj(a.Orientation()))
	angle := 2 * math.Atan2(math.Sqrt(delta.Imag*delta.Imag+delta.Jmag*delta.Jmag+delta.Kmag*delta.Kmag), math.Abs(delta.Real))
	return angle <= tol
}
