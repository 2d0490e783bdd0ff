package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func TestApplyInverseRoundTrip(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, QuaternionFromAxisAngle(r3.Vector{X: 0, Y: 1, Z: 0}, math.Pi/3))
	x := r3.Vector{X: 5, Y: -2, Z: 0.5}

	y := Apply(p, x)
	back := Apply(Invert(p), y)

	require.InDelta(t, x.X, back.X, 1e-9)
	require.InDelta(t, x.Y, back.Y, 1e-9)
	require.InDelta(t, x.Z, back.Z, 1e-9)
}

func TestComposeBootstrapIdentity(t *testing.T) {
	// Compose(a, b) applies b first, so camera_pose = Pow ∘ Poc^-1 gives
	// camera_pose ∘ Poc == Pow.
	pOc := NewPose(r3.Vector{X: 0.1, Y: 0.2, Z: 1.0}, QuaternionFromAxisAngle(r3.Vector{X: 1, Y: 0, Z: 0}, 0.4))
	pOw := NewPose(r3.Vector{X: 3, Y: 0, Z: -1}, QuaternionFromAxisAngle(r3.Vector{X: 0, Y: 0, Z: 1}, 1.1))

	cameraPose := Compose(pOw, Invert(pOc))
	recovered := Compose(cameraPose, pOc)

	require.True(t, AlmostEqual(recovered, pOw, 1e-9))
}

func TestMirrorXZInvolution(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, QuaternionFromAxisAngle(r3.Vector{X: 0, Y: 1, Z: 0}, 0.7))
	back := MirrorXZ(MirrorXZ(p))
	require.True(t, AlmostEqual(p, back, 1e-9))
}

func TestRotateIdentity(t *testing.T) {
	v := r3.Vector{X: 1, Y: 0, Z: 0}
	out := Rotate(quat.Number{Real: 1}, v)
	require.InDelta(t, v.X, out.X, 1e-12)
	require.InDelta(t, v.Y, out.Y, 1e-12)
	require.InDelta(t, v.Z, out.Z, 1e-12)
}
