package main

import (
	"github.com/golang/geo/r3"
	"github.com/viam-labs/constellation-tracker/blob"
	"github.com/viam-labs/constellation-tracker/tracker"
	"gonum.org/v1/gonum/num/quat"
)

func deviceLEDModel(dc tracker.DeviceConfig) *blob.LEDModel {
	model := &blob.LEDModel{DeviceID: dc.ID}
	for _, l := range dc.LEDs {
		model.LEDs = append(model.LEDs, blob.LED{
			Position: r3.Vector{X: l.PositionMM[0], Y: l.PositionMM[1], Z: l.PositionMM[2]},
			Normal:   r3.Vector{X: l.Normal[0], Y: l.Normal[1], Z: l.Normal[2]},
		})
	}
	return model
}

// quatFrom reads the w,x,y,z quaternion packed in indices 3..6 of a
// DeviceConfig.FusionToModel array (indices 0..2 hold the translation).
func quatFrom(v [7]float64) quat.Number {
	return quat.Number{Real: v[3], Imag: v[4], Jmag: v[5], Kmag: v[6]}
}

func blobIntrinsics(sc tracker.SensorConfig) *blob.Intrinsics {
	return blob.NewIntrinsics(sc.FocalLengthX, sc.FocalLengthY, sc.PrincipalX, sc.PrincipalY, blob.Distortion{})
}
