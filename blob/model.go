package blob

import "github.com/golang/geo/r3"

// LED describes one LED in a device's constellation model, in the device's
// own rigid frame.
type LED struct {
	Position r3.Vector // mm, device frame
	Normal   r3.Vector // outward-facing unit normal, device frame
}

// LEDModel is a device's full constellation, as handed to
// CorrespondenceSearch.SetModel and to the PnP solver.
type LEDModel struct {
	DeviceID int
	LEDs     []LED
}

// VisibleNormalThreshold is the minimum dot product between a projected LED
// normal and the camera-ward direction for that LED to be considered
// potentially visible. No code in this repository reads it; the visibility
// test is left to Evaluator.MarkMatchingBlobs implementations.
const VisibleNormalThreshold = 0.1
