package blob

// Blob is a bright connected region extracted from a frame by the blob
// detector: a candidate LED observation. The core never
// computes blobs itself; it only reads and relabels them.
type Blob struct {
	X, Y float64 // centroid, pixel coordinates
	W, H float64 // bounding box extents

	LEDID     ID // current label, or InvalidID
	PrevLEDID ID // label carried over from the previous frame, for fast re-acquisition

	// PatternPhase is the blink-pattern phase bit the detector associated
	// with this blob when it was extracted; used by correspondence search
	// to disambiguate LEDs that share position but blink differently.
	PatternPhase int
}

// Observation is the set of blobs extracted from one frame. It is an owning
// handle borrowed from the Detector: the pool returns it via
// Detector.ReleaseObservation when the frame is recycled.
type Observation struct {
	Blobs []Blob
}

// CountLabelled returns how many blobs in obs currently carry label
// (either as LEDID or, if includePrev, as PrevLEDID) for deviceID. Stage 1
// of the correspondence driver uses this to decide whether there are enough
// previously labelled blobs to attempt a PnP-only re-acquisition.
func CountLabelled(obs *Observation, deviceID int, includePrev bool) int {
	if obs == nil {
		return 0
	}
	n := 0
	for _, b := range obs.Blobs {
		if ObjectID(b.LEDID) == deviceID || (includePrev && ObjectID(b.PrevLEDID) == deviceID) {
			n++
		}
	}
	return n
}

// LabelledBlobs returns the blobs currently labelled to deviceID.
func LabelledBlobs(obs *Observation, deviceID int) []Blob {
	if obs == nil {
		return nil
	}
	var out []Blob
	for _, b := range obs.Blobs {
		if ObjectID(b.LEDID) == deviceID {
			out = append(out, b)
		}
	}
	return out
}

// ClearDeviceLabels moves every blob labelled to deviceID from LEDID to
// PrevLEDID and clears LEDID, preserving it as a re-acquisition hint for
// the next frame.
func ClearDeviceLabels(obs *Observation, deviceID int) {
	if obs == nil {
		return
	}
	for i := range obs.Blobs {
		if ObjectID(obs.Blobs[i].LEDID) == deviceID {
			obs.Blobs[i].PrevLEDID = obs.Blobs[i].LEDID
			obs.Blobs[i].LEDID = InvalidID
		}
	}
}
