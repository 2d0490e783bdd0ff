package correspond

import "github.com/viam-labs/constellation-tracker/spatialmath"

// Bootstrap derives a sensor's camera-to-world transform from one accepted
// object->camera observation (objCamPose) paired with the fusion filter's
// object->world pose at the same capture instant (objWorldPose), such that
// Compose(result, objCamPose) reproduces objWorldPose for that observation
// and, going forward, for any other.
func Bootstrap(objCamPose, objWorldPose spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Compose(objWorldPose, spatialmath.Invert(objCamPose))
}
