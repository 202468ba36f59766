package analyze

import "github.com/your-org/proctor/internal/models"

// Fixed mesh indices for the 6-point PnP face model, within the same
// 478-point topology used for gaze/EAR. Configuration, not state.
const (
	noseTipIndex  = 1
	chinIndex     = 152
	leftMouthIdx  = 61
	rightMouthIdx = 291
)

// HeadPosePoints extracts the 6 landmarks the PnP solver needs (nose tip,
// chin, left eye outer, right eye outer, left mouth, right mouth) from a
// face mesh whose coordinates live in the downscaled detection frame, and
// rescales them to original-resolution pixel coordinates as the solver
// requires.
func HeadPosePoints(mesh *models.FaceMesh, scaleX, scaleY float64) [6][2]float64 {
	pt := func(idx int) [2]float64 {
		p := mesh.Landmarks[idx]
		return [2]float64{float64(p.X) * scaleX, float64(p.Y) * scaleY}
	}
	return [6][2]float64{
		pt(noseTipIndex),
		pt(chinIndex),
		pt(leftEyeOuter),
		pt(rightEyeOuter),
		pt(leftMouthIdx),
		pt(rightMouthIdx),
	}
}
