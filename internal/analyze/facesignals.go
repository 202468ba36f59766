package analyze

import "github.com/your-org/proctor/internal/models"

// Fixed landmark indices within the 478-point mesh topology, identical
// across sessions — configuration, not state (mirrors the per-eye layout
// the upstream mesh model was trained to emit).
const (
	leftEyeOuter      = 263
	leftEyeInner      = 362
	leftEyeUpperOuter = 386
	leftEyeLowerOuter = 374
	leftEyeUpperInner = 385
	leftEyeLowerInner = 380

	rightEyeOuter      = 33
	rightEyeInner      = 133
	rightEyeUpperOuter = 159
	rightEyeLowerOuter = 145
	rightEyeUpperInner = 158
	rightEyeLowerInner = 153
)

func point(p models.Point2D) [2]float32 { return [2]float32{p.X, p.Y} }

func eyeFromMesh(mesh *models.FaceMesh, outer, inner, upperOuter, lowerOuter, upperInner, lowerInner int, iris models.Point2D) eyeLandmarks {
	return eyeLandmarks{
		Outer:      point(mesh.Landmarks[outer]),
		Inner:      point(mesh.Landmarks[inner]),
		UpperOuter: point(mesh.Landmarks[upperOuter]),
		LowerOuter: point(mesh.Landmarks[lowerOuter]),
		UpperInner: point(mesh.Landmarks[upperInner]),
		LowerInner: point(mesh.Landmarks[lowerInner]),
		IrisCenter: point(iris),
	}
}

// GazeAndEAR derives the averaged gaze offset and eye-aspect-ratio for both
// eyes from one face-mesh result. Returns zeros for a nil/empty mesh.
func GazeAndEAR(mesh *models.FaceMesh) (gazeH, gazeV, ear float64) {
	if mesh == nil {
		return 0, 0, 0
	}

	left := eyeFromMesh(mesh, leftEyeOuter, leftEyeInner, leftEyeUpperOuter, leftEyeLowerOuter, leftEyeUpperInner, leftEyeLowerInner, mesh.IrisLeft)
	right := eyeFromMesh(mesh, rightEyeOuter, rightEyeInner, rightEyeUpperOuter, rightEyeLowerOuter, rightEyeUpperInner, rightEyeLowerInner, mesh.IrisRight)

	lh, lv := GazeOffset(left)
	rh, rv := GazeOffset(right)
	gazeH = (lh + rh) / 2
	gazeV = (lv + rv) / 2

	ear = (EyeAspectRatio(left) + EyeAspectRatio(right)) / 2
	return gazeH, gazeV, ear
}
