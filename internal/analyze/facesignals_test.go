package analyze

import (
	"testing"

	"github.com/your-org/proctor/internal/models"
)

func TestGazeAndEARNilMesh(t *testing.T) {
	h, v, ear := GazeAndEAR(nil)
	if h != 0 || v != 0 || ear != 0 {
		t.Errorf("expected zeros for nil mesh, got (%f,%f,%f)", h, v, ear)
	}
}

func TestGazeAndEARFrontalFace(t *testing.T) {
	var mesh models.FaceMesh
	mesh.Landmarks[leftEyeOuter] = models.Point2D{X: 100, Y: 50}
	mesh.Landmarks[leftEyeInner] = models.Point2D{X: 120, Y: 50}
	mesh.Landmarks[leftEyeUpperOuter] = models.Point2D{X: 105, Y: 47}
	mesh.Landmarks[leftEyeLowerOuter] = models.Point2D{X: 105, Y: 53}
	mesh.Landmarks[leftEyeUpperInner] = models.Point2D{X: 115, Y: 47}
	mesh.Landmarks[leftEyeLowerInner] = models.Point2D{X: 115, Y: 53}
	mesh.IrisLeft = models.Point2D{X: 110, Y: 50}

	mesh.Landmarks[rightEyeOuter] = models.Point2D{X: 220, Y: 50}
	mesh.Landmarks[rightEyeInner] = models.Point2D{X: 200, Y: 50}
	mesh.Landmarks[rightEyeUpperOuter] = models.Point2D{X: 215, Y: 47}
	mesh.Landmarks[rightEyeLowerOuter] = models.Point2D{X: 215, Y: 53}
	mesh.Landmarks[rightEyeUpperInner] = models.Point2D{X: 205, Y: 47}
	mesh.Landmarks[rightEyeLowerInner] = models.Point2D{X: 205, Y: 53}
	mesh.IrisRight = models.Point2D{X: 210, Y: 50}

	gazeH, gazeV, ear := GazeAndEAR(&mesh)
	if gazeH != 0 || gazeV != 0 {
		t.Errorf("expected a centered-iris frontal face to yield zero gaze, got (%f,%f)", gazeH, gazeV)
	}
	if ear <= 0 {
		t.Errorf("expected positive EAR for an open-eye mesh, got %f", ear)
	}
}
