package pipeline

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/your-org/proctor/internal/config"
	"github.com/your-org/proctor/internal/models"
	"github.com/your-org/proctor/internal/vision"
)

// Spy adapters satisfying the vision.*API interfaces, letting the
// orchestrator be exercised without any real ONNX model weights.

type spyFaceDetector struct {
	result models.FaceCount
	calls  int
}

func (s *spyFaceDetector) Name() string                     { return "face" }
func (s *spyFaceDetector) Availability() models.Availability { return models.Available }
func (s *spyFaceDetector) Close()                            {}
func (s *spyFaceDetector) InputSize() (int, int)             { return 32, 32 }
func (s *spyFaceDetector) Detect(_ []float32, _, _ int) (models.FaceCount, error) {
	s.calls++
	return s.result, nil
}

type spyMeshDetector struct {
	result models.FaceMesh
	calls  int
}

func (s *spyMeshDetector) Name() string                     { return "facemesh" }
func (s *spyMeshDetector) Availability() models.Availability { return models.Available }
func (s *spyMeshDetector) Close()                            {}
func (s *spyMeshDetector) InputSize() (int, int)             { return 16, 16 }
func (s *spyMeshDetector) Detect(_ []float32, _, _, _, _ float32) (models.FaceMesh, error) {
	s.calls++
	return s.result, nil
}

type spyPoseDetector struct {
	result models.Pose
	calls  int
}

func (s *spyPoseDetector) Name() string                     { return "pose" }
func (s *spyPoseDetector) Availability() models.Availability { return models.Available }
func (s *spyPoseDetector) Close()                            {}
func (s *spyPoseDetector) InputSize() (int, int)             { return 16, 16 }
func (s *spyPoseDetector) Detect(_ []float32) (models.Pose, error) {
	s.calls++
	return s.result, nil
}

type spyObjectDetector struct {
	result models.Objects
	calls  int
}

func (s *spyObjectDetector) Name() string                     { return "objects" }
func (s *spyObjectDetector) Availability() models.Availability { return models.Available }
func (s *spyObjectDetector) Close()                            {}
func (s *spyObjectDetector) InputSize() (int, int)             { return 16, 16 }
func (s *spyObjectDetector) Detect(_ []float32, _, _ int) (models.Objects, error) {
	s.calls++
	return s.result, nil
}

func newTestOrchestrator(face *spyFaceDetector, mesh *spyMeshDetector, pose *spyPoseDetector, obj *spyObjectDetector, visCfg config.VisionConfig) *Orchestrator {
	registry := &vision.ModelRegistry{Face: face, Mesh: mesh, Pose: pose, Objects: obj}
	sessCfg := config.SessionConfig{AlertRingSize: 15, AlertMaxAgeSec: 5, SignalHistory: 30, FPSHistory: 30}
	return NewOrchestrator(registry, visCfg, sessCfg, nil)
}

func blankFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
}

// TestProcessSkipIdempotence covers the "idempotence of skip" law: two
// consecutive calls on skipped frames yield identical skipped outputs and
// never invoke a detector.
func TestProcessSkipIdempotence(t *testing.T) {
	face := &spyFaceDetector{result: models.FaceCount{Count: 1}}
	mesh := &spyMeshDetector{}
	pose := &spyPoseDetector{}
	obj := &spyObjectDetector{}
	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}

	o := newTestOrchestrator(face, mesh, pose, obj, visCfg)
	o.CreateSession("s1")

	frame := blankFrame(128, 96)
	defer frame.Close()

	v1, err := o.Process("s1", frame, false)
	if err != nil {
		t.Fatalf("process frame 1: %v", err)
	}
	v2, err := o.Process("s1", frame, false)
	if err != nil {
		t.Fatalf("process frame 2: %v", err)
	}

	if !v1.Details.Skipped || !v2.Details.Skipped {
		t.Fatalf("expected both of the first two frames (modulo 3) to be skipped, got skipped=%v,%v", v1.Details.Skipped, v2.Details.Skipped)
	}
	if v1.VizJPEGBase64 != "" || v2.VizJPEGBase64 != "" {
		t.Error("expected no visualization on a skipped frame")
	}
	if face.calls != 0 || mesh.calls != 0 || pose.calls != 0 || obj.calls != 0 {
		t.Errorf("expected no detector invocations on skipped frames, got face=%d mesh=%d pose=%d obj=%d", face.calls, mesh.calls, pose.calls, obj.calls)
	}
}

// TestObjectDetectorCacheLaw covers the cache law: exactly N/10 object
// detector invocations occur across N processed frames (N a multiple of
// 10, frame_count starting at 1).
func TestObjectDetectorCacheLaw(t *testing.T) {
	face := &spyFaceDetector{}
	mesh := &spyMeshDetector{}
	pose := &spyPoseDetector{}
	obj := &spyObjectDetector{result: models.Objects{Items: []models.Object{{Label: "cell phone", Confidence: 0.9}}}}
	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}

	o := newTestOrchestrator(face, mesh, pose, obj, visCfg)
	o.CreateSession("s1")

	frame := blankFrame(128, 96)
	defer frame.Close()

	const n = 30
	for i := 0; i < n; i++ {
		if _, err := o.Process("s1", frame, true); err != nil {
			t.Fatalf("process frame %d: %v", i, err)
		}
	}

	if obj.calls != n/10 {
		t.Errorf("expected exactly %d object-detector invocations across %d processed frames, got %d", n/10, n, obj.calls)
	}
}

// TestDeviceDetectionStride covers the concrete scenario: with a phone in
// view, device_detected_phone first appears at frame_count%10==0 and
// persists through the cached frames that follow.
func TestDeviceDetectionStride(t *testing.T) {
	face := &spyFaceDetector{}
	mesh := &spyMeshDetector{}
	pose := &spyPoseDetector{}
	obj := &spyObjectDetector{result: models.Objects{Items: []models.Object{{Label: "cell phone", Confidence: 0.9}}}}
	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}

	o := newTestOrchestrator(face, mesh, pose, obj, visCfg)
	o.CreateSession("s1")

	frame := blankFrame(128, 96)
	defer frame.Close()

	for i := 1; i <= 30; i++ {
		v, err := o.Process("s1", frame, true)
		if err != nil {
			t.Fatalf("process frame %d: %v", i, err)
		}

		hasPhone := containsString(v.DevicesDetected, "cell phone")
		if i < 10 {
			if hasPhone {
				t.Errorf("frame %d: expected no device detection before the first stride frame", i)
			}
		} else if !hasPhone {
			t.Errorf("frame %d: expected device_detected_phone to be present from frame 10 onward", i)
		}
	}
}

// TestHandNearFaceImmediate covers the "phone held to ear" scenario: a
// near-face wrist at sufficient visibility fires hand_near_face on the
// first processed frame, no smoothing window required.
func TestHandNearFaceImmediate(t *testing.T) {
	face := &spyFaceDetector{result: models.FaceCount{Count: 1, PerFaceScore: []float32{0.9}, BBoxes: [][4]float32{{0, 0, 20, 20}}}}
	mesh := &spyMeshDetector{}

	var pose models.Pose
	pose.Joints[0] = models.Joint{X: 0.5, Y: 0.3, Visibility: 1.0}  // nose
	pose.Joints[15] = models.Joint{X: 0.53, Y: 0.32, Visibility: 0.8} // left wrist
	poseDet := &spyPoseDetector{result: pose}
	obj := &spyObjectDetector{}

	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}
	o := newTestOrchestrator(face, mesh, poseDet, obj, visCfg)
	o.CreateSession("s1")

	frame := blankFrame(128, 96)
	defer frame.Close()

	v, err := o.Process("s1", frame, true)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if v.Alert != string(models.AlertHandNearFace) {
		t.Errorf("expected hand_near_face on the first processed frame, got %q", v.Alert)
	}
	if v.Confidence != 0.60 {
		t.Errorf("expected conf 0.60, got %f", v.Confidence)
	}
}

// TestGazeOffScreenSmoothing covers the gaze-sweep scenario: the first two
// consecutive off-threshold frames must not trigger; the third does.
func TestGazeOffScreenSmoothing(t *testing.T) {
	var meshResult models.FaceMesh
	setGazeMesh(&meshResult, 25)

	face := &spyFaceDetector{result: models.FaceCount{Count: 1, PerFaceScore: []float32{0.9}, BBoxes: [][4]float32{{0, 0, 20, 20}}}}
	mesh := &spyMeshDetector{result: meshResult}
	pose := &spyPoseDetector{}
	obj := &spyObjectDetector{}

	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}
	o := newTestOrchestrator(face, mesh, pose, obj, visCfg)
	o.CreateSession("s1")

	frame := blankFrame(128, 96)
	defer frame.Close()

	v1, _ := o.Process("s1", frame, true)
	v2, _ := o.Process("s1", frame, true)
	v3, _ := o.Process("s1", frame, true)

	if v1.Alert != "none" || v2.Alert != "none" {
		t.Fatalf("expected the first two gaze-offset frames to omit the alert, got %q, %q", v1.Alert, v2.Alert)
	}
	if v3.Alert != string(models.AlertGazeOffScreen) {
		t.Errorf("expected the third consecutive frame to trigger gaze_off_screen, got %q", v3.Alert)
	}
}

// TestSessionIsolation covers session isolation: signals accumulated for
// one session must never influence another session's alerts.
func TestSessionIsolation(t *testing.T) {
	var meshResult models.FaceMesh
	setGazeMesh(&meshResult, 25)

	face := &spyFaceDetector{result: models.FaceCount{Count: 1, PerFaceScore: []float32{0.9}, BBoxes: [][4]float32{{0, 0, 20, 20}}}}
	mesh := &spyMeshDetector{result: meshResult}
	pose := &spyPoseDetector{}
	obj := &spyObjectDetector{}

	visCfg := config.VisionConfig{DownscaleWidth: 64, FrameSkipModulo: 3, ObjectStrideModulo: 10}
	o := newTestOrchestrator(face, mesh, pose, obj, visCfg)
	o.CreateSession("a")
	o.CreateSession("b")

	frame := blankFrame(128, 96)
	defer frame.Close()

	o.Process("a", frame, true)
	o.Process("a", frame, true)
	o.Process("a", frame, true) // session a now has 3 gaze events, alert active

	vb, err := o.Process("b", frame, true)
	if err != nil {
		t.Fatalf("process session b: %v", err)
	}
	if vb.Alert != "none" {
		t.Errorf("expected session b's first frame to be unaffected by session a's alert history, got %q", vb.Alert)
	}
}

func containsString(items []string, target string) bool {
	for _, s := range items {
		if s == target {
			return true
		}
	}
	return false
}

// setGazeMesh builds a mesh whose two eyes share the same geometry, with the
// iris shifted horizontally so the averaged gaze offset is offsetPercent on
// the horizontal axis and 0 on the vertical axis.
func setGazeMesh(mesh *models.FaceMesh, offsetPercent float64) {
	const (
		leftEyeOuter  = 263
		leftEyeInner  = 362
		rightEyeOuter = 33
		rightEyeInner = 133
	)

	irisX := float32(50 + offsetPercent*100/100)

	mesh.Landmarks[leftEyeOuter] = models.Point2D{X: 0, Y: 50}
	mesh.Landmarks[leftEyeInner] = models.Point2D{X: 100, Y: 50}
	mesh.IrisLeft = models.Point2D{X: irisX, Y: 50}

	mesh.Landmarks[rightEyeOuter] = models.Point2D{X: 0, Y: 50}
	mesh.Landmarks[rightEyeInner] = models.Point2D{X: 100, Y: 50}
	mesh.IrisRight = models.Point2D{X: irisX, Y: 50}
}
