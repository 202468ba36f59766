package session

import (
	"testing"
	"time"

	"github.com/your-org/proctor/internal/models"
)

func TestClassifyCleanFrame(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	// 999 is the analyzer's distance for a wrist that was not observed.
	sig := models.Signals{FaceCount: 1, EAR: 0.3, HandFaceDistanceLeft: 999.0, HandFaceDistanceRight: 999.0}

	result := Classify(buf, sig, time.Now())
	if result.AlertString != "none" || result.Confidence != 1.0 {
		t.Errorf("expected no alert for a clean frame, got %q conf=%f", result.AlertString, result.Confidence)
	}
	if result.BehaviorStatus != "Focused on screen" {
		t.Errorf("expected focused status, got %q", result.BehaviorStatus)
	}
}

func TestClassifyMultipleFacesImmediate(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{FaceCount: 2, MaxFaceScore: 0.97, HandFaceDistanceLeft: 999.0, HandFaceDistanceRight: 999.0}

	result := Classify(buf, sig, time.Now())
	if result.AlertString != string(models.AlertMultipleFaces) {
		t.Errorf("expected multiple_faces alert, got %q", result.AlertString)
	}
	if result.Confidence != 0.97 {
		t.Errorf("expected conf 0.97, got %f", result.Confidence)
	}
	if result.BehaviorStatus != "Multiple people detected" {
		t.Errorf("expected multiple-people status, got %q", result.BehaviorStatus)
	}
}

func TestClassifyGazeOffScreenRequiresThreeFrames(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{FaceCount: 1, GazeHorizontal: 25, HandFaceDistanceLeft: 999.0, HandFaceDistanceRight: 999.0}
	base := time.Now()

	r1 := Classify(buf, sig, base)
	r2 := Classify(buf, sig, base.Add(100*time.Millisecond))
	if r1.AlertString != "none" || r2.AlertString != "none" {
		t.Fatal("expected the first two consecutive gaze-offset frames not to trigger the alert")
	}

	r3 := Classify(buf, sig, base.Add(200*time.Millisecond))
	if r3.AlertString != string(models.AlertGazeOffScreen) {
		t.Errorf("expected the third consecutive frame within 1s to trigger gaze_off_screen, got %q", r3.AlertString)
	}
}

func TestClassifyHandNearFaceImmediate(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{FaceCount: 1, HandFaceDistanceLeft: 0.05, HandFaceDistanceRight: 999.0}

	result := Classify(buf, sig, time.Now())
	if result.AlertString != string(models.AlertHandNearFace) {
		t.Errorf("expected hand_near_face to fire immediately, got %q", result.AlertString)
	}
	if result.Confidence != confHandNear {
		t.Errorf("expected conf %f, got %f", confHandNear, result.Confidence)
	}
}

func TestClassifyLookingDownRequiresThreeFrames(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{FaceCount: 1, NoseShoulderDiff: 0.25, HandFaceDistanceLeft: 999.0, HandFaceDistanceRight: 999.0}
	base := time.Now()

	Classify(buf, sig, base)
	Classify(buf, sig, base.Add(200*time.Millisecond))
	r3 := Classify(buf, sig, base.Add(400*time.Millisecond))

	if r3.AlertString != string(models.AlertLookingDown) {
		t.Errorf("expected looking_down to trigger on the third frame within 1.5s, got %q", r3.AlertString)
	}
}

func TestClassifyDeviceDetectedExcludesKeyboardMouse(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{
		FaceCount:             1,
		HandFaceDistanceLeft:  999.0,
		HandFaceDistanceRight: 999.0,
		Devices: []models.Object{
			{Label: "keyboard", Confidence: 0.9},
			{Label: "mouse", Confidence: 0.9},
			{Label: "cell phone", Confidence: 0.8},
		},
	}

	result := Classify(buf, sig, time.Now())
	if result.AlertString != string(models.AlertDevicePhone) {
		t.Errorf("expected only device_detected_phone to fire, got %q", result.AlertString)
	}
	if len(result.Devices) != 3 {
		t.Errorf("expected all 3 labels to appear in devices_detected, got %v", result.Devices)
	}
}

func TestClassifyNoFaceRequiresTwoFrames(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	sig := models.Signals{FaceCount: 0, HandFaceDistanceLeft: 999.0, HandFaceDistanceRight: 999.0}
	base := time.Now()

	r1 := Classify(buf, sig, base)
	if r1.AlertString != "none" {
		t.Errorf("expected the first no-face frame not to trigger yet, got %q", r1.AlertString)
	}

	r2 := Classify(buf, sig, base.Add(200*time.Millisecond))
	if r2.AlertString != string(models.AlertNoFaceDetected) {
		t.Errorf("expected the second consecutive no-face frame within 1s to trigger, got %q", r2.AlertString)
	}
}

func TestBehaviorStatusPriorityEyesClosedOverGaze(t *testing.T) {
	sig := models.Signals{FaceCount: 1, EAR: 0.1, GazeHorizontal: 40}
	if status := behaviorStatus(sig); status != "Eyes closed or blinking" {
		t.Errorf("expected eyes-closed to take priority over gaze deviation, got %q", status)
	}
}

func TestFormatAlertsJoinsAndDedups(t *testing.T) {
	active := []models.ActiveAlert{
		{Kind: models.AlertGazeOffScreen, Confidence: 0.85},
		{Kind: models.AlertGazeOffScreen, Confidence: 0.85},
		{Kind: models.AlertHandNearFace, Confidence: 0.60},
	}
	s, conf := formatAlerts(active)
	if s != "gaze_off_screen AND hand_near_face" {
		t.Errorf("expected deduplicated, sorted, joined string, got %q", s)
	}
	if conf != 0.85 {
		t.Errorf("expected max confidence 0.85, got %f", conf)
	}
}
