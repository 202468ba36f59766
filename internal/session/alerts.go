package session

import (
	"sort"
	"strings"
	"time"

	"github.com/your-org/proctor/internal/models"
)

// Smoothing thresholds for the alert kinds whose triggers must survive a
// short temporal window before firing, preventing single-frame jitter from
// flooding downstream consumers.
const (
	gazeThreshold        = 15.0
	lookingDownThreshold = 0.20
	handNearThreshold    = 0.08

	gazeRequired   = 3
	gazeWindow     = 1 * time.Second
	noFaceRequired = 2
	noFaceWindow   = 1 * time.Second
	downRequired   = 3
	downWindow     = 1500 * time.Millisecond

	confNoFace      = 0.90
	confGaze        = 0.85
	confHandNear    = 0.60
	confLookingDown = 0.55
)

// deviceAlertKinds maps a detected device label to its associated alert
// kind. Labels with no entry (keyboard, mouse) still appear in
// devices_detected but never produce an alert — an explicit design
// decision, not an oversight.
var deviceAlertKinds = map[string]models.AlertKind{
	"cell phone": models.AlertDevicePhone,
	"laptop":     models.AlertDeviceLaptop,
	"monitor":    models.AlertDeviceMonitor,
}

// ClassifyResult is the output of Classify: the active alert set and the
// single behavior-status string.
type ClassifyResult struct {
	Active         []models.ActiveAlert
	AlertString    string
	Confidence     float64
	BehaviorStatus string
	Devices        []string
}

// Classify applies the alert thresholds and temporal smoothing rules to one
// frame's derived signals, recording candidate events into buf and reading
// back whichever smoothed kinds have survived their window. It also selects
// the single behavior-status string by strict priority.
func Classify(buf *Buffer, sig models.Signals, now time.Time) ClassifyResult {
	var active []models.ActiveAlert

	// multiple_faces — immediate.
	if sig.FaceCount > 1 {
		buf.AddAlert(models.AlertMultipleFaces, now)
		active = append(active, models.ActiveAlert{Kind: models.AlertMultipleFaces, Confidence: sig.MaxFaceScore})
	}

	// no_face_detected — required=2, window=1s.
	if sig.FaceCount == 0 {
		buf.AddAlert(models.AlertNoFaceDetected, now)
	}
	if buf.ShouldTrigger(models.AlertNoFaceDetected, noFaceRequired, noFaceWindow, now) {
		active = append(active, models.ActiveAlert{Kind: models.AlertNoFaceDetected, Confidence: confNoFace})
	}

	// gaze_off_screen — required=3, window=1s.
	if abs(sig.GazeHorizontal) > gazeThreshold || abs(sig.GazeVertical) > gazeThreshold {
		buf.AddAlert(models.AlertGazeOffScreen, now)
	}
	if buf.ShouldTrigger(models.AlertGazeOffScreen, gazeRequired, gazeWindow, now) {
		active = append(active, models.ActiveAlert{Kind: models.AlertGazeOffScreen, Confidence: confGaze})
	}

	// hand_near_face — immediate (visibility gating already folded into the
	// distance sentinel by the pose-signal analyzer).
	if sig.HandFaceDistanceLeft < handNearThreshold || sig.HandFaceDistanceRight < handNearThreshold {
		buf.AddAlert(models.AlertHandNearFace, now)
		active = append(active, models.ActiveAlert{Kind: models.AlertHandNearFace, Confidence: confHandNear})
	}

	// looking_down — required=3, window=1.5s.
	if sig.NoseShoulderDiff > lookingDownThreshold {
		buf.AddAlert(models.AlertLookingDown, now)
	}
	if buf.ShouldTrigger(models.AlertLookingDown, downRequired, downWindow, now) {
		active = append(active, models.ActiveAlert{Kind: models.AlertLookingDown, Confidence: confLookingDown})
	}

	// device_detected_* — immediate, one per distinct device label present.
	seenDeviceKind := make(map[models.AlertKind]bool)
	var devices []string
	seenDevice := make(map[string]bool)
	for _, d := range sig.Devices {
		if !seenDevice[d.Label] {
			seenDevice[d.Label] = true
			devices = append(devices, d.Label)
		}
		if kind, ok := deviceAlertKinds[d.Label]; ok && !seenDeviceKind[kind] {
			seenDeviceKind[kind] = true
			buf.AddAlert(kind, now)
			active = append(active, models.ActiveAlert{Kind: kind, Confidence: float64(d.Confidence)})
		}
	}
	sort.Strings(devices)

	alertString, confidence := formatAlerts(active)

	return ClassifyResult{
		Active:         active,
		AlertString:    alertString,
		Confidence:     confidence,
		BehaviorStatus: behaviorStatus(sig),
		Devices:        devices,
	}
}

// formatAlerts deduplicates active alert kinds, joins them for the outbound
// "alert" string, and picks the maximum confidence among them. This is a
// presentation concern only — the underlying model is the tagged Active
// slice, not the joined string.
func formatAlerts(active []models.ActiveAlert) (string, float64) {
	if len(active) == 0 {
		return "none", 1.0
	}

	seen := make(map[models.AlertKind]bool)
	var kinds []string
	maxConf := 0.0
	for _, a := range active {
		if !seen[a.Kind] {
			seen[a.Kind] = true
			kinds = append(kinds, string(a.Kind))
		}
		if a.Confidence > maxConf {
			maxConf = a.Confidence
		}
	}
	sort.Strings(kinds)
	return strings.Join(kinds, " AND "), maxConf
}

// behaviorStatus selects the single human-readable status string by strict
// priority order.
func behaviorStatus(sig models.Signals) string {
	switch {
	case sig.FaceCount == 0:
		return "No person detected"
	case sig.FaceCount > 1:
		return "Multiple people detected"
	case sig.EAR < 0.15:
		return "Eyes closed or blinking"
	case abs(sig.GazeHorizontal) > 35 || abs(sig.GazeVertical) > 35:
		return dominantGazeDirection(sig)
	case sig.NoseShoulderDiff > lookingDownThreshold:
		return "Looking down significantly"
	case abs(sig.GazeHorizontal) > 20 || abs(sig.GazeVertical) > 20:
		return "Slight gaze deviation"
	default:
		return "Focused on screen"
	}
}

// dominantGazeDirection names the extreme gaze direction: the axis with the
// larger magnitude wins, its sign selects left/right or up/down.
func dominantGazeDirection(sig models.Signals) string {
	if abs(sig.GazeHorizontal) >= abs(sig.GazeVertical) {
		if sig.GazeHorizontal > 0 {
			return "Looking right"
		}
		return "Looking left"
	}
	if sig.GazeVertical > 0 {
		return "Looking down"
	}
	return "Looking up"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
