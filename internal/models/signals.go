// Package models holds the core data-model entities shared across the
// detection pipeline: per-frame detector outputs, derived signals, and the
// alert/verdict types the orchestrator assembles.
package models

import "time"

// Point2D is a pixel-space landmark coordinate.
type Point2D struct {
	X float32
	Y float32
}

// Joint is one body-pose keypoint with its detection visibility.
type Joint struct {
	X          float32
	Y          float32
	Visibility float32
}

// FaceCount is the result of the face-presence/count detector.
type FaceCount struct {
	Count         int
	PerFaceScore  []float32
	// Landmarks holds the 5-point (eyes, nose, mouth corners) landmarks of
	// the highest-confidence face, in the pixel space of the frame size passed
	// to the detector (the downscaled detection frame in the orchestrator).
	// Empty when Count == 0.
	Landmarks [5]Point2D
	BBoxes    [][4]float32
}

// FaceMeshLandmarkCount is the canonical landmark count produced by the dense mesh
// adapter, including iris refinement.
const FaceMeshLandmarkCount = 478

// FaceMesh is the result of the dense facial-landmark estimator.
type FaceMesh struct {
	Landmarks [FaceMeshLandmarkCount]Point2D
	// IrisLeft/IrisRight are the iris-center coordinates, copied from the
	// fixed iris landmark indices of the model topology in use.
	IrisLeft  Point2D
	IrisRight Point2D
}

// PoseJointCount is the number of skeletal keypoints produced by the pose
// adapter.
const PoseJointCount = 33

// Pose is the result of the whole-body pose estimator.
type Pose struct {
	Joints [PoseJointCount]Joint
}

// Object is one class-labeled, confidence-scored detection from the
// generic object detector.
type Object struct {
	Label      string
	BBox       [4]float32
	Confidence float32
}

// Objects is the result of the generic object detector.
type Objects struct {
	Items []Object
}

// Availability marks whether a detector produced a usable result this call.
type Availability int

const (
	// Available means the adapter ran and the result (possibly empty of
	// detections) should be trusted.
	Available Availability = iota
	// Unavailable means the underlying model never loaded; the result is a
	// permanent, silent no-op for the lifetime of the process.
	Unavailable
	// Empty means the adapter ran but found nothing this frame.
	Empty
)

// Signals is the full set of derived scalars for one processed frame.
type Signals struct {
	FaceCount    int
	MaxFaceScore float64

	GazeHorizontal float64
	GazeVertical   float64
	EAR            float64

	HeadPitch float64
	HeadYaw   float64
	HeadRoll  float64

	HandFaceDistanceLeft  float64
	HandFaceDistanceRight float64
	NoseShoulderDiff      float64

	Devices []Object
}

// AlertKind is a tagged enumeration of cheat-signal categories.
type AlertKind string

const (
	AlertMultipleFaces  AlertKind = "multiple_faces"
	AlertNoFaceDetected AlertKind = "no_face_detected"
	AlertGazeOffScreen  AlertKind = "gaze_off_screen"
	AlertHandNearFace   AlertKind = "hand_near_face"
	AlertLookingDown    AlertKind = "looking_down"
	AlertDevicePhone    AlertKind = "device_detected_phone"
	AlertDeviceLaptop   AlertKind = "device_detected_laptop"
	AlertDeviceMonitor  AlertKind = "device_detected_monitor"
)

// ActiveAlert is one currently-firing alert kind with its confidence.
type ActiveAlert struct {
	Kind       AlertKind
	Confidence float64
}

// AlertEvent is a candidate alert appended to a session's temporal history,
// used by should_trigger to decide whether a noisy kind has survived its
// smoothing window.
type AlertEvent struct {
	Kind AlertKind
	At   time.Time
}

// Verdict is the outbound, per-frame response assembled by the orchestrator.
type Verdict struct {
	Alert           string   `json:"alert"`
	Confidence      float64  `json:"conf"`
	VizJPEGBase64   string   `json:"viz"`
	BehaviorStatus  string   `json:"behavior_status"`
	DevicesDetected []string `json:"devices_detected"`
	Details         Details  `json:"details"`
	Timestamp       float64  `json:"timestamp"`
}

// Details mirrors the "details" object of the outbound verdict schema.
type Details struct {
	NumFaces              int     `json:"num_faces"`
	GazeHorizontal        float64 `json:"gaze_horizontal"`
	GazeVertical          float64 `json:"gaze_vertical"`
	EAR                   float64 `json:"ear"`
	HeadPitch             float64 `json:"head_pitch"`
	HeadYaw               float64 `json:"head_yaw"`
	HeadRoll              float64 `json:"head_roll"`
	HandFaceDistanceLeft  float64 `json:"hand_face_distance_left"`
	HandFaceDistanceRight float64 `json:"hand_face_distance_right"`
	NoseShoulderDiff      float64 `json:"nose_shoulder_diff"`
	ProcessingTimeMs      float64 `json:"processing_time_ms"`
	FPS                   float64 `json:"fps"`
	AvgFPS                float64 `json:"avg_fps"`
	FrameCount            int     `json:"frame_count"`
	YOLOCached            bool    `json:"yolo_cached"`
	Skipped               bool    `json:"skipped"`
}

// InboundFrame is the inbound "{"frame": "..."}" message shape.
type InboundFrame struct {
	Frame string `json:"frame"`
}

// ErrorFrame is the outbound error message shape; it does not terminate the
// session loop.
type ErrorFrame struct {
	Error string `json:"error"`
}
