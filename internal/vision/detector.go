package vision

import "github.com/your-org/proctor/internal/models"

// Detector is the common surface every ONNX adapter exposes regardless of
// its detection task, grounded on the Name/IsHealthy/Detect/Close shape
// used to unify heterogeneous GPU/CPU detectors behind a single health and
// lifecycle contract. Availability plays the IsHealthy role here: a
// detector that never loaded reports Unavailable and is otherwise a
// silent no-op for the life of the process.
type Detector interface {
	Name() string
	Availability() models.Availability
	Close()
}

// FaceDetectorAPI is the face-presence/count detector's contract.
// Satisfied by *FaceDetector.
type FaceDetectorAPI interface {
	Detector
	InputSize() (int, int)
	Detect(imgData []float32, origW, origH int) (models.FaceCount, error)
}

// FaceMeshDetectorAPI is the dense landmark regressor's contract.
// Satisfied by *FaceMeshDetector.
type FaceMeshDetectorAPI interface {
	Detector
	InputSize() (int, int)
	Detect(cropData []float32, cropOriginX, cropOriginY, cropW, cropH float32) (models.FaceMesh, error)
}

// PoseDetectorAPI is the whole-body pose estimator's contract.
// Satisfied by *PoseDetector.
type PoseDetectorAPI interface {
	Detector
	InputSize() (int, int)
	Detect(frameData []float32) (models.Pose, error)
}

// ObjectDetectorAPI is the generic object detector's contract.
// Satisfied by *ObjectDetector.
type ObjectDetectorAPI interface {
	Detector
	InputSize() (int, int)
	Detect(imgData []float32, origW, origH int) (models.Objects, error)
}

var (
	_ FaceDetectorAPI     = (*FaceDetector)(nil)
	_ FaceMeshDetectorAPI = (*FaceMeshDetector)(nil)
	_ PoseDetectorAPI     = (*PoseDetector)(nil)
	_ ObjectDetectorAPI   = (*ObjectDetector)(nil)
)
