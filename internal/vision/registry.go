package vision

import (
	"log/slog"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/config"
)

// ModelRegistry is the process-wide, read-only set of detector models,
// initialized once at engine start and handed to every session as a shared
// capability set (§9 design note: global singletons become a registry
// instance instead of package-level state). Each model degrades to an
// Unavailable stub on load failure rather than aborting startup.
type ModelRegistry struct {
	Face    FaceDetectorAPI
	Mesh    FaceMeshDetectorAPI
	Pose    PoseDetectorAPI
	Objects ObjectDetectorAPI
}

// NewModelRegistry loads all four detector models. ONNX Runtime itself
// must already be initialized (ort.InitializeEnvironment) before this is
// called.
func NewModelRegistry(cfg config.VisionConfig) *ModelRegistry {
	newSessionOptions := func() *ort.SessionOptions {
		opts, err := ort.NewSessionOptions()
		if err != nil {
			slog.Warn("create session options failed, using ORT defaults", "error", err)
			return nil
		}
		if cfg.IntraOpThreads > 0 {
			_ = opts.SetIntraOpNumThreads(cfg.IntraOpThreads)
		}
		if cfg.InterOpThreads > 0 {
			_ = opts.SetInterOpNumThreads(cfg.InterOpThreads)
		}
		return opts
	}

	reg := &ModelRegistry{}

	facePath := filepath.Join(cfg.ModelsDir, "face_detect.onnx")
	faceOpts := newSessionOptions()
	det, err := NewFaceDetector(facePath, float32(cfg.FaceThreshold), faceOpts)
	if faceOpts != nil {
		faceOpts.Destroy()
	}
	if err != nil {
		slog.Warn("face detector unavailable, face-presence alerts disabled", "path", facePath, "error", err)
		reg.Face = NewUnavailableFaceDetector()
	} else {
		reg.Face = det
		slog.Info("face detector ready", "path", facePath)
	}

	meshPath := filepath.Join(cfg.ModelsDir, "face_mesh.onnx")
	meshOpts := newSessionOptions()
	mesh, err := NewFaceMeshDetector(meshPath, meshOpts)
	if meshOpts != nil {
		meshOpts.Destroy()
	}
	if err != nil {
		slog.Warn("face mesh unavailable, gaze/EAR/head-pose signals disabled", "path", meshPath, "error", err)
		reg.Mesh = NewUnavailableFaceMeshDetector()
	} else {
		reg.Mesh = mesh
		slog.Info("face mesh detector ready", "path", meshPath)
	}

	posePath := filepath.Join(cfg.ModelsDir, "pose.onnx")
	poseOpts := newSessionOptions()
	pose, err := NewPoseDetector(posePath, poseOpts)
	if poseOpts != nil {
		poseOpts.Destroy()
	}
	if err != nil {
		slog.Warn("pose detector unavailable, hand/torso signals disabled", "path", posePath, "error", err)
		reg.Pose = NewUnavailablePoseDetector()
	} else {
		reg.Pose = pose
		slog.Info("pose detector ready", "path", posePath)
	}

	objPath := filepath.Join(cfg.ModelsDir, "objects_nano.onnx")
	objOpts := newSessionOptions()
	obj, err := NewObjectDetector(objPath, float32(cfg.ObjectThreshold), objOpts)
	if objOpts != nil {
		objOpts.Destroy()
	}
	if err != nil {
		slog.Warn("object detector unavailable, device-detection alerts permanently disabled for this process", "path", objPath, "error", err)
		reg.Objects = NewUnavailableObjectDetector()
	} else {
		obj.Warmup()
		reg.Objects = obj
		slog.Info("object detector ready and warmed up", "path", objPath)
	}

	return reg
}

// Close releases all loaded ONNX sessions.
func (r *ModelRegistry) Close() {
	if r.Face != nil {
		r.Face.Close()
	}
	if r.Mesh != nil {
		r.Mesh.Close()
	}
	if r.Pose != nil {
		r.Pose.Close()
	}
	if r.Objects != nil {
		r.Objects.Close()
	}
}
