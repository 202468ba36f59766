package vision

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/models"
)

// irisLeftIndex and irisRightIndex are the fixed landmark indices carrying
// the refined iris centers in the 478-point mesh topology. Configuration,
// not state — identical across sessions.
const (
	irisLeftIndex  = 468
	irisRightIndex = 473
)

// FaceMeshDetector runs the dense facial-landmark estimator: a single
// input/output ONNX session producing 478 3D landmarks (iris-refined) per
// face, following the same session-lifecycle pattern as the other ONNX
// adapters in this package.
type FaceMeshDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	available    bool
	warnedOnce   bool
}

// NewFaceMeshDetector loads the face-mesh ONNX model. The model takes a
// single 192x192 RGB crop and emits 478 (x, y, z) landmarks normalized to
// the input size.
func NewFaceMeshDetector(modelPath string, opts *ort.SessionOptions) (*FaceMeshDetector, error) {
	inputW, inputH := 192, 192
	outDim := models.FaceMeshLandmarkCount * 3

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(outDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"landmarks"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create face mesh session: %w", err)
	}

	return &FaceMeshDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		available:    true,
	}, nil
}

func NewUnavailableFaceMeshDetector() *FaceMeshDetector {
	return &FaceMeshDetector{}
}

func (f *FaceMeshDetector) Name() string { return "facemesh" }

func (f *FaceMeshDetector) Availability() models.Availability {
	if !f.available {
		return models.Unavailable
	}
	return models.Available
}

func (f *FaceMeshDetector) InputSize() (int, int) {
	if f.inputW == 0 {
		return 192, 192
	}
	return f.inputW, f.inputH
}

// Detect runs the landmark regression on a face crop already resized to
// the model's input size and expressed as CHW-normalized float32.
// cropOrigin/cropSize map the crop back to the coordinate space the caller
// wants landmarks expressed in (the downscaled detection frame).
func (f *FaceMeshDetector) Detect(cropData []float32, cropOriginX, cropOriginY, cropW, cropH float32) (models.FaceMesh, error) {
	if !f.available {
		return models.FaceMesh{}, nil
	}

	inputSlice := f.inputTensor.GetData()
	copy(inputSlice, cropData)

	if err := f.session.Run(); err != nil {
		if !f.warnedOnce {
			slog.Warn("face mesh inference failed, treating as empty for this frame", "error", err)
			f.warnedOnce = true
		}
		return models.FaceMesh{}, err
	}

	raw := f.outputTensor.GetData()

	var mesh models.FaceMesh
	for i := 0; i < models.FaceMeshLandmarkCount; i++ {
		nx := raw[i*3+0] / float32(f.inputW)
		ny := raw[i*3+1] / float32(f.inputH)
		mesh.Landmarks[i] = models.Point2D{
			X: cropOriginX + nx*cropW,
			Y: cropOriginY + ny*cropH,
		}
	}
	mesh.IrisLeft = mesh.Landmarks[irisLeftIndex]
	mesh.IrisRight = mesh.Landmarks[irisRightIndex]

	return mesh, nil
}

func (f *FaceMeshDetector) Close() {
	if f.session != nil {
		f.session.Destroy()
	}
	if f.inputTensor != nil {
		f.inputTensor.Destroy()
	}
	if f.outputTensor != nil {
		f.outputTensor.Destroy()
	}
}
