package vision

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/models"
)

// PoseDetector runs the whole-body pose estimator: a single input/output
// ONNX session producing 33 skeletal keypoints with per-joint visibility,
// the lightest model tier. Each Detect call processes one frame on its own;
// no tracking across frames is done, here or upstream of this adapter.
type PoseDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	available    bool
	warnedOnce   bool
}

// NewPoseDetector loads the pose ONNX model. Input is a 256x256 RGB frame;
// output is [1, 33*4] = (x, y, z, visibility) per joint, normalized to the
// input size.
func NewPoseDetector(modelPath string, opts *ort.SessionOptions) (*PoseDetector, error) {
	inputW, inputH := 256, 256
	outDim := models.PoseJointCount * 4

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
		[]string{"data"},
		[]string{"joints"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create pose session: %w", err)
	}

	return &PoseDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		available:    true,
	}, nil
}

func NewUnavailablePoseDetector() *PoseDetector {
	return &PoseDetector{}
}

func (p *PoseDetector) Name() string { return "pose" }

func (p *PoseDetector) Availability() models.Availability {
	if !p.available {
		return models.Unavailable
	}
	return models.Available
}

func (p *PoseDetector) InputSize() (int, int) {
	if p.inputW == 0 {
		return 256, 256
	}
	return p.inputW, p.inputH
}

// Detect runs pose estimation on a CHW-normalized frame already resized to
// the model's input size. Coordinates are returned normalized to [0, 1]
// against the frame that was fed in (the downscaled detection frame).
func (p *PoseDetector) Detect(frameData []float32) (models.Pose, error) {
	if !p.available {
		return models.Pose{}, nil
	}

	inputSlice := p.inputTensor.GetData()
	copy(inputSlice, frameData)

	if err := p.session.Run(); err != nil {
		if !p.warnedOnce {
			slog.Warn("pose inference failed, treating as empty for this frame", "error", err)
			p.warnedOnce = true
		}
		return models.Pose{}, err
	}

	raw := p.outputTensor.GetData()

	var pose models.Pose
	for i := 0; i < models.PoseJointCount; i++ {
		pose.Joints[i] = models.Joint{
			X:          raw[i*4+0] / float32(p.inputW),
			Y:          raw[i*4+1] / float32(p.inputH),
			Visibility: raw[i*4+3],
		}
	}

	return pose, nil
}

func (p *PoseDetector) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
}
