package vision

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/models"
)

const objectMaxDetections = 100

// deviceClassNames maps the nano object detector's class indices to the
// label strings the alert classifier and outbound schema expect. Indices
// are fixed constants of the exported model, configuration not state.
var deviceClassNames = map[int]string{
	0: "cell phone",
	1: "laptop",
	2: "monitor",
	3: "keyboard",
	4: "mouse",
}

// ObjectDetector runs the generic object detector at 640-pixel inference
// size, dropping detections below its own confidence threshold, and a warmup call
// recommended at startup to avoid first-call latency spikes (§4.1).
// The exported model already performs NMS internally and emits a flat
// [1, maxDetections, 6] tensor of (x1, y1, x2, y2, confidence, class_id)
// rows, padded with zero-confidence rows.
type ObjectDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
	inputW       int
	inputH       int
	available    bool
	warnedOnce   bool
}

// NewObjectDetector loads the object-detection ONNX model.
func NewObjectDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*ObjectDetector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, objectMaxDetections, 6)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create object detector session: %w", err)
	}

	return &ObjectDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
		inputW:       inputW,
		inputH:       inputH,
		available:    true,
	}, nil
}

func NewUnavailableObjectDetector() *ObjectDetector {
	return &ObjectDetector{}
}

func (o *ObjectDetector) Name() string { return "objects" }

func (o *ObjectDetector) Availability() models.Availability {
	if !o.available {
		return models.Unavailable
	}
	return models.Available
}

func (o *ObjectDetector) InputSize() (int, int) {
	if o.inputW == 0 {
		return 640, 640
	}
	return o.inputW, o.inputH
}

// Warmup runs one inference on a zeroed input to pay model JIT/allocator
// cost before the first real frame arrives.
func (o *ObjectDetector) Warmup() {
	if !o.available {
		return
	}
	dummy := make([]float32, 3*o.inputH*o.inputW)
	if _, err := o.Detect(dummy, o.inputW, o.inputH); err != nil {
		slog.Warn("object detector warmup failed", "error", err)
	}
}

// Detect runs the object detector on a CHW-normalized, 640x640 image and
// returns only the device classes this pipeline cares about, scaled back
// to the original image's coordinate space.
func (o *ObjectDetector) Detect(imgData []float32, origW, origH int) (models.Objects, error) {
	if !o.available {
		return models.Objects{}, nil
	}

	inputSlice := o.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := o.session.Run(); err != nil {
		if !o.warnedOnce {
			slog.Warn("object detector inference failed, treating as empty for this frame", "error", err)
			o.warnedOnce = true
		}
		return models.Objects{}, err
	}

	raw := o.outputTensor.GetData()
	scaleW := float32(origW) / float32(o.inputW)
	scaleH := float32(origH) / float32(o.inputH)

	var out models.Objects
	for i := 0; i < objectMaxDetections; i++ {
		base := i * 6
		conf := raw[base+4]
		if conf < o.threshold {
			continue
		}
		classID := int(raw[base+5])
		label, known := deviceClassNames[classID]
		if !known {
			continue
		}
		out.Items = append(out.Items, models.Object{
			Label: label,
			BBox: [4]float32{
				raw[base+0] * scaleW,
				raw[base+1] * scaleH,
				raw[base+2] * scaleW,
				raw[base+3] * scaleH,
			},
			Confidence: conf,
		})
	}

	return out, nil
}

func (o *ObjectDetector) Close() {
	if o.session != nil {
		o.session.Destroy()
	}
	if o.inputTensor != nil {
		o.inputTensor.Destroy()
	}
	if o.outputTensor != nil {
		o.outputTensor.Destroy()
	}
}
