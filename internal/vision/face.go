package vision

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/models"
)

// faceDetection is one raw anchor-decoded face before assembly into a
// models.FaceCount.
type faceDetection struct {
	BBox       [4]float32
	Confidence float32
	Landmarks  [5][2]float32 // eyes, nose, mouth corners
}

// stride configuration for the RetinaFace-style anchor decode.
var faceStrides = []int{8, 16, 32}

const faceAnchorsPerStride = 2

// FaceDetector runs the face presence/count detector: a RetinaFace-family
// ONNX model producing bounding boxes, confidences and 5-point landmarks at
// three anchor strides. It keeps every face that survives NMS, with no cap
// on the count — multiple_faces detection depends on seeing all of them.
type FaceDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
	available     bool
	warnedOnce    bool
}

// NewFaceDetector loads the face detection ONNX model. A load failure is
// not returned as fatal: the caller gets a detector whose Availability is
// Unavailable and which silently no-ops for the rest of the process.
func NewFaceDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*FaceDetector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	type outputSpec struct {
		name  string
		shape ort.Shape
	}

	// Output shapes for strides 8, 16, 32 over a 640x640 input:
	// 12800 = (640/8)^2 * 2, 3200 = (640/16)^2 * 2, 800 = (640/32)^2 * 2
	outputs := []outputSpec{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
		{"454", ort.NewShape(12800, 10)},
		{"477", ort.NewShape(3200, 10)},
		{"500", ort.NewShape(800, 10)},
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %d (%s): %w", i, spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create face detector session: %w", err)
	}

	return &FaceDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
		available:     true,
	}, nil
}

// NewUnavailableFaceDetector returns a detector that reports Unavailable on
// every call, used when model loading failed at startup.
func NewUnavailableFaceDetector() *FaceDetector {
	return &FaceDetector{}
}

func (d *FaceDetector) Name() string { return "face" }

func (d *FaceDetector) Availability() models.Availability {
	if !d.available {
		return models.Unavailable
	}
	return models.Available
}

// Detect runs the full anchor decode + NMS on a preprocessed CHW image and
// returns the face count result in the pixel space of origW x origH, the
// frame size the caller passes in.
// imgData must be CHW-normalized at the detector's input size.
func (d *FaceDetector) Detect(imgData []float32, origW, origH int) (models.FaceCount, error) {
	if !d.available {
		return models.FaceCount{}, nil
	}

	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		if !d.warnedOnce {
			slog.Warn("face detector inference failed, treating as empty for this frame", "error", err)
			d.warnedOnce = true
		}
		return models.FaceCount{}, err
	}

	raw := d.parseDetections(origW, origH)
	raw = nmsFaces(raw, 0.4)

	out := models.FaceCount{
		Count:        len(raw),
		PerFaceScore: make([]float32, len(raw)),
	}
	best := -1
	for i, r := range raw {
		out.PerFaceScore[i] = r.Confidence
		out.BBoxes = append(out.BBoxes, r.BBox)
		if best == -1 || r.Confidence > raw[best].Confidence {
			best = i
		}
	}
	if best >= 0 {
		for i := 0; i < 5; i++ {
			out.Landmarks[i] = models.Point2D{X: raw[best].Landmarks[i][0], Y: raw[best].Landmarks[i][1]}
		}
	}

	return out, nil
}

func (d *FaceDetector) parseDetections(origW, origH int) []faceDetection {
	var detections []faceDetection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range faceStrides {
		scores := d.outputTensors[si].GetData()
		bboxes := d.outputTensors[si+3].GetData()
		landmarks := d.outputTensors[si+6].GetData()

		fmW := d.inputW / stride
		fmH := d.inputH / stride

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < faceAnchorsPerStride; a++ {
					score := scores[idx]

					if score >= d.threshold {
						anchorX := float32(cx) * float32(stride)
						anchorY := float32(cy) * float32(stride)
						st := float32(stride)

						x1 := (anchorX - bboxes[idx*4+0]*st) * scaleW
						y1 := (anchorY - bboxes[idx*4+1]*st) * scaleH
						x2 := (anchorX + bboxes[idx*4+2]*st) * scaleW
						y2 := (anchorY + bboxes[idx*4+3]*st) * scaleH

						x1 = clampF(x1, 0, float32(origW))
						y1 = clampF(y1, 0, float32(origH))
						x2 = clampF(x2, 0, float32(origW))
						y2 = clampF(y2, 0, float32(origH))

						var lm [5][2]float32
						for li := 0; li < 5; li++ {
							lm[li][0] = (anchorX + landmarks[idx*10+li*2]*st) * scaleW
							lm[li][1] = (anchorY + landmarks[idx*10+li*2+1]*st) * scaleH
						}

						detections = append(detections, faceDetection{
							BBox:       [4]float32{x1, y1, x2, y2},
							Confidence: score,
							Landmarks:  lm,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

// InputSize returns the model's expected input dimensions.
func (d *FaceDetector) InputSize() (int, int) {
	if d.inputW == 0 {
		return 640, 640
	}
	return d.inputW, d.inputH
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

func nmsFaces(detections []faceDetection, iouThreshold float32) []faceDetection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if iouBoxes(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []faceDetection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iouBoxes(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
