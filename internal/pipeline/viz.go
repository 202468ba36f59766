package pipeline

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/your-org/proctor/internal/frameio"
	"github.com/your-org/proctor/internal/models"
	"github.com/your-org/proctor/internal/session"
)

var (
	colorGreen  = color.RGBA{R: 0, G: 200, B: 0, A: 0}
	colorRed    = color.RGBA{R: 220, G: 0, B: 0, A: 0}
	colorYellow = color.RGBA{R: 220, G: 200, B: 0, A: 0}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	colorCyan   = color.RGBA{R: 0, G: 200, B: 220, A: 0}
)

// skeletonEdges connects the subset of the 33-joint pose topology that
// renders a recognizable upper/lower-body stick figure.
var skeletonEdges = [][2]int{
	{11, 12}, // shoulders
	{11, 13}, {13, 15}, // left arm
	{12, 14}, {14, 16}, // right arm
	{11, 23}, {12, 24}, // torso
	{23, 24}, // hips
	{23, 25}, {25, 27}, // left leg
	{24, 26}, {26, 28}, // right leg
}

// renderVisualization draws the face box, iris dots, pose skeleton, device
// boxes, status banner, and FPS readout onto a copy of the
// original-resolution frame, then JPEG-encodes and base64-armors it.
func renderVisualization(
	original gocv.Mat,
	faces models.FaceCount,
	mesh models.FaceMesh,
	meshAvailable bool,
	pose models.Pose,
	poseAvailable bool,
	objects models.Objects,
	classified session.ClassifyResult,
	instantFPS float64,
	dsW, dsH int,
) (string, error) {
	canvas := original.Clone()
	defer canvas.Close()

	// faces.BBoxes and the iris landmarks come out of the mesh/face detectors
	// in downscaled-frame pixel space; rescale to the original frame before
	// drawing onto canvas. The pose skeleton and object boxes need no such
	// rescale: pose joints are normalized [0,1] and the object detector runs
	// directly on the original-resolution frame.
	scaleX := float32(original.Cols()) / float32(dsW)
	scaleY := float32(original.Rows()) / float32(dsH)

	faceColor := colorGreen
	if faces.Count != 1 {
		faceColor = colorRed
	}
	for i, box := range faces.BBoxes {
		score := float32(0)
		if i < len(faces.PerFaceScore) {
			score = faces.PerFaceScore[i]
		}
		scaledBox := [4]float32{box[0] * scaleX, box[1] * scaleY, box[2] * scaleX, box[3] * scaleY}
		drawBox(&canvas, scaledBox, faceColor, fmt.Sprintf("face %.2f", score))
	}

	if meshAvailable && faces.Count > 0 {
		drawDot(&canvas, scalePoint(mesh.IrisLeft, scaleX, scaleY), colorCyan)
		drawDot(&canvas, scalePoint(mesh.IrisRight, scaleX, scaleY), colorCyan)
	}

	if poseAvailable {
		drawSkeleton(&canvas, pose, original.Cols(), original.Rows())
	}

	for _, obj := range objects.Items {
		drawBox(&canvas, obj.BBox, colorYellow, fmt.Sprintf("%s %.2f", obj.Label, obj.Confidence))
	}

	bannerColor := colorGreen
	if classified.AlertString != "none" {
		bannerColor = colorRed
	}
	bannerText := fmt.Sprintf("%s | %s", classified.AlertString, classified.BehaviorStatus)
	gocv.PutText(&canvas, bannerText, image.Pt(10, 25), gocv.FontHersheySimplex, 0.6, bannerColor, 2)

	fpsText := fmt.Sprintf("%.1f fps", instantFPS)
	gocv.PutText(&canvas, fpsText, image.Pt(original.Cols()-140, original.Rows()-15), gocv.FontHersheySimplex, 0.6, colorWhite, 2)

	jpegBytes, err := frameio.EncodeJPEG(canvas, 85)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(jpegBytes), nil
}

func drawBox(mat *gocv.Mat, box [4]float32, c color.RGBA, label string) {
	rect := image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3]))
	gocv.Rectangle(mat, rect, c, 2)
	if label != "" {
		gocv.PutText(mat, label, image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, c, 1)
	}
}

func drawDot(mat *gocv.Mat, p models.Point2D, c color.RGBA) {
	gocv.Circle(mat, image.Pt(int(p.X), int(p.Y)), 2, c, -1)
}

func scalePoint(p models.Point2D, scaleX, scaleY float32) models.Point2D {
	return models.Point2D{X: p.X * scaleX, Y: p.Y * scaleY}
}

func drawSkeleton(mat *gocv.Mat, pose models.Pose, frameW, frameH int) {
	for _, edge := range skeletonEdges {
		a := pose.Joints[edge[0]]
		b := pose.Joints[edge[1]]
		if a.Visibility < 0.5 || b.Visibility < 0.5 {
			continue
		}
		pa := image.Pt(int(a.X*float32(frameW)), int(a.Y*float32(frameH)))
		pb := image.Pt(int(b.X*float32(frameW)), int(b.Y*float32(frameH)))
		gocv.Line(mat, pa, pb, colorCyan, 2)
	}
}
