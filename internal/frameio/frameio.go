// Package frameio wraps the OpenCV (gocv) primitives used to decode
// inbound JPEG frames, downscale them for the lightweight detectors, and
// encode the annotated visualization back to JPEG. Centralizing these
// calls keeps gocv.Mat lifetime management (explicit Close()) out of the
// orchestrator's control flow.
package frameio

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a decode produces an empty Mat — a corrupt
// or truncated JPEG payload.
var ErrEmptyFrame = errors.New("frameio: decoded frame is empty")

// Decode decodes a JPEG byte buffer into a BGR gocv.Mat. The caller owns
// the returned Mat and must Close() it.
func Decode(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), err
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrEmptyFrame
	}
	return mat, nil
}

// ResizeToWidth bilinearly resamples src to the given target width,
// preserving aspect ratio. The caller owns the returned Mat.
func ResizeToWidth(src gocv.Mat, targetWidth int) gocv.Mat {
	srcW := src.Cols()
	srcH := src.Rows()
	if srcW == 0 || targetWidth <= 0 {
		return src.Clone()
	}

	scale := float64(targetWidth) / float64(srcW)
	targetHeight := int(float64(srcH)*scale + 0.5)
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(targetWidth, targetHeight), 0, 0, gocv.InterpolationLinear)
	return dst
}

// ResizeTo resizes src to an exact width/height (used for detector input
// tensors, which require a fixed shape regardless of aspect ratio).
func ResizeTo(src gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst
}

// ToRGB converts a BGR Mat (gocv/OpenCV's native order) to RGB. The caller
// owns the returned Mat.
func ToRGB(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToRGB)
	return dst
}

// ToCHWFloat32 converts an HWC uint8 RGB Mat into a CHW float32 slice
// normalized as (pixel - mean) / std per channel, the layout every ONNX
// adapter in this pipeline expects.
func ToCHWFloat32(mat gocv.Mat, mean, std [3]float32) []float32 {
	w := mat.Cols()
	h := mat.Rows()
	planeSize := w * h
	out := make([]float32, 3*planeSize)

	raw := mat.ToBytes()
	channels := mat.Channels()
	if channels < 3 {
		return out
	}

	for y := 0; y < h; y++ {
		rowOff := y * w * channels
		for x := 0; x < w; x++ {
			off := rowOff + x*channels
			idx := y*w + x
			out[idx] = (float32(raw[off+0]) - mean[0]) / std[0]
			out[planeSize+idx] = (float32(raw[off+1]) - mean[1]) / std[1]
			out[2*planeSize+idx] = (float32(raw[off+2]) - mean[2]) / std[2]
		}
	}
	return out
}

// EncodeJPEG encodes mat as a JPEG byte buffer at the given quality (0-100).
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
