// Package analyze holds the stateless geometric analyzers that turn raw
// detector landmarks into the scalar signals the classifier reasons about.
// Every function here is a pure function of its inputs: no session state,
// no package-level state, safe to call concurrently from any number of
// sessions.
package analyze

import "math"

const degenerateWidth = 1e-6

// eyeLandmarks is the fixed index layout of one eye within the 478-point
// face mesh topology: outer corner, inner corner, then the four points used
// for the two vertical EAR pairs (upper-outer, lower-outer, upper-inner,
// lower-inner).
type eyeLandmarks struct {
	Outer      [2]float32
	Inner      [2]float32
	UpperOuter [2]float32
	LowerOuter [2]float32
	UpperInner [2]float32
	LowerInner [2]float32
	IrisCenter [2]float32
}

// GazeOffset computes the horizontal/vertical gaze offset for one eye: the
// ratio of (iris-center - eye-center) to eye-width, scaled x100. Eye-center
// is the midpoint of the inner/outer corners; eye-width is their Euclidean
// distance. Degenerate widths (<1e-6) yield zero for both axes.
func GazeOffset(e eyeLandmarks) (horizontal, vertical float64) {
	centerX := (e.Outer[0] + e.Inner[0]) / 2
	centerY := (e.Outer[1] + e.Inner[1]) / 2

	dx := float64(e.Outer[0] - e.Inner[0])
	dy := float64(e.Outer[1] - e.Inner[1])
	width := math.Sqrt(dx*dx + dy*dy)
	if width < degenerateWidth {
		return 0, 0
	}

	horizontal = float64(e.IrisCenter[0]-centerX) / width * 100
	vertical = float64(e.IrisCenter[1]-centerY) / width * 100
	return horizontal, vertical
}

// EyeAspectRatio computes EAR = (v1 + v2) / (2*h) over the 6 canonical
// per-eye landmarks. Zero if the horizontal span is degenerate.
func EyeAspectRatio(e eyeLandmarks) float64 {
	v1 := dist2D(e.UpperOuter, e.LowerOuter)
	v2 := dist2D(e.UpperInner, e.LowerInner)
	h := dist2D(e.Outer, e.Inner)
	if h < degenerateWidth {
		return 0
	}
	return (v1 + v2) / (2 * h)
}

func dist2D(a, b [2]float32) float64 {
	dx := float64(a[0] - b[0])
	dy := float64(a[1] - b[1])
	return math.Sqrt(dx*dx + dy*dy)
}
