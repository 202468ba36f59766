package analyze

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// headModel3D is the fixed 6-point 3D face model, in the canonical order:
// nose tip, chin, left eye outer corner, right eye outer corner, left mouth
// corner, right mouth corner. Units are arbitrary (consistent across the
// model) since only the recovered rotation is used. Configuration, not
// state — identical across every solve.
var headModel3D = [6][3]float64{
	{0, 0, 0},
	{0, -330, -65},
	{-225, 170, -135},
	{225, 170, -135},
	{-150, -150, -125},
	{150, -150, -125},
}

// HeadPose solves for (pitch, yaw, roll) in degrees given the 6 corresponding
// 2D landmarks (nose tip, chin, left eye outer, right eye outer, left mouth,
// right mouth) at original-resolution pixel coordinates, a camera matrix
// with focal length = frameW and principal point at the image center, and
// zero distortion. Returns (0, 0, 0) on any degenerate/solver failure.
func HeadPose(points2D [6][2]float64, frameW, frameH float64) (pitch, yaw, roll float64) {
	if frameW < 1 || frameH < 1 {
		return 0, 0, 0
	}

	focal := frameW
	cx, cy := frameW/2, frameH/2

	rot, err := solvePOSIT(headModel3D, points2D, focal, cx, cy)
	if err != nil {
		return 0, 0, 0
	}
	return rotationMatrixToEuler(rot)
}

// solvePOSIT recovers the rotation matrix of the object frame relative to
// the camera using Dementhon & Davis's POSIT algorithm: an iterative
// refinement of the scaled-orthographic projection assumption toward true
// perspective projection.
func solvePOSIT(model [6][3]float64, image [6][2]float64, focal, cx, cy float64) (*mat.Dense, error) {
	n := len(model)
	if n < 4 {
		return nil, errors.New("posit: need at least 4 points")
	}

	// Object vectors relative to the reference point (index 0).
	a := mat.NewDense(n-1, 3, nil)
	for i := 1; i < n; i++ {
		a.Set(i-1, 0, model[i][0]-model[0][0])
		a.Set(i-1, 1, model[i][1]-model[0][1])
		a.Set(i-1, 2, model[i][2]-model[0][2])
	}

	// Pseudoinverse of A: B = (A^T A)^-1 A^T, a fixed 3x(n-1) matrix.
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		return nil, err
	}
	var b mat.Dense
	b.Mul(&ataInv, a.T())

	x0, y0 := image[0][0]-cx, image[0][1]-cy

	eps := make([]float64, n-1)

	var iVec, jVec, kVec [3]float64
	var scale float64

	const maxIterations = 12
	for iter := 0; iter < maxIterations; iter++ {
		xPrime := mat.NewVecDense(n-1, nil)
		yPrime := mat.NewVecDense(n-1, nil)
		for i := 1; i < n; i++ {
			xi, yi := image[i][0]-cx, image[i][1]-cy
			xPrime.SetVec(i-1, xi*(1+eps[i-1])-x0)
			yPrime.SetVec(i-1, yi*(1+eps[i-1])-y0)
		}

		var iRaw, jRaw mat.VecDense
		iRaw.MulVec(&b, xPrime)
		jRaw.MulVec(&b, yPrime)

		iVec = [3]float64{iRaw.AtVec(0), iRaw.AtVec(1), iRaw.AtVec(2)}
		jVec = [3]float64{jRaw.AtVec(0), jRaw.AtVec(1), jRaw.AtVec(2)}

		iNorm := norm3(iVec)
		jNorm := norm3(jVec)
		if iNorm < 1e-9 || jNorm < 1e-9 {
			return nil, errors.New("posit: degenerate iteration")
		}

		scale = (iNorm + jNorm) / 2
		iUnit := scaleVec(iVec, 1/iNorm)
		jUnit := scaleVec(jVec, 1/jNorm)

		k := cross(iUnit, jUnit)
		kNorm := norm3(k)
		if kNorm < 1e-9 {
			return nil, errors.New("posit: degenerate cross product")
		}
		kVec = scaleVec(k, 1/kNorm)
		// Re-orthogonalize j against i and k.
		jUnit = cross(kVec, iUnit)

		z0 := focal / scale
		for i := 1; i < n; i++ {
			rel := [3]float64{model[i][0] - model[0][0], model[i][1] - model[0][1], model[i][2] - model[0][2]}
			eps[i-1] = dot3(rel, kVec) / z0
		}

		iVec, jVec = iUnit, jUnit
	}

	if scale == 0 {
		return nil, errors.New("posit: failed to converge")
	}

	rot := mat.NewDense(3, 3, []float64{
		iVec[0], iVec[1], iVec[2],
		jVec[0], jVec[1], jVec[2],
		kVec[0], kVec[1], kVec[2],
	})
	return rot, nil
}

// rotationMatrixToEuler extracts Tait-Bryan angles from a rotation matrix
// assembled as R = Rz(roll) * Ry(yaw) * Rx(pitch) (pitch about x, yaw about
// y, roll about z), the same decomposition conventionally used to turn a
// solvePnP rotation into a head-pose reading.
func rotationMatrixToEuler(r *mat.Dense) (pitch, yaw, roll float64) {
	r00, r10, r20 := r.At(0, 0), r.At(1, 0), r.At(2, 0)
	r21, r22 := r.At(2, 1), r.At(2, 2)
	r12, r11 := r.At(1, 2), r.At(1, 1)

	sy := math.Sqrt(r00*r00 + r10*r10)
	if sy < 1e-6 {
		pitch = math.Atan2(-r12, r11)
		yaw = math.Atan2(-r20, sy)
		roll = 0
	} else {
		pitch = math.Atan2(r21, r22)
		yaw = math.Atan2(-r20, sy)
		roll = math.Atan2(r10, r00)
	}

	const rad2deg = 180 / math.Pi
	return pitch * rad2deg, yaw * rad2deg, roll * rad2deg
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func scaleVec(v [3]float64, s float64) [3]float64 {
	return [3]float64{v[0] * s, v[1] * s, v[2] * s}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
