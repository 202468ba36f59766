package analyze

import "testing"

// project2D performs a simple perspective projection of a 3D model point
// under an identity rotation and a translation along the optical axis,
// replicating what a frontal, centered face would produce.
func project2D(p [3]float64, tz, focal, cx, cy float64) [2]float64 {
	z := p[2] + tz
	return [2]float64{focal*p[0]/z + cx, focal*p[1]/z + cy}
}

func TestHeadPoseFrontal(t *testing.T) {
	const frameW, frameH = 640.0, 480.0
	const focal = frameW
	const tz = 600.0
	cx, cy := frameW/2, frameH/2

	var points [6][2]float64
	for i, p := range headModel3D {
		points[i] = project2D(p, tz, focal, cx, cy)
	}

	pitch, yaw, roll := HeadPose(points, frameW, frameH)

	const tolerance = 5.0
	if abs(pitch) > tolerance {
		t.Errorf("expected near-zero pitch for a frontal pose, got %f", pitch)
	}
	if abs(yaw) > tolerance {
		t.Errorf("expected near-zero yaw for a frontal pose, got %f", yaw)
	}
	if abs(roll) > tolerance {
		t.Errorf("expected near-zero roll for a frontal pose, got %f", roll)
	}
}

func TestHeadPoseDegenerateFrame(t *testing.T) {
	var points [6][2]float64
	pitch, yaw, roll := HeadPose(points, 0, 0)
	if pitch != 0 || yaw != 0 || roll != 0 {
		t.Errorf("expected (0,0,0) for a degenerate frame size, got (%f,%f,%f)", pitch, yaw, roll)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
