package analyze

import (
	"math"

	"github.com/your-org/proctor/internal/models"
)

// Fixed joint indices within the 33-point pose topology, identical across
// sessions — configuration, not state.
const (
	jointNose          = 0
	jointLeftShoulder  = 11
	jointRightShoulder = 12
	jointLeftWrist     = 15
	jointRightWrist    = 16

	minJointVisibility = 0.5
)

// notObserved is reported for a side whose wrist visibility falls below the
// threshold: a distance no "near" comparison (`< 0.08`) can ever satisfy, so
// an unobserved side never spuriously triggers hand_near_face.
const notObserved = 999.0

// HandFaceDistances returns the normalized nose-to-wrist Euclidean distance
// for each side. A side with wrist visibility below the threshold
// contributes no signal and reports notObserved.
func HandFaceDistances(pose *models.Pose) (left, right float64) {
	if pose == nil {
		return notObserved, notObserved
	}

	nose := pose.Joints[jointNose]

	left = notObserved
	if lw := pose.Joints[jointLeftWrist]; lw.Visibility >= minJointVisibility {
		left = jointDist(nose, lw)
	}

	right = notObserved
	if rw := pose.Joints[jointRightWrist]; rw.Visibility >= minJointVisibility {
		right = jointDist(nose, rw)
	}

	return left, right
}

// NoseShoulderDiff returns nose-y minus the mean shoulder-y. Shoulders with
// visibility below the threshold are excluded from the mean; if neither
// shoulder is visible, 0 is returned (no signal).
func NoseShoulderDiff(pose *models.Pose) float64 {
	if pose == nil {
		return 0
	}

	nose := pose.Joints[jointNose]

	var sumY float64
	var count int
	if ls := pose.Joints[jointLeftShoulder]; ls.Visibility >= minJointVisibility {
		sumY += float64(ls.Y)
		count++
	}
	if rs := pose.Joints[jointRightShoulder]; rs.Visibility >= minJointVisibility {
		sumY += float64(rs.Y)
		count++
	}
	if count == 0 {
		return 0
	}

	return float64(nose.Y) - sumY/float64(count)
}

func jointDist(a, b models.Joint) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
