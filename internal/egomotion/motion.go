package egomotion

import (
	"math"

	"github.com/banshee-data/crosswatch/internal/radar"
)

// MotionClassifier debounces yaw rate into a straight/left/right state.
// Left and right candidates are counted independently; a turn is
// reported only after the configured number of consecutive qualifying
// samples, and any sample back under the threshold resets both
// counters. Given identical yaw-rate history the output is identical.
type MotionClassifier struct {
	yawThreshold   float64
	confirmSamples int

	leftCount  int
	rightCount int
}

// NewMotionClassifier builds a classifier in the straight state.
func NewMotionClassifier(yawThreshold float64, confirmSamples int) *MotionClassifier {
	return &MotionClassifier{yawThreshold: yawThreshold, confirmSamples: confirmSamples}
}

// Classify ingests one yaw-rate sample (rad/s, positive = left) and
// returns the debounced motion state. A NaN sample counts as straight.
func (m *MotionClassifier) Classify(yawRate float64) radar.MotionState {
	switch {
	case math.IsNaN(yawRate) || math.Abs(yawRate) <= m.yawThreshold:
		m.leftCount = 0
		m.rightCount = 0
		return radar.MotionStraight
	case yawRate > 0:
		m.leftCount++
		m.rightCount = 0
		if m.leftCount >= m.confirmSamples {
			return radar.MotionLeftTurn
		}
	default:
		m.rightCount++
		m.leftCount = 0
		if m.rightCount >= m.confirmSamples {
			return radar.MotionRightTurn
		}
	}
	return radar.MotionStraight
}

// Reset returns the classifier to the straight state.
func (m *MotionClassifier) Reset() {
	m.leftCount = 0
	m.rightCount = 0
}
