package egomotion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/crosswatch/internal/radar"
)

func TestMotionClassifierDebounce(t *testing.T) {
	m := NewMotionClassifier(0.06, 5)

	// Four qualifying samples are not enough; the fifth confirms.
	for i := 0; i < 4; i++ {
		assert.Equal(t, radar.MotionStraight, m.Classify(0.1))
	}
	assert.Equal(t, radar.MotionLeftTurn, m.Classify(0.1))
	assert.Equal(t, radar.MotionLeftTurn, m.Classify(0.1))
}

func TestMotionClassifierResetsOnSubThreshold(t *testing.T) {
	m := NewMotionClassifier(0.06, 3)

	m.Classify(0.1)
	m.Classify(0.1)
	assert.Equal(t, radar.MotionStraight, m.Classify(0.0))
	// The streak restarted; two more samples stay straight.
	m.Classify(0.1)
	assert.Equal(t, radar.MotionStraight, m.Classify(0.1))
	assert.Equal(t, radar.MotionLeftTurn, m.Classify(0.1))
}

func TestMotionClassifierRightTurn(t *testing.T) {
	m := NewMotionClassifier(0.06, 2)
	m.Classify(-0.2)
	assert.Equal(t, radar.MotionRightTurn, m.Classify(-0.2))
}

func TestMotionClassifierOpposingSamplesResetEachOther(t *testing.T) {
	m := NewMotionClassifier(0.06, 2)
	m.Classify(0.1)
	m.Classify(-0.1)
	// Neither direction has a streak of two.
	assert.Equal(t, radar.MotionStraight, m.Classify(0.1))
}

func TestMotionClassifierNaNIsStraight(t *testing.T) {
	m := NewMotionClassifier(0.06, 2)
	m.Classify(0.1)
	assert.Equal(t, radar.MotionStraight, m.Classify(math.NaN()))
	m.Classify(0.1)
	assert.Equal(t, radar.MotionLeftTurn, m.Classify(0.1))
}

func TestMotionClassifierDeterminism(t *testing.T) {
	history := []float64{0, 0.1, 0.1, 0.1, -0.2, -0.2, 0.05, 0.1, 0.1, 0.1}
	run := func() []radar.MotionState {
		m := NewMotionClassifier(0.06, 3)
		var out []radar.MotionState
		for _, w := range history {
			out = append(out, m.Classify(w))
		}
		return out
	}
	assert.Equal(t, run(), run())
}
