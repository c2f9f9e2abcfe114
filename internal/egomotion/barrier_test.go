package egomotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBarrierParams() BarrierParams {
	return BarrierParams{
		YMin: 2, YMax: 50,
		DefaultXMin: -8, DefaultXMax: 8,
		SmoothingAlpha: 0.3,
	}
}

func TestBarrierStartsAtDefaults(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	c := b.Corridor()
	assert.Equal(t, -8.0, c.XMin)
	assert.Equal(t, 8.0, c.XMax)
}

func TestBarrierConvergesTowardStaticEdges(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	// Guardrails at x = -4 and x = +5 along the travel direction.
	xs := []float64{-4, -4, -4, 5, 5, 5}
	ys := []float64{10, 20, 30, 10, 20, 30}
	idx := []int{0, 1, 2, 3, 4, 5}

	var c = b.Corridor()
	for i := 0; i < 40; i++ {
		c = b.Update(xs, ys, idx)
	}
	assert.InDelta(t, -4.0, c.XMin, 0.05)
	assert.InDelta(t, 5.0, c.XMax, 0.05)
}

func TestBarrierSmoothingLimitsStep(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	c := b.Update([]float64{-2, 2}, []float64{10, 10}, []int{0, 1})
	// One pole at alpha 0.3: first step covers 30% of the gap.
	assert.InDelta(t, -8+0.3*(-2-(-8)), c.XMin, 1e-9)
	assert.InDelta(t, 8+0.3*(2-8), c.XMax, 1e-9)
}

func TestBarrierIgnoresPointsOutsideWindow(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	// All points beyond the longitudinal window: corridor stays put.
	c := b.Update([]float64{-2, 2}, []float64{60, 70}, []int{0, 1})
	assert.Equal(t, -8.0, c.XMin)
	assert.Equal(t, 8.0, c.XMax)
}

func TestBarrierMissingSideHoldsDefault(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	var c = b.Corridor()
	for i := 0; i < 40; i++ {
		c = b.Update([]float64{-3}, []float64{15}, []int{0})
	}
	assert.InDelta(t, -3.0, c.XMin, 0.05)
	assert.InDelta(t, 8.0, c.XMax, 1e-9)
}

func TestBarrierMedianResistsStray(t *testing.T) {
	b := NewBarrierDetector(testBarrierParams())
	// One stray static return near the centreline must not crush the
	// right edge.
	xs := []float64{5, 5, 5, 5, 0.5}
	ys := []float64{10, 15, 20, 25, 12}
	var c = b.Corridor()
	for i := 0; i < 40; i++ {
		c = b.Update(xs, ys, []int{0, 1, 2, 3, 4})
	}
	assert.InDelta(t, 5.0, c.XMax, 0.05)
}
