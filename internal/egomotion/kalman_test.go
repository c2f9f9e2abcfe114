package egomotion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNoiseTemplates() (process, measurement [5]float64) {
	process = [5]float64{0.1, 0.1, 0.5, 0.5, 0.2}
	measurement = [5]float64{0.2, 5.0, 1.0, 1.0, 0.3}
	return
}

func TestFilterConvergesToConstantSpeed(t *testing.T) {
	f := NewFilter(testNoiseTemplates())
	for i := 0; i < 50; i++ {
		f.Predict(0.05)
		require.True(t, f.Correct(ChannelBusSpeed, 13.89, 1))
	}
	assert.InDelta(t, 13.89, f.Vx(), 0.1)
}

func TestCorrectRejectsNaNAndInf(t *testing.T) {
	f := NewFilter(testNoiseTemplates())
	f.Predict(0.05)
	before := f.Vx()

	assert.False(t, f.Correct(ChannelBusSpeed, math.NaN(), 1))
	assert.False(t, f.Correct(ChannelBusSpeed, math.Inf(1), 1))
	assert.Equal(t, before, f.Vx())
}

func TestNaNImmunityOverManyCycles(t *testing.T) {
	// Predict-only coasting for many cycles must keep state and
	// covariance finite with a non-negative diagonal.
	f := NewFilter(testNoiseTemplates())
	for i := 0; i < 200; i++ {
		f.Predict(0.05)
		f.Correct(ChannelBusSpeed, math.NaN(), 1)
		f.Correct(ChannelTorqueAccel, math.NaN(), 1)
	}

	for _, v := range []float64{f.Vx(), f.Vy(), f.Ax(), f.GradeBias()} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	for i, d := range f.CovarianceDiag() {
		assert.Falsef(t, math.IsNaN(d) || math.IsInf(d, 0), "covariance diag %d not finite: %v", i, d)
		assert.GreaterOrEqualf(t, d, 0.0, "covariance diag %d negative", i)
	}
}

func TestWidenedNoiseDampensImplausibleMeasurement(t *testing.T) {
	// The same measurement applied with a widened template must move the
	// state less.
	nominal := NewFilter(testNoiseTemplates())
	widened := NewFilter(testNoiseTemplates())
	nominal.Predict(0.05)
	widened.Predict(0.05)

	nominal.Correct(ChannelBusSpeed, 40.0, 1)
	widened.Correct(ChannelBusSpeed, 40.0, 25)
	assert.Less(t, widened.Vx(), nominal.Vx())
}

func TestPredictCouplesAccelerationIntoVelocity(t *testing.T) {
	f := NewFilter(testNoiseTemplates())
	// Drive the acceleration estimate up, then coast.
	for i := 0; i < 30; i++ {
		f.Predict(0.05)
		f.Correct(ChannelTorqueAccel, 2.0, 1)
	}
	vxBefore := f.Vx()
	f.Predict(0.5)
	assert.InDelta(t, vxBefore+f.Ax()*0.5, f.Vx(), 1e-9)
}
