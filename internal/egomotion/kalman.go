package egomotion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// State vector indices for the ego filter: longitudinal and lateral
// velocity, their accelerations, and a road-grade acceleration bias.
const (
	stateVx = iota
	stateVy
	stateAx
	stateAy
	stateGradeBias
	stateDim
)

// Measurement channels correctable per cycle. Each channel is a scalar
// observation of one state component, corrected independently so an
// unavailable channel is simply skipped that cycle.
const (
	ChannelBusSpeed = iota
	ChannelRansacVx
	ChannelRansacVy
	ChannelTorqueAccel
	ChannelGradeBias
	numChannels
)

// Filter is the ego-motion Kalman filter. State and covariance persist
// across cycles; construction is the only reset point.
type Filter struct {
	x *mat.VecDense // [vx, vy, ax, ay, gradeBias]
	p *mat.Dense    // 5x5 covariance
	q []float64     // process noise diagonal
	r []float64     // per-channel measurement variance template
}

var initialCovariance = []float64{10.0, 10.0, 5.0, 5.0, 1.0}

// NewFilter builds a filter from the configured noise templates. Both
// templates are diagonal: process noise per state component, measurement
// variance per channel.
func NewFilter(processNoise, measurementNoise [5]float64) *Filter {
	p := mat.NewDense(stateDim, stateDim, nil)
	for i, v := range initialCovariance {
		p.Set(i, i, v)
	}
	return &Filter{
		x: mat.NewVecDense(stateDim, nil),
		p: p,
		q: processNoise[:],
		r: measurementNoise[:],
	}
}

// Predict advances the state by dt under a constant-acceleration model
// and inflates the covariance by the process noise.
func (f *Filter) Predict(dt float64) {
	// F couples velocity to acceleration; the grade bias is a random walk.
	fm := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		fm.Set(i, i, 1)
	}
	fm.Set(stateVx, stateAx, dt)
	fm.Set(stateVy, stateAy, dt)

	var nx mat.VecDense
	nx.MulVec(fm, f.x)
	f.x.CopyVec(&nx)

	var fp, fpft mat.Dense
	fp.Mul(fm, f.p)
	fpft.Mul(&fp, fm.T())
	f.p.Copy(&fpft)
	for i, q := range f.q {
		f.p.Set(i, i, f.p.At(i, i)+q)
	}
	f.mustBeFinite("predict")
}

// Correct applies one scalar measurement on the given channel. NaN and
// Inf measurements are rejected without touching the state; the caller
// decides whether the skip is worth logging. noiseScale widens the
// channel's template variance (1 = nominal).
//
// Returns false when the measurement was rejected.
func (f *Filter) Correct(channel int, z, noiseScale float64) bool {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return false
	}
	k := channelState(channel)
	r := f.r[channel] * noiseScale

	y := z - f.x.AtVec(k)
	s := f.p.At(k, k) + r
	if s <= 0 || math.IsNaN(s) {
		panic(fmt.Sprintf("egomotion: non-positive innovation variance %v on channel %d", s, channel))
	}

	// Scalar gain column K = P[:,k] / S, then x += K*y, P -= K * P[k,:].
	gain := make([]float64, stateDim)
	for i := 0; i < stateDim; i++ {
		gain[i] = f.p.At(i, k) / s
	}
	for i := 0; i < stateDim; i++ {
		f.x.SetVec(i, f.x.AtVec(i)+gain[i]*y)
	}
	rowK := make([]float64, stateDim)
	for j := 0; j < stateDim; j++ {
		rowK[j] = f.p.At(k, j)
	}
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			f.p.Set(i, j, f.p.At(i, j)-gain[i]*rowK[j])
		}
	}
	f.mustBeFinite("correct")
	return true
}

// channelState maps a measurement channel to the state index it observes.
func channelState(channel int) int {
	switch channel {
	case ChannelBusSpeed, ChannelRansacVx:
		return stateVx
	case ChannelRansacVy:
		return stateVy
	case ChannelTorqueAccel:
		return stateAx
	case ChannelGradeBias:
		return stateGradeBias
	default:
		panic(fmt.Sprintf("egomotion: unknown measurement channel %d", channel))
	}
}

// Vx returns the filtered longitudinal velocity.
func (f *Filter) Vx() float64 { return f.x.AtVec(stateVx) }

// Vy returns the filtered lateral velocity.
func (f *Filter) Vy() float64 { return f.x.AtVec(stateVy) }

// Ax returns the filtered longitudinal acceleration.
func (f *Filter) Ax() float64 { return f.x.AtVec(stateAx) }

// GradeBias returns the estimated road-grade acceleration bias.
func (f *Filter) GradeBias() float64 { return f.x.AtVec(stateGradeBias) }

// CovarianceDiag returns a copy of the covariance diagonal, mainly for
// health inspection.
func (f *Filter) CovarianceDiag() [5]float64 {
	var d [5]float64
	for i := range d {
		d[i] = f.p.At(i, i)
	}
	return d
}

// mustBeFinite guards the filter against silent numeric corruption. A
// non-finite or negative-variance covariance would poison every later
// cycle, so it fails loudly instead.
func (f *Filter) mustBeFinite(stage string) {
	for i := 0; i < stateDim; i++ {
		if v := f.x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Sprintf("egomotion: non-finite state[%d]=%v after %s", i, v, stage))
		}
		if d := f.p.At(i, i); math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			panic(fmt.Sprintf("egomotion: invalid covariance[%d,%d]=%v after %s", i, i, d, stage))
		}
	}
}
