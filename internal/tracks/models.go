package tracks

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// minDeterminant is the smallest innovation-covariance determinant
// accepted before an update is declared singular.
const minDeterminant = 1e-9

// MotionModel is one kinematic hypothesis inside a track's model bank.
// Concrete models are chosen at track construction and never swapped.
// All models observe the same 2D position measurement.
type MotionModel interface {
	// Name identifies the model in logs and exports.
	Name() string
	// Predict advances the state by dt seconds.
	Predict(dt float64)
	// Likelihood evaluates the Gaussian measurement likelihood of (zx, zy)
	// against the predicted state without modifying it.
	Likelihood(zx, zy float64) float64
	// Update applies the Kalman correction for measurement (zx, zy).
	Update(zx, zy float64)
	// Position returns the estimated position.
	Position() (x, y float64)
	// Velocity returns the estimated velocity.
	Velocity() (vx, vy float64)
}

// ModelNoise carries the shared noise configuration for the model bank.
type ModelNoise struct {
	ProcessPos  float64
	ProcessVel  float64
	ProcessAcc  float64
	Measurement float64
}

// linearModel is a position-observed linear Kalman filter of dimension
// dim with [x, y, vx, vy, ...] state ordering.
type linearModel struct {
	name string
	dim  int
	x    *mat.VecDense
	p    *mat.Dense
	q    []float64 // process noise diagonal
	r    float64   // measurement variance per axis

	// buildF fills the state transition matrix for dt.
	buildF func(dt float64, f *mat.Dense)
}

func (m *linearModel) Name() string { return m.name }

func (m *linearModel) Position() (float64, float64) {
	return m.x.AtVec(0), m.x.AtVec(1)
}

func (m *linearModel) Velocity() (float64, float64) {
	return m.x.AtVec(2), m.x.AtVec(3)
}

func (m *linearModel) Predict(dt float64) {
	f := mat.NewDense(m.dim, m.dim, nil)
	m.buildF(dt, f)

	var nx mat.VecDense
	nx.MulVec(f, m.x)
	m.x.CopyVec(&nx)

	var fp, fpft mat.Dense
	fp.Mul(f, m.p)
	fpft.Mul(&fp, f.T())
	m.p.Copy(&fpft)
	for i, q := range m.q {
		m.p.Set(i, i, m.p.At(i, i)+q)
	}
	m.mustBeValid("predict")
}

// innovation returns the position residual and the inverse innovation
// covariance terms. ok is false when S is singular.
func (m *linearModel) innovation(zx, zy float64) (yx, yy, i00, i01, i11, det float64, ok bool) {
	yx = zx - m.x.AtVec(0)
	yy = zy - m.x.AtVec(1)

	s00 := m.p.At(0, 0) + m.r
	s01 := m.p.At(0, 1)
	s11 := m.p.At(1, 1) + m.r
	det = s00*s11 - s01*s01
	if det < minDeterminant {
		return 0, 0, 0, 0, 0, 0, false
	}
	i00 = s11 / det
	i01 = -s01 / det
	i11 = s00 / det
	return yx, yy, i00, i01, i11, det, true
}

func (m *linearModel) Likelihood(zx, zy float64) float64 {
	yx, yy, i00, i01, i11, det, ok := m.innovation(zx, zy)
	if !ok {
		return 0
	}
	d2 := yx*yx*i00 + 2*yx*yy*i01 + yy*yy*i11
	return math.Exp(-0.5*d2) / (2 * math.Pi * math.Sqrt(det))
}

func (m *linearModel) Update(zx, zy float64) {
	yx, yy, i00, i01, i11, _, ok := m.innovation(zx, zy)
	if !ok {
		// Singular innovation covariance: skip the correction rather
		// than divide through a vanishing determinant.
		return
	}

	// Gain K = P Hᵀ S⁻¹ with H selecting the first two components.
	k := make([]float64, 2*m.dim)
	for i := 0; i < m.dim; i++ {
		p0 := m.p.At(i, 0)
		p1 := m.p.At(i, 1)
		k[2*i] = p0*i00 + p1*i01
		k[2*i+1] = p0*i01 + p1*i11
	}
	for i := 0; i < m.dim; i++ {
		m.x.SetVec(i, m.x.AtVec(i)+k[2*i]*yx+k[2*i+1]*yy)
	}

	// P' = (I - K H) P. K H only touches the first two columns of each
	// row, so subtract K times the first two covariance rows.
	row0 := make([]float64, m.dim)
	row1 := make([]float64, m.dim)
	for j := 0; j < m.dim; j++ {
		row0[j] = m.p.At(0, j)
		row1[j] = m.p.At(1, j)
	}
	for i := 0; i < m.dim; i++ {
		for j := 0; j < m.dim; j++ {
			m.p.Set(i, j, m.p.At(i, j)-k[2*i]*row0[j]-k[2*i+1]*row1[j])
		}
	}
	m.mustBeValid("update")
}

// mustBeValid fails loudly on numeric corruption. A poisoned covariance
// would silently wreck every later cycle of this track, which is worse
// than losing the track now; the tracker recovers per track.
func (m *linearModel) mustBeValid(stage string) {
	for i := 0; i < m.dim; i++ {
		if v := m.x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Sprintf("tracks: %s model non-finite state[%d]=%v after %s", m.name, i, v, stage))
		}
		if d := m.p.At(i, i); math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			panic(fmt.Sprintf("tracks: %s model invalid covariance[%d,%d]=%v after %s", m.name, i, i, d, stage))
		}
	}
}

// NewConstantVelocityModel builds a CV filter seeded at the given
// position and velocity.
func NewConstantVelocityModel(x, y, vx, vy float64, noise ModelNoise) MotionModel {
	m := &linearModel{
		name: "cv",
		dim:  4,
		x:    mat.NewVecDense(4, []float64{x, y, vx, vy}),
		p:    mat.NewDense(4, 4, nil),
		q:    []float64{noise.ProcessPos, noise.ProcessPos, noise.ProcessVel, noise.ProcessVel},
		r:    noise.Measurement,
		buildF: func(dt float64, f *mat.Dense) {
			for i := 0; i < 4; i++ {
				f.Set(i, i, 1)
			}
			f.Set(0, 2, dt)
			f.Set(1, 3, dt)
		},
	}
	seedCovariance(m.p, []float64{1, 1, 4, 4})
	return m
}

// NewConstantAccelerationModel builds a CA filter seeded at the given
// position and velocity with zero initial acceleration.
func NewConstantAccelerationModel(x, y, vx, vy float64, noise ModelNoise) MotionModel {
	m := &linearModel{
		name: "ca",
		dim:  6,
		x:    mat.NewVecDense(6, []float64{x, y, vx, vy, 0, 0}),
		p:    mat.NewDense(6, 6, nil),
		q: []float64{
			noise.ProcessPos, noise.ProcessPos,
			noise.ProcessVel, noise.ProcessVel,
			noise.ProcessAcc, noise.ProcessAcc,
		},
		r: noise.Measurement,
		buildF: func(dt float64, f *mat.Dense) {
			for i := 0; i < 6; i++ {
				f.Set(i, i, 1)
			}
			half := 0.5 * dt * dt
			f.Set(0, 2, dt)
			f.Set(1, 3, dt)
			f.Set(0, 4, half)
			f.Set(1, 5, half)
			f.Set(2, 4, dt)
			f.Set(3, 5, dt)
		},
	}
	seedCovariance(m.p, []float64{1, 1, 4, 4, 2, 2})
	return m
}

func seedCovariance(p *mat.Dense, diag []float64) {
	for i, v := range diag {
		p.Set(i, i, v)
	}
}
