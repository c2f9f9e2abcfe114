package egomotion

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// FitParams configures the RANSAC fit of the stationary-point velocity
// field.
type FitParams struct {
	// InlierThresholdMps is the maximum |residual| radial speed for a
	// point to support a candidate ego velocity.
	InlierThresholdMps float64
	// Iterations is the number of random two-point samples drawn.
	Iterations int
}

// Fit is the consensus result of one RANSAC run.
type Fit struct {
	Vx, Vy float64
	// OutlierIndices are the points whose radial speed is inconsistent
	// with a stationary world under the fitted ego velocity. These are
	// the moving-object candidates.
	OutlierIndices []int
}

// FitEgoVelocity estimates ego velocity from the radial speeds of
// presumed-static points. A stationary point at bearing az returns a
// radial speed of -(vx*sin(az) + vy*cos(az)), so two points at distinct
// bearings determine (vx, vy). The best two-point hypothesis by inlier
// count is refined with a least-squares solve over its inliers.
//
// Returns false when fewer than two points are available or every
// sampled pair is degenerate.
func FitEgoVelocity(xs, ys, dopplers []float64, p FitParams, rng *rand.Rand) (Fit, bool) {
	n := len(xs)
	if n < 2 {
		return Fit{}, false
	}

	// Unit bearing components per point; sin(az) = x/r, cos(az) = y/r.
	us := make([]float64, n)
	vs := make([]float64, n)
	for i := range xs {
		r := math.Hypot(xs[i], ys[i])
		if r == 0 {
			r = 1
		}
		us[i] = xs[i] / r
		vs[i] = ys[i] / r
	}

	bestInliers := -1
	var bestVx, bestVy float64
	for iter := 0; iter < p.Iterations; iter++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i == j {
			continue
		}
		// Solve -u_i*vx - v_i*vy = d_i for the sampled pair.
		det := us[i]*vs[j] - us[j]*vs[i]
		if math.Abs(det) < 1e-9 {
			continue // near-collinear bearings
		}
		vx := (-dopplers[i]*vs[j] + dopplers[j]*vs[i]) / det
		vy := (-dopplers[j]*us[i] + dopplers[i]*us[j]) / det

		inliers := 0
		for k := 0; k < n; k++ {
			if math.Abs(dopplers[k]+us[k]*vx+vs[k]*vy) <= p.InlierThresholdMps {
				inliers++
			}
		}
		if inliers > bestInliers {
			bestInliers = inliers
			bestVx, bestVy = vx, vy
		}
	}
	if bestInliers < 2 {
		return Fit{}, false
	}

	fit := refineFit(us, vs, dopplers, bestVx, bestVy, p.InlierThresholdMps)
	return fit, true
}

// refineFit re-solves the velocity over the consensus set by least
// squares and recomputes the outlier partition against the refined
// estimate.
func refineFit(us, vs, dopplers []float64, vx, vy, threshold float64) Fit {
	var rows []int
	for k := range dopplers {
		if math.Abs(dopplers[k]+us[k]*vx+vs[k]*vy) <= threshold {
			rows = append(rows, k)
		}
	}

	if len(rows) >= 2 {
		a := mat.NewDense(len(rows), 2, nil)
		b := mat.NewVecDense(len(rows), nil)
		for r, k := range rows {
			a.Set(r, 0, -us[k])
			a.Set(r, 1, -vs[k])
			b.SetVec(r, dopplers[k])
		}
		var sol mat.VecDense
		if err := sol.SolveVec(a, b); err == nil {
			vx, vy = sol.AtVec(0), sol.AtVec(1)
		}
	}

	var outliers []int
	for k := range dopplers {
		if math.Abs(dopplers[k]+us[k]*vx+vs[k]*vy) > threshold {
			outliers = append(outliers, k)
		}
	}
	return Fit{Vx: vx, Vy: vy, OutlierIndices: outliers}
}
