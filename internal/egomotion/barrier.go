package egomotion

import (
	"sort"

	"github.com/banshee-data/crosswatch/internal/radar"
)

// BarrierParams configures the road-edge corridor estimate.
type BarrierParams struct {
	// YMin and YMax bound the longitudinal window the corridor is
	// measured over.
	YMin, YMax float64
	// DefaultXMin and DefaultXMax seed the corridor and stand in for a
	// side with no static returns this cycle.
	DefaultXMin, DefaultXMax float64
	// SmoothingAlpha is the one-pole filter gain toward the fresh
	// estimate (0 = frozen, 1 = no smoothing).
	SmoothingAlpha float64
}

// BarrierDetector maintains a smoothed lateral corridor between the
// static returns flanking the vehicle, typically guardrails or noise
// barriers. The corridor is only meaningful while driving straight;
// the caller gates on motion state.
type BarrierDetector struct {
	params   BarrierParams
	corridor radar.Corridor
}

// NewBarrierDetector seeds the corridor at the configured defaults.
func NewBarrierDetector(params BarrierParams) *BarrierDetector {
	return &BarrierDetector{
		params:   params,
		corridor: radar.Corridor{XMin: params.DefaultXMin, XMax: params.DefaultXMax},
	}
}

// Corridor returns the current smoothed corridor.
func (b *BarrierDetector) Corridor() radar.Corridor { return b.corridor }

// Update measures the corridor from the static-inlier points inside the
// longitudinal window and blends it into the running estimate. The raw
// edge per side is the median lateral offset of that side's static
// returns; the median keeps a single stray static point from yanking
// the corridor. A side with no returns holds its configured default.
func (b *BarrierDetector) Update(xs, ys []float64, staticIndices []int) radar.Corridor {
	var left, right []float64
	for _, i := range staticIndices {
		if ys[i] < b.params.YMin || ys[i] > b.params.YMax {
			continue
		}
		if xs[i] < 0 {
			left = append(left, xs[i])
		} else {
			right = append(right, xs[i])
		}
	}

	rawMin := b.params.DefaultXMin
	if len(left) > 0 {
		rawMin = median(left)
	}
	rawMax := b.params.DefaultXMax
	if len(right) > 0 {
		rawMax = median(right)
	}

	a := b.params.SmoothingAlpha
	b.corridor.XMin = a*rawMin + (1-a)*b.corridor.XMin
	b.corridor.XMax = a*rawMax + (1-a)*b.corridor.XMax
	return b.corridor
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
