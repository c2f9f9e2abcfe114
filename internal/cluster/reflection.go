package cluster

import (
	"math"

	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/units"
)

// ReflectionParams configures the multipath ghost screen.
type ReflectionParams struct {
	// SpeedSimilarityMps is the maximum |Δ mean radial speed| for two
	// clusters to count as velocity siblings.
	SpeedSimilarityMps float64
	// AzimuthTolRad is the maximum bearing difference for a reflective
	// geometry: a multipath ghost appears along (nearly) the same ray as
	// its real counterpart, delayed by the extra path length.
	AzimuthTolRad float64
	// MinRangeSepM is the minimum range separation between the pair. Two
	// co-located clusters with matching speed are distinct objects, not a
	// reflection.
	MinRangeSepM float64
}

// Ghosts returns the ids of clusters judged to be multipath reflections
// of a nearer sibling. A cluster is a likely ghost when a sibling has
// near-identical radial speed, lies within the azimuth tolerance, and
// sits at least MinRangeSepM closer to the sensor — the mirrored
// detection always travels the longer path. Of any symmetric matching
// pair exactly one survives: the nearer one.
//
// A cluster with no speed-matching sibling is never discarded.
func Ghosts(clusters []radar.Cluster, p ReflectionParams) map[int]bool {
	removed := make(map[int]bool)
	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			a, b := &clusters[i], &clusters[j]
			if math.Abs(a.RadialSpeed-b.RadialSpeed) > p.SpeedSimilarityMps {
				continue
			}
			dAz := units.WrapAngle(a.AzimuthTo() - b.AzimuthTo())
			if math.Abs(dAz) > p.AzimuthTolRad {
				continue
			}

			ra, rb := a.RangeTo(), b.RangeTo()
			switch {
			case rb-ra >= p.MinRangeSepM:
				removed[b.ID] = true
			case ra-rb >= p.MinRangeSepM:
				removed[a.ID] = true
			default:
				// Same range shell: two real objects, not a reflection.
			}
		}
	}
	return removed
}
