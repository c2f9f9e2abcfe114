// Package cluster groups a frame's detections by joint position and
// radial-velocity proximity, then screens the resulting clusters for
// multipath ghosts. Neighbour search is grid-accelerated; the brute-force
// variant exists as the reference implementation for equivalence testing
// and for callers without a grid.
package cluster

import (
	"math"

	"github.com/banshee-data/crosswatch/internal/grid"
	"github.com/banshee-data/crosswatch/internal/radar"
)

// Params holds the density-clustering parameters. EpsilonPos must not
// exceed the grid cell size (enforced by config validation) or the 3×3
// cell neighbourhood search misses true neighbours.
type Params struct {
	EpsilonPos float64 // position epsilon in metres
	EpsilonVel float64 // radial-velocity epsilon in m/s
	MinPts     int     // minimum qualifying neighbours for a core point
}

// Labels runs grid-accelerated density clustering over the frame's points.
// The returned slice assigns every point a cluster id: 0 for noise, dense
// ids from 1 for cluster members. Frames with fewer than MinPts points
// yield an all-zero result.
//
// A neighbour must satisfy both gates: position distance ≤ EpsilonPos AND
// |Δ radial velocity| ≤ EpsilonVel. The joint gate separates spatially
// adjacent objects moving differently.
func Labels(xs, ys, vels []float64, params Params, ix *grid.Index) []int {
	return run(len(xs), params, func(i int) []int {
		return gatherNeighbors(i, ix.Candidates(i), xs, ys, vels, params)
	})
}

// BruteForceLabels is the O(n²) reference clustering with the same
// semantics as Labels. Unindexed points do not exist for it, so it is
// only equivalent to Labels when every point lies inside the grid extent.
func BruteForceLabels(xs, ys, vels []float64, params Params) []int {
	all := make([]int, len(xs))
	for i := range all {
		all[i] = i
	}
	return run(len(xs), params, func(i int) []int {
		return gatherNeighbors(i, all, xs, ys, vels, params)
	})
}

// gatherNeighbors filters candidate indices through the joint gate.
func gatherNeighbors(i int, candidates []int, xs, ys, vels []float64, params Params) []int {
	eps2 := params.EpsilonPos * params.EpsilonPos
	var out []int
	for _, j := range candidates {
		dx := xs[j] - xs[i]
		dy := ys[j] - ys[i]
		if dx*dx+dy*dy > eps2 {
			continue
		}
		if math.Abs(vels[j]-vels[i]) > params.EpsilonVel {
			continue
		}
		out = append(out, j)
	}
	return out
}

const noise = -1

// run is the density-clustering core, parameterised over neighbour search.
func run(n int, params Params, neighborsOf func(int) []int) []int {
	labels := make([]int, n)
	if n < params.MinPts {
		return labels
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}

		neighbors := neighborsOf(i)
		if len(neighbors) < params.MinPts {
			labels[i] = noise // provisional; may become a border point
			continue
		}

		clusterID++
		labels[i] = clusterID

		// Queue-based expansion; noise points absorbed as border points.
		queue := append([]int(nil), neighbors...)
		for head := 0; head < len(queue); head++ {
			idx := queue[head]
			if labels[idx] != noise && labels[idx] != 0 {
				continue
			}
			labels[idx] = clusterID

			next := neighborsOf(idx)
			if len(next) >= params.MinPts {
				for _, j := range next {
					if labels[j] == noise || labels[j] == 0 {
						queue = append(queue, j)
					}
				}
			}
		}
	}

	// Leftover noise remaps to 0.
	for i, l := range labels {
		if l == noise {
			labels[i] = 0
		}
	}
	return labels
}

// Aggregate folds per-point labels into per-cluster records: centroid,
// mean radial speed, and the radial speed resolved along the centroid
// bearing. Clusters come out ordered by id.
func Aggregate(xs, ys, vels []float64, labels []int) []radar.Cluster {
	maxID := 0
	for _, l := range labels {
		if l > maxID {
			maxID = l
		}
	}
	if maxID == 0 {
		return nil
	}

	clusters := make([]radar.Cluster, 0, maxID)
	for id := 1; id <= maxID; id++ {
		var sumX, sumY, sumV float64
		var members []int
		for i, l := range labels {
			if l == id {
				members = append(members, i)
				sumX += xs[i]
				sumY += ys[i]
				sumV += vels[i]
			}
		}
		if len(members) == 0 {
			continue
		}
		n := float64(len(members))
		c := radar.Cluster{
			ID:           id,
			X:            sumX / n,
			Y:            sumY / n,
			RadialSpeed:  sumV / n,
			PointIndices: members,
		}
		az := c.AzimuthTo()
		c.Vx = c.RadialSpeed * math.Sin(az)
		c.Vy = c.RadialSpeed * math.Cos(az)
		clusters = append(clusters, c)
	}
	return clusters
}
