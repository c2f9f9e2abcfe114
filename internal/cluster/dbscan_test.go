package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crosswatch/internal/grid"
)

func testGridConfig() grid.Config {
	return grid.Config{CellSize: 1.0, XMin: -40, XMax: 40, YMin: 0, YMax: 80}
}

func testParams() Params {
	return Params{EpsilonPos: 1.0, EpsilonVel: 0.5, MinPts: 3}
}

func labelPoints(t *testing.T, xs, ys, vels []float64, p Params) []int {
	t.Helper()
	ix := grid.Build(xs, ys, testGridConfig())
	return Labels(xs, ys, vels, p, ix)
}

func TestFewerThanMinPtsYieldsAllZero(t *testing.T) {
	xs := []float64{0, 0.1}
	ys := []float64{10, 10.1}
	vels := []float64{0, 0}
	labels := labelPoints(t, xs, ys, vels, testParams())
	assert.Equal(t, []int{0, 0}, labels)
}

func TestEmptyFrame(t *testing.T) {
	labels := labelPoints(t, nil, nil, nil, testParams())
	assert.Empty(t, labels)
}

func TestJointGatingSeparatesByVelocity(t *testing.T) {
	// Two co-located triples moving at very different radial speeds must
	// never co-cluster, despite zero spatial separation.
	xs := []float64{0, 0.1, 0.2, 0, 0.1, 0.2}
	ys := []float64{10, 10, 10, 10, 10, 10}
	vels := []float64{0, 0, 0, 5, 5, 5}
	labels := labelPoints(t, xs, ys, vels, testParams())

	require.NotZero(t, labels[0])
	require.NotZero(t, labels[3])
	assert.NotEqual(t, labels[0], labels[3])
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
}

func TestTransitiveCoClustering(t *testing.T) {
	// A chain of points each within both epsilons of the next clusters
	// together even though the ends are far apart.
	xs := []float64{0, 0.8, 1.6, 2.4, 3.2}
	ys := []float64{10, 10, 10, 10, 10}
	vels := []float64{0, 0.3, 0.6, 0.9, 1.2}
	labels := labelPoints(t, xs, ys, vels, testParams())

	first := labels[0]
	require.NotZero(t, first)
	for i, l := range labels {
		assert.Equal(t, first, l, "point %d", i)
	}
}

func TestIsolatedPointsAreNoise(t *testing.T) {
	xs := []float64{0, 0.1, 0.2, 20}
	ys := []float64{10, 10, 10, 50}
	vels := []float64{0, 0, 0, 0}
	labels := labelPoints(t, xs, ys, vels, testParams())
	assert.Zero(t, labels[3])
	assert.NotZero(t, labels[0])
}

func TestUnindexedPointsStayNoise(t *testing.T) {
	// Points outside the grid extent are fenced out of neighbour search.
	xs := []float64{0, 0.1, 0.2, -60, -60.1, -60.2}
	ys := []float64{10, 10, 10, 10, 10, 10}
	vels := []float64{0, 0, 0, 0, 0, 0}
	labels := labelPoints(t, xs, ys, vels, testParams())
	assert.NotZero(t, labels[0])
	assert.Zero(t, labels[3])
	assert.Zero(t, labels[4])
	assert.Zero(t, labels[5])
}

func TestGridEquivalenceWithBruteForce(t *testing.T) {
	// Random in-extent clouds: grid-accelerated clustering must be
	// byte-identical to the brute-force reference when eps ≤ cell size.
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		n := 40 + rng.Intn(80)
		xs := make([]float64, n)
		ys := make([]float64, n)
		vels := make([]float64, n)
		for i := range xs {
			xs[i] = -35 + 70*rng.Float64()
			ys[i] = 1 + 75*rng.Float64()
			vels[i] = -3 + 6*rng.Float64()
		}

		ix := grid.Build(xs, ys, testGridConfig())
		gridLabels := Labels(xs, ys, vels, testParams(), ix)
		bruteLabels := BruteForceLabels(xs, ys, vels, testParams())

		if diff := cmp.Diff(bruteLabels, gridLabels); diff != "" {
			t.Fatalf("trial %d: grid vs brute force mismatch (-brute +grid):\n%s", trial, diff)
		}
	}
}

func TestAggregate(t *testing.T) {
	xs := []float64{0, 0.2, -0.2, 5}
	ys := []float64{10, 10, 10, 20}
	vels := []float64{-2, -2.1, -1.9, 0}
	labels := []int{1, 1, 1, 0}

	clusters := Aggregate(xs, ys, vels, labels)
	require.Len(t, clusters, 1)
	c := clusters[0]
	assert.Equal(t, 1, c.ID)
	assert.InDelta(t, 0.0, c.X, 1e-9)
	assert.InDelta(t, 10.0, c.Y, 1e-9)
	assert.InDelta(t, -2.0, c.RadialSpeed, 1e-9)
	assert.ElementsMatch(t, []int{0, 1, 2}, c.PointIndices)

	// Straight ahead: the radial speed projects fully onto vy.
	assert.InDelta(t, 0.0, c.Vx, 1e-9)
	assert.InDelta(t, -2.0, c.Vy, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Nil(t, Aggregate(nil, nil, nil, nil))
	assert.Nil(t, Aggregate([]float64{1}, []float64{1}, []float64{0}, []int{0}))
}

func TestAggregateBearingProjection(t *testing.T) {
	// A cluster at 45° splits its radial speed evenly between vx and vy.
	xs := []float64{10}
	ys := []float64{10}
	vels := []float64{math.Sqrt2}
	clusters := Aggregate(xs, ys, vels, []int{1})
	require.Len(t, clusters, 1)
	assert.InDelta(t, 1.0, clusters[0].Vx, 1e-9)
	assert.InDelta(t, 1.0, clusters[0].Vy, 1e-9)
}
