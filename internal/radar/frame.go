// Package radar owns the per-cycle data model of the fusion pipeline:
// the point cloud delivered by the sensor transport, the bus signals
// injected by the adapter, and the per-frame annotations produced by
// the pipeline stages (clusters, outlier flags, motion state, barrier
// corridor).
//
// Coordinate convention: the sensor boresight is the +Y axis, X is
// lateral (positive right). Azimuth is measured from +Y, so
// x = r·sin(az), y = r·cos(az). Doppler is the radial velocity along
// the line of sight, positive for receding targets.
package radar

import "math"

// MotionState classifies the ego vehicle's current manoeuvre.
type MotionState int

const (
	MotionStraight  MotionState = 0
	MotionLeftTurn  MotionState = 1
	MotionRightTurn MotionState = 2
)

func (m MotionState) String() string {
	switch m {
	case MotionLeftTurn:
		return "left-turn"
	case MotionRightTurn:
		return "right-turn"
	default:
		return "straight"
	}
}

// Point is a single radar detection in polar form.
type Point struct {
	Range     float64 `json:"range_m"`
	Azimuth   float64 `json:"azimuth_rad"`
	Elevation float64 `json:"elevation_rad"`
	Doppler   float64 `json:"doppler_mps"`
	SNR       float64 `json:"snr_db"`
}

// Cartesian projects the detection onto the ground plane.
func (p Point) Cartesian() (x, y float64) {
	ground := p.Range * math.Cos(p.Elevation)
	return ground * math.Sin(p.Azimuth), ground * math.Cos(p.Azimuth)
}

// BusSignals carries the fused vehicle-bus values sampled at the frame
// timestamp. Any channel may be NaN when the signal was absent or not
// interpolatable this cycle; consumers must check with math.IsNaN before
// use. Values are normalised to plain float64 at the ingestion boundary.
type BusSignals struct {
	SpeedKmh float64 `json:"speed_kmh"`
	TorqueNm float64 `json:"torque_nm"`
	Gear     float64 `json:"gear"`
	GradeDeg float64 `json:"grade_deg"`
}

// UnavailableBusSignals returns a BusSignals with every channel NaN.
func UnavailableBusSignals() BusSignals {
	nan := math.NaN()
	return BusSignals{SpeedKmh: nan, TorqueNm: nan, Gear: nan, GradeDeg: nan}
}

// Corridor is the smoothed lateral road-edge extent [XMin, XMax] used to
// suppress static clutter while driving straight.
type Corridor struct {
	XMin float64 `json:"x_min_m"`
	XMax float64 `json:"x_max_m"`
}

// Contains reports whether the lateral coordinate lies inside the corridor.
func (c Corridor) Contains(x float64) bool {
	return x >= c.XMin && x <= c.XMax
}

// Cluster is an ephemeral per-frame aggregate of detections. It is owned
// by its frame and discarded after track association.
type Cluster struct {
	ID                int     // dense cluster id from clustering (≥1)
	X, Y              float64 // centroid, ground plane
	RadialSpeed       float64 // mean Doppler across member points
	Vx, Vy            float64 // radial speed resolved along the centroid bearing
	IsMoving          bool    // true when classified as a moving object
	IsStationaryInBox bool    // static cluster inside the configured static box
	PointIndices      []int   // indices into the owning frame's point cloud
}

// RangeTo returns the centroid's range from the sensor origin.
func (c *Cluster) RangeTo() float64 {
	return math.Hypot(c.X, c.Y)
}

// AzimuthTo returns the centroid's bearing from boresight.
func (c *Cluster) AzimuthTo() float64 {
	return math.Atan2(c.X, c.Y)
}

// Frame is one radar cycle: the raw detections plus every annotation the
// pipeline attaches on the way through. Constructed fresh each cycle and
// consumed once by the tracker.
type Frame struct {
	TimestampMs float64 // monotonic per source
	Points      []Point
	X, Y        []float64 // per-point ground-plane positions (len == len(Points))

	Bus BusSignals

	// Annotations written by the pipeline.
	MotionState MotionState
	EgoVx       float64 // longitudinal ego velocity (m/s)
	EgoVy       float64 // lateral ego velocity (m/s)
	EgoAccel    float64 // estimated longitudinal acceleration (m/s²), NaN until estimated
	Barrier     Corridor
	ClusterIDs  []int  // per-point cluster label, 0 = noise
	IsOutlier   []bool // per-point RANSAC outlier flag (moving-world point)
	Clusters    []Cluster
}

// NewFrame builds a frame from raw detections and adapter-injected bus
// signals, precomputing ground-plane positions and zeroed annotations.
func NewFrame(timestampMs float64, points []Point, bus BusSignals) *Frame {
	f := &Frame{
		TimestampMs: timestampMs,
		Points:      points,
		X:           make([]float64, len(points)),
		Y:           make([]float64, len(points)),
		Bus:         bus,
		EgoAccel:    math.NaN(),
		ClusterIDs:  make([]int, len(points)),
		IsOutlier:   make([]bool, len(points)),
	}
	for i, p := range points {
		f.X[i], f.Y[i] = p.Cartesian()
	}
	// The adapter's bus speed seeds the ego velocity; the estimator
	// refines it every cycle. NaN marks it as pending estimation.
	f.EgoVx = math.NaN()
	if !math.IsNaN(bus.SpeedKmh) {
		f.EgoVx = bus.SpeedKmh / 3.6
	}
	return f
}

// NumPoints returns the detection count.
func (f *Frame) NumPoints() int { return len(f.Points) }
