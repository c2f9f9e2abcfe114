package pipeline

import (
	"math"
	"math/rand"

	"github.com/banshee-data/crosswatch/internal/cluster"
	"github.com/banshee-data/crosswatch/internal/config"
	"github.com/banshee-data/crosswatch/internal/egomotion"
	"github.com/banshee-data/crosswatch/internal/grid"
	"github.com/banshee-data/crosswatch/internal/monitoring"
	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/tracks"
	"github.com/banshee-data/crosswatch/internal/units"
)

// defaultDeltaT stands in for the first cycle and for non-monotonic
// timestamps, matching the nominal 20 Hz cadence.
const defaultDeltaT = 0.05

// metricsLogInterval is how many cycles pass between summary log lines.
const metricsLogInterval = 100

// CycleMetrics summarises one pipeline cycle.
type CycleMetrics struct {
	FrameIndex       int
	DeltaT           float64
	Points           int
	RawClusters      int
	GhostsRemoved    int
	SuppressedStatic int
	Clusters         int
	Tracks           tracks.Metrics
}

// Pipeline runs the full per-cycle fusion flow: ego-motion estimation,
// motion classification, barrier corridor, clustering, reflection
// filtering and multi-target tracking. It is single-threaded by
// contract: exactly one caller drives Process, and every cycle
// completes and returns a result.
type Pipeline struct {
	cfg *config.TuningConfig

	gridCfg    grid.Config
	dbscan     cluster.Params
	reflection cluster.ReflectionParams

	estimator *egomotion.Estimator
	motion    *egomotion.MotionClassifier
	barrier   *egomotion.BarrierDetector
	tracker   *tracks.Tracker

	history *History

	frameIdx        int
	lastTimestampMs float64
}

// New builds a pipeline from tuning. The random source seeds RANSAC
// sampling only.
func New(cfg *config.TuningConfig, rng *rand.Rand) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		gridCfg: grid.Config{
			CellSize: cfg.GetGridCellSizeM(),
			XMin:     cfg.GetGridXMinM(),
			XMax:     cfg.GetGridXMaxM(),
			YMin:     cfg.GetGridYMinM(),
			YMax:     cfg.GetGridYMaxM(),
		},
		dbscan: cluster.Params{
			EpsilonPos: cfg.GetEpsilonPosM(),
			EpsilonVel: cfg.GetEpsilonVelMps(),
			MinPts:     cfg.GetMinPts(),
		},
		reflection: cluster.ReflectionParams{
			SpeedSimilarityMps: cfg.GetSpeedSimilarityThresholdMps(),
			AzimuthTolRad:      units.DegToRad(cfg.GetReflectionAzimuthTolDeg()),
			MinRangeSepM:       cfg.GetReflectionMinRangeSepM(),
		},
		estimator: egomotion.NewEstimator(cfg, rng),
		motion: egomotion.NewMotionClassifier(
			cfg.GetTurnYawRateThreshold(), cfg.GetTurnConfirmSamples()),
		barrier: egomotion.NewBarrierDetector(egomotion.BarrierParams{
			YMin:           cfg.GetBarrierYMinM(),
			YMax:           cfg.GetBarrierYMaxM(),
			DefaultXMin:    cfg.GetBarrierDefaultXMinM(),
			DefaultXMax:    cfg.GetBarrierDefaultXMaxM(),
			SmoothingAlpha: cfg.GetBarrierSmoothingAlpha(),
		}),
		tracker: tracks.NewTracker(tracks.TrackerConfigFromTuning(cfg)),
		history: NewHistory(DefaultHistoryDepth),
	}
}

// History exposes the rolling frame/track history for export.
func (p *Pipeline) History() *History { return p.history }

// Process runs one cycle over the frame, annotating it in place and
// returning the updated track list. The frame is consumed: the caller
// must not feed it again.
func (p *Pipeline) Process(frame *radar.Frame) ([]*tracks.Track, CycleMetrics) {
	dt := p.deltaT(frame.TimestampMs)

	metrics := CycleMetrics{
		FrameIndex: p.frameIdx,
		DeltaT:     dt,
		Points:     frame.NumPoints(),
	}

	// Yaw rate is currently unsourced; the classifier still runs so the
	// debounce counters stay well-defined when a source appears.
	frame.MotionState = p.motion.Classify(0)

	dopplers := make([]float64, frame.NumPoints())
	for i, pt := range frame.Points {
		dopplers[i] = pt.Doppler
	}
	est := p.estimator.Update(frame.X, frame.Y, dopplers, frame.Bus, dt)
	frame.EgoVy = est.Vy
	frame.EgoAccel = est.Ax
	if math.IsNaN(frame.EgoVx) {
		// No bus speed this cycle; the filter estimate is the best
		// longitudinal velocity available.
		frame.EgoVx = est.Vx
	}
	for _, i := range est.OutlierIndices {
		frame.IsOutlier[i] = true
	}

	isMoving := math.Abs(frame.EgoVx) > p.cfg.GetStationarySpeedMps()
	staticIndices := staticInliers(frame.NumPoints(), est.OutlierIndices)

	// The corridor only updates while rolling straight past static
	// structure; otherwise the previous smoothed corridor holds.
	corridorActive := false
	if len(staticIndices) > 0 && isMoving && frame.MotionState == radar.MotionStraight {
		p.barrier.Update(frame.X, frame.Y, staticIndices)
		corridorActive = true
	}
	frame.Barrier = p.barrier.Corridor()

	survivors := p.clusterFrame(frame, dopplers, isMoving, corridorActive, &metrics)
	frame.Clusters = survivors

	trackList, trackMetrics := p.tracker.Update(survivors, dt)
	metrics.Tracks = trackMetrics

	p.history.Add(frame, trackList)
	p.frameIdx++
	if p.frameIdx%metricsLogInterval == 0 {
		monitoring.Logf("pipeline: frame %d: %d points, %d clusters (%d ghosts), %d tracks (%d confirmed)",
			metrics.FrameIndex, metrics.Points, metrics.Clusters, metrics.GhostsRemoved,
			metrics.Tracks.ActiveTracks, metrics.Tracks.ConfirmedTracks)
	}
	return trackList, metrics
}

// deltaT derives the cycle interval from consecutive frame timestamps,
// floored so a stalled or rewound clock cannot divide the filters by
// zero.
func (p *Pipeline) deltaT(timestampMs float64) float64 {
	dt := defaultDeltaT
	if p.frameIdx > 0 {
		dt = (timestampMs - p.lastTimestampMs) / 1000.0
		if dt <= 0 {
			dt = defaultDeltaT
		}
	}
	p.lastTimestampMs = timestampMs
	return dt
}

// clusterFrame runs density clustering, the reflection screen and the
// static-clutter filters, returning the clusters that reach the
// tracker.
func (p *Pipeline) clusterFrame(frame *radar.Frame, dopplers []float64, isMoving, corridorActive bool, metrics *CycleMetrics) []radar.Cluster {
	n := frame.NumPoints()
	if n < p.dbscan.MinPts {
		return nil
	}

	ix := grid.Build(frame.X, frame.Y, p.gridCfg)
	labels := cluster.Labels(frame.X, frame.Y, dopplers, p.dbscan, ix)
	frame.ClusterIDs = labels

	raw := cluster.Aggregate(frame.X, frame.Y, dopplers, labels)
	metrics.RawClusters = len(raw)
	if len(raw) == 0 {
		return nil
	}
	ghosts := cluster.Ghosts(raw, p.reflection)

	var survivors []radar.Cluster
	for _, c := range raw {
		if ghosts[c.ID] {
			metrics.GhostsRemoved++
			continue
		}

		if isMoving {
			outliers := 0
			for _, i := range c.PointIndices {
				if frame.IsOutlier[i] {
					outliers++
				}
			}
			ratio := float64(outliers) / float64(len(c.PointIndices))
			c.IsMoving = ratio > p.cfg.GetMinOutlierClusterRatio()
		} else {
			c.IsMoving = math.Abs(c.RadialSpeed) > p.cfg.GetStationarySpeedMps()
		}

		// While the barrier corridor is live, static clusters inside it
		// are roadside structure, not targets.
		if corridorActive && !c.IsMoving &&
			frame.Barrier.Contains(c.X) &&
			c.Y >= p.cfg.GetBarrierYMinM() && c.Y <= p.cfg.GetBarrierYMaxM() {
			metrics.SuppressedStatic++
			continue
		}

		c.IsStationaryInBox = !c.IsMoving &&
			c.X >= p.cfg.GetStaticBoxXMinM() && c.X <= p.cfg.GetStaticBoxXMaxM() &&
			c.Y >= p.cfg.GetStaticBoxYMinM() && c.Y <= p.cfg.GetStaticBoxYMaxM()

		survivors = append(survivors, c)
	}
	metrics.Clusters = len(survivors)
	return survivors
}

// staticInliers complements the outlier set over [0, n).
func staticInliers(n int, outliers []int) []int {
	isOutlier := make([]bool, n)
	for _, i := range outliers {
		isOutlier[i] = true
	}
	var static []int
	for i := 0; i < n; i++ {
		if !isOutlier[i] {
			static = append(static, i)
		}
	}
	return static
}
