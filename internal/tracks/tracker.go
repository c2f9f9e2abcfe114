package tracks

import (
	"math"

	"github.com/banshee-data/crosswatch/internal/config"
	"github.com/banshee-data/crosswatch/internal/monitoring"
	"github.com/banshee-data/crosswatch/internal/radar"
)

// TrackerConfig holds the tracker's tuning parameters.
type TrackerConfig struct {
	MaxTracks             int
	ConfirmHits           int // M of the M-of-N confirmation rule
	ConfirmWindow         int // N of the M-of-N confirmation rule
	MaxMisses             int // candidate miss streak before loss
	MaxMissesConfirmed    int // confirmed miss streak before loss
	GatingDistanceSquared float64
	ModelStayProbability  float64
	Noise                 ModelNoise
	TTCCriticalSecs       float64
	TTCWarningSecs        float64
}

// TrackerConfigFromTuning derives the tracker configuration from the
// shared tuning file.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxTracks:             cfg.GetMaxTracks(),
		ConfirmHits:           cfg.GetConfirmHits(),
		ConfirmWindow:         cfg.GetConfirmWindow(),
		MaxMisses:             cfg.GetMaxMisses(),
		MaxMissesConfirmed:    cfg.GetMaxMissesConfirmed(),
		GatingDistanceSquared: cfg.GetGatingDistanceSquared(),
		ModelStayProbability:  cfg.GetModelStayProbability(),
		Noise: ModelNoise{
			ProcessPos:  cfg.GetTrackProcessNoisePos(),
			ProcessVel:  cfg.GetTrackProcessNoiseVel(),
			ProcessAcc:  cfg.GetTrackProcessNoiseAcc(),
			Measurement: cfg.GetTrackMeasurementNoise(),
		},
		TTCCriticalSecs: cfg.GetTTCCriticalSecs(),
		TTCWarningSecs:  cfg.GetTTCWarningSecs(),
	}
}

// Metrics summarises one tracker cycle.
type Metrics struct {
	ActiveTracks    int
	ConfirmedTracks int
	LostThisCycle   int
	SpawnedTracks   int
	MatchedClusters int
}

// Tracker owns the full track list and its lifecycle. It is driven by
// exactly one caller per cycle and holds no internal locking.
type Tracker struct {
	cfg    TrackerConfig
	tracks []*Track
	nextID int64
}

// NewTracker builds an empty tracker. Track IDs start at 1 and are
// never reused.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{cfg: cfg, nextID: 1}
}

// Tracks returns the current track list, including tracks lost this
// cycle (flagged, reported once).
func (t *Tracker) Tracks() []*Track { return t.tracks }

// Update runs one association cycle over the surviving clusters.
// Returned tracks include those lost this cycle; they are excluded
// from association on the next call.
func (t *Tracker) Update(clusters []radar.Cluster, dt float64) ([]*Track, Metrics) {
	var metrics Metrics

	// Tracks reported lost last cycle leave the list now.
	t.dropLost()

	for _, tr := range t.tracks {
		t.safePredict(tr, dt)
	}

	// Gate clusters against predicted positions. A cluster inside any
	// gate is consumed; it may contribute to several nearby tracks.
	consumed := make([]bool, len(clusters))
	for _, tr := range t.tracks {
		if tr.State == TrackLost {
			continue
		}
		zx, zy, ok := t.gatedMeasurement(tr, clusters, consumed)
		if ok {
			t.safeCorrect(tr, zx, zy)
			tr.recordHit(t.cfg.ConfirmWindow)
			metrics.MatchedClusters++
		} else {
			tr.recordMiss(t.cfg.ConfirmWindow)
		}
	}

	// Lifecycle transitions.
	for _, tr := range t.tracks {
		tr.Age++
		if tr.State == TrackLost {
			continue
		}
		if tr.State == TrackCandidate && tr.windowHits() >= t.cfg.ConfirmHits {
			tr.State = TrackConfirmed
			tr.confirmedEver = true
		}
		limit := t.cfg.MaxMisses
		if tr.State == TrackConfirmed {
			limit = t.cfg.MaxMissesConfirmed
		}
		if tr.MissStreak >= limit {
			tr.State = TrackLost
			metrics.LostThisCycle++
		}
		tr.refreshTTC(t.cfg.TTCCriticalSecs, t.cfg.TTCWarningSecs)
	}

	// Unconsumed clusters spawn candidates.
	for i, c := range clusters {
		if consumed[i] || len(t.tracks) >= t.cfg.MaxTracks {
			continue
		}
		t.spawn(c)
		metrics.SpawnedTracks++
	}

	for _, tr := range t.tracks {
		metrics.ActiveTracks++
		if tr.State == TrackConfirmed {
			metrics.ConfirmedTracks++
		}
	}
	return t.tracks, metrics
}

// gatedMeasurement collects the clusters inside the track's gate and
// blends them into a single weighted measurement. Weights fall off as
// exp(-d²/2) with the squared Euclidean distance to the prediction, so
// an ambiguous detection softly updates every nearby track instead of
// forcing a one-to-one match.
func (t *Tracker) gatedMeasurement(tr *Track, clusters []radar.Cluster, consumed []bool) (zx, zy float64, ok bool) {
	var sumW, sumX, sumY float64
	for i, c := range clusters {
		dx := c.X - tr.X
		dy := c.Y - tr.Y
		d2 := dx*dx + dy*dy
		if d2 > t.cfg.GatingDistanceSquared {
			continue
		}
		w := math.Exp(-0.5 * d2)
		sumW += w
		sumX += w * c.X
		sumY += w * c.Y
		consumed[i] = true
	}
	if sumW == 0 {
		return 0, 0, false
	}
	return sumX / sumW, sumY / sumW, true
}

// spawn starts a candidate track on an unassociated cluster with a
// fresh CV+CA model bank seeded from the cluster's derived velocity.
func (t *Tracker) spawn(c radar.Cluster) {
	tr := &Track{
		ID:    t.nextID,
		State: TrackCandidate,
		models: []MotionModel{
			NewConstantVelocityModel(c.X, c.Y, c.Vx, c.Vy, t.cfg.Noise),
			NewConstantAccelerationModel(c.X, c.Y, c.Vx, c.Vy, t.cfg.Noise),
		},
		probs: []float64{0.5, 0.5},
		TTC:   math.Inf(1),
	}
	t.nextID++
	tr.fuse()
	tr.recordHit(t.cfg.ConfirmWindow)
	t.tracks = append(t.tracks, tr)
}

// dropLost removes tracks that were already reported as lost.
func (t *Tracker) dropLost() {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.State != TrackLost {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept
}

// safePredict and safeCorrect fence numeric faults at per-track
// granularity: a panic in one track's filter marks that track lost and
// never aborts the cycle.
func (t *Tracker) safePredict(tr *Track, dt float64) {
	defer t.recoverTrack(tr)
	tr.predict(dt)
}

func (t *Tracker) safeCorrect(tr *Track, zx, zy float64) {
	defer t.recoverTrack(tr)
	tr.correct(zx, zy, t.cfg.ModelStayProbability)
}

func (t *Tracker) recoverTrack(tr *Track) {
	if r := recover(); r != nil {
		monitoring.Logf("tracks: track %d update failed, marking lost: %v", tr.ID, r)
		tr.State = TrackLost
	}
}
