package pipeline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crosswatch/internal/config"
	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/tracks"
)

func newTestPipeline() *Pipeline {
	return New(config.Default(), rand.New(rand.NewSource(1)))
}

// pointAt builds a detection at cartesian (x, y) with the given radial
// speed.
func pointAt(x, y, doppler float64) radar.Point {
	return radar.Point{
		Range:   math.Hypot(x, y),
		Azimuth: math.Atan2(x, y),
		Doppler: doppler,
		SNR:     20,
	}
}

// staticPointAt builds a detection of a stationary object as seen from
// a platform moving at (egoVx, egoVy).
func staticPointAt(x, y, egoVx, egoVy float64) radar.Point {
	r := math.Hypot(x, y)
	return pointAt(x, y, -(egoVx*x/r + egoVy*y/r))
}

func TestEmptyFrameCompletesCycle(t *testing.T) {
	p := newTestPipeline()
	frame := radar.NewFrame(1000, nil, radar.UnavailableBusSignals())
	trackList, metrics := p.Process(frame)
	assert.Empty(t, trackList)
	assert.Zero(t, metrics.Points)
	assert.Zero(t, metrics.Clusters)
	assert.Equal(t, 1, p.History().Len())
}

func TestEmptyFramesCoastExistingTracks(t *testing.T) {
	p := newTestPipeline()
	bus := radar.BusSignals{SpeedKmh: 0, TorqueNm: math.NaN(), Gear: 3, GradeDeg: math.NaN()}

	// Build a confirmed track on an approaching target.
	ts := 1000.0
	var trackList []*tracks.Track
	for i := 0; i < 8; i++ {
		y := 30 - 0.2*float64(i)
		pts := []radar.Point{
			pointAt(-0.3, y, -4), pointAt(0, y, -4), pointAt(0.3, y, -4),
		}
		trackList, _ = p.Process(radar.NewFrame(ts, pts, bus))
		ts += 50
	}
	require.NotEmpty(t, trackList)
	require.Equal(t, tracks.TrackConfirmed, trackList[0].State)

	// A dropout cycle coasts the track instead of dropping it.
	trackList, _ = p.Process(radar.NewFrame(ts, nil, bus))
	require.Len(t, trackList, 1)
	assert.Equal(t, tracks.TrackConfirmed, trackList[0].State)
	assert.Equal(t, 1, trackList[0].MissStreak)
}

func TestDeltaTFlooredOnRewoundClock(t *testing.T) {
	p := newTestPipeline()
	bus := radar.UnavailableBusSignals()

	_, m := p.Process(radar.NewFrame(1000, nil, bus))
	assert.Equal(t, defaultDeltaT, m.DeltaT)

	_, m = p.Process(radar.NewFrame(900, nil, bus)) // clock went backwards
	assert.Equal(t, defaultDeltaT, m.DeltaT)

	_, m = p.Process(radar.NewFrame(1000, nil, bus))
	assert.InDelta(t, 0.1, m.DeltaT, 1e-9)
}

func TestStationaryClutterSpawnsNoConfirmedTrack(t *testing.T) {
	// A stationary object dead ahead while driving straight at 10 m/s:
	// its returns match the stationary field, the cluster is static and
	// sits in the barrier corridor, so nothing reaches the tracker.
	p := newTestPipeline()
	bus := radar.BusSignals{SpeedKmh: 36, TorqueNm: 0, Gear: 3, GradeDeg: 0}

	ts := 1000.0
	var trackList []*tracks.Track
	for i := 0; i < 10; i++ {
		pts := []radar.Point{
			staticPointAt(-0.3, 20, 0, 10),
			staticPointAt(0, 20, 0, 10),
			staticPointAt(0.3, 20, 0, 10),
			staticPointAt(0.1, 19.6, 0, 10),
		}
		trackList, _ = p.Process(radar.NewFrame(ts, pts, bus))
		ts += 50
	}
	for _, tr := range trackList {
		assert.NotEqual(t, tracks.TrackConfirmed, tr.State)
	}
}

func TestConstantBusInputsConvergeEgoState(t *testing.T) {
	p := newTestPipeline()
	bus := radar.BusSignals{SpeedKmh: 50.0, TorqueNm: 10.0, Gear: 3, GradeDeg: 0.0}

	ts := 1000.0
	var frame *radar.Frame
	for i := 0; i < 50; i++ {
		frame = radar.NewFrame(ts, nil, bus)
		p.Process(frame)
		ts += 50
	}
	assert.InDelta(t, 50.0/3.6, frame.EgoVx, 0.1)
	assert.InDelta(t, 0.0, frame.EgoAccel, 0.5)
}

func TestMovingTargetConfirmsTrackWithTTC(t *testing.T) {
	// An oncoming vehicle ahead while ego is stationary: it clusters,
	// survives the filters and confirms with a finite TTC.
	p := newTestPipeline()
	bus := radar.BusSignals{SpeedKmh: 0, TorqueNm: math.NaN(), Gear: 3, GradeDeg: math.NaN()}

	ts := 1000.0
	var trackList []*tracks.Track
	for i := 0; i < 10; i++ {
		y := 40 - 0.3*float64(i)
		pts := []radar.Point{
			pointAt(-0.3, y, -6), pointAt(0, y, -6), pointAt(0.3, y, -6),
		}
		trackList, _ = p.Process(radar.NewFrame(ts, pts, bus))
		ts += 50
	}
	require.Len(t, trackList, 1)
	tr := trackList[0]
	assert.Equal(t, tracks.TrackConfirmed, tr.State)
	assert.False(t, math.IsInf(tr.TTC, 1))
	assert.Greater(t, tr.TTC, 0.0)
}

func TestOutlierFlagsAnnotatedOnFrame(t *testing.T) {
	// Stationary background plus one moving return: the mover's point
	// gets flagged.
	p := newTestPipeline()
	bus := radar.BusSignals{SpeedKmh: 36, TorqueNm: math.NaN(), Gear: 3, GradeDeg: math.NaN()}
	rng := rand.New(rand.NewSource(9))

	var pts []radar.Point
	for i := 0; i < 25; i++ {
		x := -15 + 30*rng.Float64()
		y := 5 + 50*rng.Float64()
		pts = append(pts, staticPointAt(x, y, 0, 10))
	}
	mover := staticPointAt(3, 25, 0, 10)
	mover.Doppler -= 8
	pts = append(pts, mover)

	frame := radar.NewFrame(1000, pts, bus)
	p.Process(frame)
	assert.True(t, frame.IsOutlier[25])
	assert.False(t, frame.IsOutlier[0])
}

func TestHistoryRecordsCycles(t *testing.T) {
	p := newTestPipeline()
	bus := radar.UnavailableBusSignals()
	for i := 0; i < 5; i++ {
		p.Process(radar.NewFrame(1000+50*float64(i), nil, bus))
	}
	assert.Equal(t, 5, p.History().Len())
	latest, ok := p.History().Latest()
	require.True(t, ok)
	assert.Equal(t, 1200.0, latest.Frame.TimestampMs)

	recent := p.History().Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, 1100.0, recent[0].Frame.TimestampMs)
	assert.Equal(t, 1200.0, recent[2].Frame.TimestampMs)
}

func TestHistoryRingOverwritesOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(radar.NewFrame(float64(i), nil, radar.UnavailableBusSignals()), nil)
	}
	assert.Equal(t, 3, h.Len())
	recent := h.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, 2.0, recent[0].Frame.TimestampMs)
	assert.Equal(t, 4.0, recent[2].Frame.TimestampMs)
}
