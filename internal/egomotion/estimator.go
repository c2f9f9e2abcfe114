package egomotion

import (
	"math"
	"math/rand"

	"github.com/banshee-data/crosswatch/internal/config"
	"github.com/banshee-data/crosswatch/internal/monitoring"
	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/units"
)

// Estimate is one cycle's fused ego-motion output.
type Estimate struct {
	Vx float64 // filtered longitudinal velocity (m/s)
	Vy float64 // filtered lateral velocity (m/s)
	Ax float64 // filtered longitudinal acceleration (m/s²)

	// RansacVx/Vy are the raw stationary-field fit for this cycle, NaN
	// when the fit did not run or failed.
	RansacVx, RansacVy float64
	// SmoothedVx/Vy are the IIR-smoothed RANSAC velocities, carried as a
	// secondary signal alongside the Kalman estimate.
	SmoothedVx, SmoothedVy float64

	// OutlierIndices are the moving-object candidate points rejected by
	// the stationary-field consensus.
	OutlierIndices []int
}

// Estimator fuses the radar's view of the stationary background with
// the vehicle bus through the ego Kalman filter. One instance persists
// for the life of the pipeline; Update mutates it once per cycle.
type Estimator struct {
	filter *Filter
	rng    *rand.Rand

	fitParams FitParams
	iirAlpha  float64

	maxPlausibleSpeed    float64
	implausibleNoiseFact float64

	massKg      float64
	driveRatio  float64
	wheelRadius float64

	smoothedVx, smoothedVy float64
}

// NewEstimator builds an estimator from tuning. The random source only
// drives RANSAC sampling; pass a seeded source for reproducible runs.
func NewEstimator(cfg *config.TuningConfig, rng *rand.Rand) *Estimator {
	return &Estimator{
		filter: NewFilter(cfg.GetEgoProcessNoise(), cfg.GetEgoMeasurementNoise()),
		rng:    rng,
		fitParams: FitParams{
			InlierThresholdMps: cfg.GetRansacInlierThresholdMps(),
			Iterations:         cfg.GetRansacIterations(),
		},
		iirAlpha:             cfg.GetIIRAlpha(),
		maxPlausibleSpeed:    cfg.GetMaxPlausibleSpeedMps(),
		implausibleNoiseFact: cfg.GetImplausibleSpeedNoiseFactor(),
		massKg:               cfg.GetVehicleMassKg(),
		driveRatio:           cfg.GetDrivelineRatio(),
		wheelRadius:          cfg.GetWheelRadiusM(),
	}
}

// Update runs one estimation cycle: RANSAC over the point cloud, a
// filter predict, then per-channel corrections from the bus and the
// fit. A NaN bus signal skips only its own channel; the filter then
// coasts on prediction for that channel.
func (e *Estimator) Update(xs, ys, dopplers []float64, bus radar.BusSignals, dt float64) Estimate {
	e.filter.Predict(dt)

	fit, fitOK := FitEgoVelocity(xs, ys, dopplers, e.fitParams, e.rng)

	// Primary longitudinal measurement: bus speed. Implausible readings
	// (stuck or corrupted sensors) still correct, but with the noise
	// template widened so they barely move the state.
	speedMps := units.KmhToMps(bus.SpeedKmh)
	if !math.IsNaN(bus.Gear) && bus.Gear < 0 {
		speedMps = -speedMps
	}
	noiseScale := 1.0
	if math.Abs(speedMps) > e.maxPlausibleSpeed {
		noiseScale = e.implausibleNoiseFact
		monitoring.Logf("egomotion: implausible bus speed %.1f m/s, widening measurement noise", speedMps)
	}
	if !e.filter.Correct(ChannelBusSpeed, speedMps, noiseScale) {
		monitoring.Logf("egomotion: bus speed unavailable, coasting longitudinal channel")
	}

	if fitOK {
		e.filter.Correct(ChannelRansacVx, fit.Vx, 1)
		e.filter.Correct(ChannelRansacVy, fit.Vy, 1)
		e.smoothedVx = e.iirAlpha*fit.Vx + (1-e.iirAlpha)*e.smoothedVx
		e.smoothedVy = e.iirAlpha*fit.Vy + (1-e.iirAlpha)*e.smoothedVy
	}

	e.correctDynamics(bus)

	est := Estimate{
		Vx:         e.filter.Vx(),
		Vy:         e.filter.Vy(),
		Ax:         e.filter.Ax(),
		RansacVx:   math.NaN(),
		RansacVy:   math.NaN(),
		SmoothedVx: e.smoothedVx,
		SmoothedVy: e.smoothedVy,
	}
	if fitOK {
		est.RansacVx = fit.Vx
		est.RansacVy = fit.Vy
		est.OutlierIndices = fit.OutlierIndices
	}
	return est
}

// correctDynamics turns shaft torque and road grade into an
// acceleration measurement: a = T*ratio/(r*m) - g*sin(grade). When the
// grade signal is NaN the filter's own grade-bias estimate substitutes,
// and the bias channel is skipped that cycle.
func (e *Estimator) correctDynamics(bus radar.BusSignals) {
	gradeAccel := math.NaN()
	if !math.IsNaN(bus.GradeDeg) {
		gradeAccel = units.Gravity * math.Sin(units.DegToRad(bus.GradeDeg))
		e.filter.Correct(ChannelGradeBias, gradeAccel, 1)
	} else {
		monitoring.Logf("egomotion: road grade unavailable, using filtered grade bias")
		gradeAccel = e.filter.GradeBias()
	}

	if math.IsNaN(bus.TorqueNm) {
		return
	}
	wheelForce := bus.TorqueNm * e.driveRatio / e.wheelRadius
	accel := wheelForce/e.massKg - gradeAccel
	e.filter.Correct(ChannelTorqueAccel, accel, 1)
}

// Filter exposes the underlying Kalman filter for health inspection.
func (e *Estimator) Filter() *Filter { return e.filter }
