// Package config holds the tuning parameters consumed by the fusion
// pipeline. The schema is a flat JSON document of optional fields; any
// field omitted from the file falls back to the compiled-in default via
// the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are pointers so that "absent" and "zero" are distinguishable.
type TuningConfig struct {
	// Grid params
	GridCellSizeM *float64 `json:"grid_cell_size_m,omitempty"`
	GridXMinM     *float64 `json:"grid_x_min_m,omitempty"`
	GridXMaxM     *float64 `json:"grid_x_max_m,omitempty"`
	GridYMinM     *float64 `json:"grid_y_min_m,omitempty"`
	GridYMaxM     *float64 `json:"grid_y_max_m,omitempty"`

	// Clustering params
	EpsilonPosM   *float64 `json:"epsilon_pos_m,omitempty"`
	EpsilonVelMps *float64 `json:"epsilon_vel_mps,omitempty"`
	MinPts        *int     `json:"min_pts,omitempty"`

	// Reflection filter params
	SpeedSimilarityThresholdMps *float64 `json:"speed_similarity_threshold_mps,omitempty"`
	ReflectionAzimuthTolDeg     *float64 `json:"reflection_azimuth_tol_deg,omitempty"`
	ReflectionMinRangeSepM      *float64 `json:"reflection_min_range_sep_m,omitempty"`

	// Ego-motion params
	RansacInlierThresholdMps *float64  `json:"ransac_inlier_threshold_mps,omitempty"`
	RansacIterations         *int      `json:"ransac_iterations,omitempty"`
	EgoProcessNoise          []float64 `json:"ego_process_noise,omitempty"`
	EgoMeasurementNoise      []float64 `json:"ego_measurement_noise,omitempty"`
	MaxPlausibleSpeedMps     *float64  `json:"max_plausible_speed_mps,omitempty"`
	ImplausibleSpeedNoise    *float64  `json:"implausible_speed_noise_factor,omitempty"`
	IIRAlpha                 *float64  `json:"iir_alpha,omitempty"`
	StationarySpeedMps       *float64  `json:"stationary_speed_mps,omitempty"`

	// Motion classification params
	TurnYawRateThreshold *float64 `json:"turn_yaw_rate_threshold,omitempty"`
	TurnConfirmSamples   *int     `json:"turn_confirm_samples,omitempty"`

	// Barrier detection params
	BarrierYMinM          *float64 `json:"barrier_y_min_m,omitempty"`
	BarrierYMaxM          *float64 `json:"barrier_y_max_m,omitempty"`
	BarrierDefaultXMinM   *float64 `json:"barrier_default_x_min_m,omitempty"`
	BarrierDefaultXMaxM   *float64 `json:"barrier_default_x_max_m,omitempty"`
	BarrierSmoothingAlpha *float64 `json:"barrier_smoothing_alpha,omitempty"`

	// Cluster filter params
	MinOutlierClusterRatio *float64 `json:"min_outlier_cluster_ratio,omitempty"`
	StaticBoxXMinM         *float64 `json:"static_box_x_min_m,omitempty"`
	StaticBoxXMaxM         *float64 `json:"static_box_x_max_m,omitempty"`
	StaticBoxYMinM         *float64 `json:"static_box_y_min_m,omitempty"`
	StaticBoxYMaxM         *float64 `json:"static_box_y_max_m,omitempty"`

	// Tracker params
	ConfirmHits           *int     `json:"confirm_hits,omitempty"`
	ConfirmWindow         *int     `json:"confirm_window,omitempty"`
	MaxMisses             *int     `json:"max_misses,omitempty"`
	MaxMissesConfirmed    *int     `json:"max_misses_confirmed,omitempty"`
	MaxTracks             *int     `json:"max_tracks,omitempty"`
	GatingDistanceSquared *float64 `json:"gating_distance_squared,omitempty"`
	TrackProcessNoisePos  *float64 `json:"track_process_noise_pos,omitempty"`
	TrackProcessNoiseVel  *float64 `json:"track_process_noise_vel,omitempty"`
	TrackProcessNoiseAcc  *float64 `json:"track_process_noise_acc,omitempty"`
	TrackMeasurementNoise *float64 `json:"track_measurement_noise,omitempty"`
	ModelStayProbability  *float64 `json:"model_stay_probability,omitempty"`

	// Time-to-collision category thresholds
	TTCCriticalSecs *float64 `json:"ttc_critical_secs,omitempty"`
	TTCWarningSecs  *float64 `json:"ttc_warning_secs,omitempty"`

	// Vehicle params
	VehicleMassKg  *float64 `json:"vehicle_mass_kg,omitempty"`
	DrivelineRatio *float64 `json:"driveline_ratio,omitempty"`
	WheelRadiusM   *float64 `json:"wheel_radius_m,omitempty"`
}

// Default returns a TuningConfig with all fields unset so that every
// accessor yields its compiled-in default. This is the configuration the
// pipeline runs with when no tuning file is supplied.
func Default() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid. It enforces the
// clustering precondition epsilon_pos ≤ grid cell size, which the
// grid-accelerated neighbour search relies on.
func (c *TuningConfig) Validate() error {
	if c.EpsilonPosM != nil && *c.EpsilonPosM <= 0 {
		return fmt.Errorf("epsilon_pos_m must be positive, got %f", *c.EpsilonPosM)
	}
	if c.EpsilonVelMps != nil && *c.EpsilonVelMps <= 0 {
		return fmt.Errorf("epsilon_vel_mps must be positive, got %f", *c.EpsilonVelMps)
	}
	if c.MinPts != nil && *c.MinPts < 1 {
		return fmt.Errorf("min_pts must be at least 1, got %d", *c.MinPts)
	}
	if eps, cell := c.GetEpsilonPosM(), c.GetGridCellSizeM(); eps > cell {
		return fmt.Errorf("epsilon_pos_m (%f) must not exceed grid_cell_size_m (%f)", eps, cell)
	}
	if c.GetGridXMinM() >= c.GetGridXMaxM() || c.GetGridYMinM() >= c.GetGridYMaxM() {
		return fmt.Errorf("grid extent is empty: x [%f, %f], y [%f, %f]",
			c.GetGridXMinM(), c.GetGridXMaxM(), c.GetGridYMinM(), c.GetGridYMaxM())
	}
	if pn := c.EgoProcessNoise; pn != nil && len(pn) != 5 {
		return fmt.Errorf("ego_process_noise must have 5 entries, got %d", len(pn))
	}
	if mn := c.EgoMeasurementNoise; mn != nil && len(mn) != 5 {
		return fmt.Errorf("ego_measurement_noise must have 5 entries, got %d", len(mn))
	}
	if c.IIRAlpha != nil && (*c.IIRAlpha <= 0 || *c.IIRAlpha > 1) {
		return fmt.Errorf("iir_alpha must be in (0, 1], got %f", *c.IIRAlpha)
	}
	if c.BarrierSmoothingAlpha != nil && (*c.BarrierSmoothingAlpha <= 0 || *c.BarrierSmoothingAlpha > 1) {
		return fmt.Errorf("barrier_smoothing_alpha must be in (0, 1], got %f", *c.BarrierSmoothingAlpha)
	}
	if c.ModelStayProbability != nil && (*c.ModelStayProbability <= 0 || *c.ModelStayProbability >= 1) {
		return fmt.Errorf("model_stay_probability must be in (0, 1), got %f", *c.ModelStayProbability)
	}
	if m, n := c.GetConfirmHits(), c.GetConfirmWindow(); m > n {
		return fmt.Errorf("confirm_hits (%d) must not exceed confirm_window (%d)", m, n)
	}
	return nil
}

// Grid accessors.

func (c *TuningConfig) GetGridCellSizeM() float64 {
	if c.GridCellSizeM == nil {
		return 1.0
	}
	return *c.GridCellSizeM
}

func (c *TuningConfig) GetGridXMinM() float64 {
	if c.GridXMinM == nil {
		return -40.0
	}
	return *c.GridXMinM
}

func (c *TuningConfig) GetGridXMaxM() float64 {
	if c.GridXMaxM == nil {
		return 40.0
	}
	return *c.GridXMaxM
}

func (c *TuningConfig) GetGridYMinM() float64 {
	if c.GridYMinM == nil {
		return 0.0
	}
	return *c.GridYMinM
}

func (c *TuningConfig) GetGridYMaxM() float64 {
	if c.GridYMaxM == nil {
		return 80.0
	}
	return *c.GridYMaxM
}

// Clustering accessors.

func (c *TuningConfig) GetEpsilonPosM() float64 {
	if c.EpsilonPosM == nil {
		return 1.0
	}
	return *c.EpsilonPosM
}

func (c *TuningConfig) GetEpsilonVelMps() float64 {
	if c.EpsilonVelMps == nil {
		return 0.5
	}
	return *c.EpsilonVelMps
}

func (c *TuningConfig) GetMinPts() int {
	if c.MinPts == nil {
		return 3
	}
	return *c.MinPts
}

// Reflection filter accessors.

func (c *TuningConfig) GetSpeedSimilarityThresholdMps() float64 {
	if c.SpeedSimilarityThresholdMps == nil {
		return 0.25
	}
	return *c.SpeedSimilarityThresholdMps
}

func (c *TuningConfig) GetReflectionAzimuthTolDeg() float64 {
	if c.ReflectionAzimuthTolDeg == nil {
		return 8.0
	}
	return *c.ReflectionAzimuthTolDeg
}

func (c *TuningConfig) GetReflectionMinRangeSepM() float64 {
	if c.ReflectionMinRangeSepM == nil {
		return 1.5
	}
	return *c.ReflectionMinRangeSepM
}

// Ego-motion accessors.

func (c *TuningConfig) GetRansacInlierThresholdMps() float64 {
	if c.RansacInlierThresholdMps == nil {
		return 0.4
	}
	return *c.RansacInlierThresholdMps
}

func (c *TuningConfig) GetRansacIterations() int {
	if c.RansacIterations == nil {
		return 40
	}
	return *c.RansacIterations
}

// GetEgoProcessNoise returns the diagonal of the ego filter process noise Q
// for state [vx, vy, ax, ay, gradeBias].
func (c *TuningConfig) GetEgoProcessNoise() [5]float64 {
	if len(c.EgoProcessNoise) == 5 {
		var q [5]float64
		copy(q[:], c.EgoProcessNoise)
		return q
	}
	return [5]float64{0.1, 0.1, 0.5, 0.5, 0.2}
}

// GetEgoMeasurementNoise returns the fixed measurement-noise template: one
// variance per channel [busSpeed, ransacVx, ransacVy, torqueAccel, gradeBias].
func (c *TuningConfig) GetEgoMeasurementNoise() [5]float64 {
	if len(c.EgoMeasurementNoise) == 5 {
		var r [5]float64
		copy(r[:], c.EgoMeasurementNoise)
		return r
	}
	return [5]float64{0.2, 5.0, 1.0, 1.0, 0.3}
}

func (c *TuningConfig) GetMaxPlausibleSpeedMps() float64 {
	if c.MaxPlausibleSpeedMps == nil {
		return 70.0
	}
	return *c.MaxPlausibleSpeedMps
}

func (c *TuningConfig) GetImplausibleSpeedNoiseFactor() float64 {
	if c.ImplausibleSpeedNoise == nil {
		return 25.0
	}
	return *c.ImplausibleSpeedNoise
}

func (c *TuningConfig) GetIIRAlpha() float64 {
	if c.IIRAlpha == nil {
		return 0.2
	}
	return *c.IIRAlpha
}

func (c *TuningConfig) GetStationarySpeedMps() float64 {
	if c.StationarySpeedMps == nil {
		return 0.5
	}
	return *c.StationarySpeedMps
}

// Motion classification accessors.

func (c *TuningConfig) GetTurnYawRateThreshold() float64 {
	if c.TurnYawRateThreshold == nil {
		return 0.06
	}
	return *c.TurnYawRateThreshold
}

func (c *TuningConfig) GetTurnConfirmSamples() int {
	if c.TurnConfirmSamples == nil {
		return 5
	}
	return *c.TurnConfirmSamples
}

// Barrier detection accessors.

func (c *TuningConfig) GetBarrierYMinM() float64 {
	if c.BarrierYMinM == nil {
		return 2.0
	}
	return *c.BarrierYMinM
}

func (c *TuningConfig) GetBarrierYMaxM() float64 {
	if c.BarrierYMaxM == nil {
		return 50.0
	}
	return *c.BarrierYMaxM
}

func (c *TuningConfig) GetBarrierDefaultXMinM() float64 {
	if c.BarrierDefaultXMinM == nil {
		return -8.0
	}
	return *c.BarrierDefaultXMinM
}

func (c *TuningConfig) GetBarrierDefaultXMaxM() float64 {
	if c.BarrierDefaultXMaxM == nil {
		return 8.0
	}
	return *c.BarrierDefaultXMaxM
}

func (c *TuningConfig) GetBarrierSmoothingAlpha() float64 {
	if c.BarrierSmoothingAlpha == nil {
		return 0.3
	}
	return *c.BarrierSmoothingAlpha
}

// Cluster filter accessors.

func (c *TuningConfig) GetMinOutlierClusterRatio() float64 {
	if c.MinOutlierClusterRatio == nil {
		return 0.5
	}
	return *c.MinOutlierClusterRatio
}

func (c *TuningConfig) GetStaticBoxXMinM() float64 {
	if c.StaticBoxXMinM == nil {
		return -4.0
	}
	return *c.StaticBoxXMinM
}

func (c *TuningConfig) GetStaticBoxXMaxM() float64 {
	if c.StaticBoxXMaxM == nil {
		return 4.0
	}
	return *c.StaticBoxXMaxM
}

func (c *TuningConfig) GetStaticBoxYMinM() float64 {
	if c.StaticBoxYMinM == nil {
		return 0.0
	}
	return *c.StaticBoxYMinM
}

func (c *TuningConfig) GetStaticBoxYMaxM() float64 {
	if c.StaticBoxYMaxM == nil {
		return 30.0
	}
	return *c.StaticBoxYMaxM
}

// Tracker accessors.

func (c *TuningConfig) GetConfirmHits() int {
	if c.ConfirmHits == nil {
		return 3
	}
	return *c.ConfirmHits
}

func (c *TuningConfig) GetConfirmWindow() int {
	if c.ConfirmWindow == nil {
		return 5
	}
	return *c.ConfirmWindow
}

func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 3
	}
	return *c.MaxMisses
}

func (c *TuningConfig) GetMaxMissesConfirmed() int {
	if c.MaxMissesConfirmed == nil {
		return 10
	}
	return *c.MaxMissesConfirmed
}

func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 64
	}
	return *c.MaxTracks
}

func (c *TuningConfig) GetGatingDistanceSquared() float64 {
	if c.GatingDistanceSquared == nil {
		return 16.0
	}
	return *c.GatingDistanceSquared
}

func (c *TuningConfig) GetTrackProcessNoisePos() float64 {
	if c.TrackProcessNoisePos == nil {
		return 0.1
	}
	return *c.TrackProcessNoisePos
}

func (c *TuningConfig) GetTrackProcessNoiseVel() float64 {
	if c.TrackProcessNoiseVel == nil {
		return 0.5
	}
	return *c.TrackProcessNoiseVel
}

func (c *TuningConfig) GetTrackProcessNoiseAcc() float64 {
	if c.TrackProcessNoiseAcc == nil {
		return 1.0
	}
	return *c.TrackProcessNoiseAcc
}

func (c *TuningConfig) GetTrackMeasurementNoise() float64 {
	if c.TrackMeasurementNoise == nil {
		return 0.3
	}
	return *c.TrackMeasurementNoise
}

func (c *TuningConfig) GetModelStayProbability() float64 {
	if c.ModelStayProbability == nil {
		return 0.95
	}
	return *c.ModelStayProbability
}

// Time-to-collision accessors.

func (c *TuningConfig) GetTTCCriticalSecs() float64 {
	if c.TTCCriticalSecs == nil {
		return 1.5
	}
	return *c.TTCCriticalSecs
}

func (c *TuningConfig) GetTTCWarningSecs() float64 {
	if c.TTCWarningSecs == nil {
		return 3.0
	}
	return *c.TTCWarningSecs
}

// Vehicle accessors.

func (c *TuningConfig) GetVehicleMassKg() float64 {
	if c.VehicleMassKg == nil {
		return 1600.0
	}
	return *c.VehicleMassKg
}

func (c *TuningConfig) GetDrivelineRatio() float64 {
	if c.DrivelineRatio == nil {
		return 9.0
	}
	return *c.DrivelineRatio
}

func (c *TuningConfig) GetWheelRadiusM() float64 {
	if c.WheelRadiusM == nil {
		return 0.32
	}
	return *c.WheelRadiusM
}
