package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for an MSTID analysis run.
// Every field is optional; the Get* accessors fall back to built-in defaults
// so partial files are safe.
type TuningConfig struct {
	// Dataset metadata (informational to the core)
	Radar        *string `json:"radar,omitempty"`
	Parameter    *string `json:"parameter,omitempty"`     // "p_l", "v", "w_l", ...
	ScatterModel *string `json:"scatter_model,omitempty"` // fov model tag

	// Grid regulariser params
	WindowStart     *string `json:"window_start,omitempty"` // RFC3339; empty means first sample
	WindowEnd       *string `json:"window_end,omitempty"`   // RFC3339; empty means last sample
	Cadence         *string `json:"cadence,omitempty"`      // duration string like "120s"; empty means median spacing
	MinValidSamples *int    `json:"min_valid_samples,omitempty"`
	MaxGap          *string `json:"max_gap,omitempty"` // duration string; "0s" disables
	GateMin         *int    `json:"gate_min,omitempty"`
	GateMax         *int    `json:"gate_max,omitempty"` // -1 means last gate

	// Preprocessor params
	FilterNumTaps *int     `json:"filter_num_taps,omitempty"`
	FilterLowHz   *float64 `json:"filter_low_hz,omitempty"`
	FilterHighHz  *float64 `json:"filter_high_hz,omitempty"`

	// Spectral estimator params
	GateAveraging      *string  `json:"gate_averaging,omitempty"` // none | matrix | incoherent | aperture
	RepresentativeGate *int     `json:"representative_gate,omitempty"`
	FreqMinHz          *float64 `json:"freq_min_hz,omitempty"` // defaults to filter_low_hz
	FreqMaxHz          *float64 `json:"freq_max_hz,omitempty"` // defaults to filter_high_hz

	// Wavenumber mapper params
	NumSignals         *int     `json:"num_signals,omitempty"`
	KxMax              *float64 `json:"kx_max,omitempty"` // rad/km
	KyMax              *float64 `json:"ky_max,omitempty"` // rad/km
	Dkx                *float64 `json:"dkx,omitempty"`    // rad/km
	Dky                *float64 `json:"dky,omitempty"`    // rad/km
	Combine            *string  `json:"combine,omitempty"` // sum | peak | matrix
	ConditionThreshold *float64 `json:"condition_threshold,omitempty"`
	MinEigenvalue      *float64 `json:"min_eigenvalue,omitempty"`
	Workers            *int     `json:"workers,omitempty"`

	// Signal detector params
	RelativeThreshold *float64 `json:"relative_threshold,omitempty"`
	Neighborhood      *int     `json:"neighborhood,omitempty"`
	NoiseMargin       *float64 `json:"noise_margin,omitempty"`
	MinArea           *int     `json:"min_area,omitempty"`
	MaxSignals        *int     `json:"max_signals,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,             // from cmd/mstid/
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/mstid/l1regrid/
		"../../../../" + DefaultConfigPath,    // from internal/mstid/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are individually sane.
// Cross-field and data-dependent checks (cutoffs against Nyquist, p against
// beam count) are done by each stage's own Validate.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*string{
		"window_start": c.WindowStart,
		"window_end":   c.WindowEnd,
	} {
		if v != nil && *v != "" {
			if _, err := time.Parse(time.RFC3339, *v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	for name, v := range map[string]*string{
		"cadence": c.Cadence,
		"max_gap": c.MaxGap,
	} {
		if v != nil && *v != "" {
			d, err := time.ParseDuration(*v)
			if err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
			if d < 0 {
				return fmt.Errorf("%s must be non-negative, got %s", name, *v)
			}
		}
	}

	if c.MinValidSamples != nil && *c.MinValidSamples < 2 {
		return fmt.Errorf("min_valid_samples must be at least 2, got %d", *c.MinValidSamples)
	}
	if c.FilterNumTaps != nil && (*c.FilterNumTaps < 3 || *c.FilterNumTaps%2 == 0) {
		return fmt.Errorf("filter_num_taps must be odd and >= 3, got %d", *c.FilterNumTaps)
	}
	if c.NumSignals != nil && *c.NumSignals < 1 {
		return fmt.Errorf("num_signals must be positive, got %d", *c.NumSignals)
	}
	if c.RelativeThreshold != nil && (*c.RelativeThreshold < 0 || *c.RelativeThreshold > 1) {
		return fmt.Errorf("relative_threshold must be between 0 and 1, got %f", *c.RelativeThreshold)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	return nil
}

// GetRadar returns the radar code or the default.
func (c *TuningConfig) GetRadar() string {
	if c.Radar == nil {
		return ""
	}
	return *c.Radar
}

// GetParameter returns the radar parameter name or the default.
func (c *TuningConfig) GetParameter() string {
	if c.Parameter == nil {
		return "p_l"
	}
	return *c.Parameter
}

// GetScatterModel returns the field-of-view model tag or the default.
func (c *TuningConfig) GetScatterModel() string {
	if c.ScatterModel == nil {
		return "standard"
	}
	return *c.ScatterModel
}

// GetWindowStart parses WindowStart. The zero time means "first sample".
func (c *TuningConfig) GetWindowStart() time.Time {
	return parseTime(c.WindowStart)
}

// GetWindowEnd parses WindowEnd. The zero time means "last sample".
func (c *TuningConfig) GetWindowEnd() time.Time {
	return parseTime(c.WindowEnd)
}

func parseTime(v *string) time.Time {
	if v == nil || *v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetCadence parses Cadence. Zero means "derive from the data".
func (c *TuningConfig) GetCadence() time.Duration {
	if c.Cadence == nil || *c.Cadence == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Cadence)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetMinValidSamples returns the min_valid_samples value or the default.
func (c *TuningConfig) GetMinValidSamples() int {
	if c.MinValidSamples == nil {
		return 10
	}
	return *c.MinValidSamples
}

// GetMaxGap parses MaxGap. Zero disables the gap check.
func (c *TuningConfig) GetMaxGap() time.Duration {
	if c.MaxGap == nil || *c.MaxGap == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.MaxGap)
	if err != nil {
		return 0
	}
	return d
}

// GetGateMin returns the gate_min value or the default.
func (c *TuningConfig) GetGateMin() int {
	if c.GateMin == nil {
		return 0
	}
	return *c.GateMin
}

// GetGateMax returns the gate_max value or the default (-1, last gate).
func (c *TuningConfig) GetGateMax() int {
	if c.GateMax == nil {
		return -1
	}
	return *c.GateMax
}

// GetFilterNumTaps returns the filter_num_taps value or the default.
func (c *TuningConfig) GetFilterNumTaps() int {
	if c.FilterNumTaps == nil {
		return 31
	}
	return *c.FilterNumTaps
}

// GetFilterLowHz returns the filter_low_hz value or the default.
func (c *TuningConfig) GetFilterLowHz() float64 {
	if c.FilterLowHz == nil {
		return 0.0003
	}
	return *c.FilterLowHz
}

// GetFilterHighHz returns the filter_high_hz value or the default.
func (c *TuningConfig) GetFilterHighHz() float64 {
	if c.FilterHighHz == nil {
		return 0.0012
	}
	return *c.FilterHighHz
}

// GetGateAveraging returns the gate_averaging mode or the default.
func (c *TuningConfig) GetGateAveraging() string {
	if c.GateAveraging == nil {
		return "aperture"
	}
	return *c.GateAveraging
}

// GetRepresentativeGate returns the representative_gate index or the
// default (-1, middle of the gate band).
func (c *TuningConfig) GetRepresentativeGate() int {
	if c.RepresentativeGate == nil {
		return -1
	}
	return *c.RepresentativeGate
}

// GetFreqMinHz returns freq_min_hz, falling back to the filter low cutoff.
func (c *TuningConfig) GetFreqMinHz() float64 {
	if c.FreqMinHz == nil {
		return c.GetFilterLowHz()
	}
	return *c.FreqMinHz
}

// GetFreqMaxHz returns freq_max_hz, falling back to the filter high cutoff.
func (c *TuningConfig) GetFreqMaxHz() float64 {
	if c.FreqMaxHz == nil {
		return c.GetFilterHighHz()
	}
	return *c.FreqMaxHz
}

// GetNumSignals returns the num_signals value or the default.
func (c *TuningConfig) GetNumSignals() int {
	if c.NumSignals == nil {
		return 1
	}
	return *c.NumSignals
}

// GetKxMax returns the kx_max value or the default.
func (c *TuningConfig) GetKxMax() float64 {
	if c.KxMax == nil {
		return 0.05
	}
	return *c.KxMax
}

// GetKyMax returns the ky_max value or the default.
func (c *TuningConfig) GetKyMax() float64 {
	if c.KyMax == nil {
		return 0.05
	}
	return *c.KyMax
}

// GetDkx returns the dkx value or the default.
func (c *TuningConfig) GetDkx() float64 {
	if c.Dkx == nil {
		return 0.001
	}
	return *c.Dkx
}

// GetDky returns the dky value or the default.
func (c *TuningConfig) GetDky() float64 {
	if c.Dky == nil {
		return 0.001
	}
	return *c.Dky
}

// GetCombine returns the combination rule or the default.
func (c *TuningConfig) GetCombine() string {
	if c.Combine == nil {
		return "sum"
	}
	return *c.Combine
}

// GetConditionThreshold returns the condition_threshold value or the default.
func (c *TuningConfig) GetConditionThreshold() float64 {
	if c.ConditionThreshold == nil {
		return 1e-6
	}
	return *c.ConditionThreshold
}

// GetMinEigenvalue returns the min_eigenvalue value or the default.
func (c *TuningConfig) GetMinEigenvalue() float64 {
	if c.MinEigenvalue == nil {
		return 1e-10
	}
	return *c.MinEigenvalue
}

// GetWorkers returns the workers value or the default (0, GOMAXPROCS).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetRelativeThreshold returns the relative_threshold value or the default.
func (c *TuningConfig) GetRelativeThreshold() float64 {
	if c.RelativeThreshold == nil {
		return 0.35
	}
	return *c.RelativeThreshold
}

// GetNeighborhood returns the neighborhood half-width or the default.
func (c *TuningConfig) GetNeighborhood() int {
	if c.Neighborhood == nil {
		return 3
	}
	return *c.Neighborhood
}

// GetNoiseMargin returns the noise_margin value or the default.
func (c *TuningConfig) GetNoiseMargin() float64 {
	if c.NoiseMargin == nil {
		return 3.0
	}
	return *c.NoiseMargin
}

// GetMinArea returns the min_area value or the default.
func (c *TuningConfig) GetMinArea() int {
	if c.MinArea == nil {
		return 4
	}
	return *c.MinArea
}

// GetMaxSignals returns the max_signals value or the default (0, unlimited).
func (c *TuningConfig) GetMaxSignals() int {
	if c.MaxSignals == nil {
		return 0
	}
	return *c.MaxSignals
}
