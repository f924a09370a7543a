package l1regrid

import (
	"time"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "regrid"

// Config controls gate cropping and time/beam regularisation.
type Config struct {
	WindowStart     time.Time     // zero means first sample
	WindowEnd       time.Time     // zero means last sample
	Cadence         time.Duration // zero means median input spacing
	MinValidSamples int           // per series, inside the window (default: 10)
	MaxGap          time.Duration // largest tolerated internal gap; zero disables
	GateMin         int           // radar gate number (default: 0)
	GateMax         int           // radar gate number; -1 means last gate
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json). Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		WindowStart:     cfg.GetWindowStart(),
		WindowEnd:       cfg.GetWindowEnd(),
		Cadence:         cfg.GetCadence(),
		MinValidSamples: cfg.GetMinValidSamples(),
		MaxGap:          cfg.GetMaxGap(),
		GateMin:         cfg.GetGateMin(),
		GateMax:         cfg.GetGateMax(),
	}
}

// Validate checks the data-independent parameters.
func (c *Config) Validate() error {
	if c.MinValidSamples < 2 {
		return mstid.Configf(stageName, "min_valid_samples", "must be at least 2, got %d", c.MinValidSamples)
	}
	if c.Cadence < 0 {
		return mstid.Configf(stageName, "cadence", "must be positive, got %v", c.Cadence)
	}
	if c.MaxGap < 0 {
		return mstid.Configf(stageName, "max_gap", "must be non-negative, got %v", c.MaxGap)
	}
	if !c.WindowStart.IsZero() && !c.WindowEnd.IsZero() && !c.WindowEnd.After(c.WindowStart) {
		return mstid.Configf(stageName, "window", "end %s is not after start %s",
			c.WindowEnd.Format(time.RFC3339), c.WindowStart.Format(time.RFC3339))
	}
	if c.GateMax != -1 && c.GateMax < c.GateMin {
		return mstid.Configf(stageName, "gate_max", "gate_max %d is below gate_min %d", c.GateMax, c.GateMin)
	}
	return nil
}

// WithWindow sets the processing window.
func (c *Config) WithWindow(start, end time.Time) *Config {
	c.WindowStart = start
	c.WindowEnd = end
	return c
}

// WithCadence sets the output cadence.
func (c *Config) WithCadence(d time.Duration) *Config {
	c.Cadence = d
	return c
}

// WithGates sets the inclusive gate band.
func (c *Config) WithGates(lo, hi int) *Config {
	c.GateMin = lo
	c.GateMax = hi
	return c
}

// WithMinValidSamples sets the per-series sample threshold.
func (c *Config) WithMinValidSamples(n int) *Config {
	c.MinValidSamples = n
	return c
}

// WithMaxGap sets the largest tolerated gap between valid samples.
func (c *Config) WithMaxGap(d time.Duration) *Config {
	c.MaxGap = d
	return c
}
