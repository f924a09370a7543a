package l5detect

import (
	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "detect"

// Config controls marker selection and region filtering.
type Config struct {
	RelativeThreshold float64 // markers must reach this fraction of the map maximum (default: 0.35)
	Neighborhood      int     // half-width of the local-maximum window in cells (default: 3)
	NoiseMargin       float64 // peaks at or below NoiseMargin × floor are dropped (default: 3)
	MinArea           int     // minimum region size in cells (default: 4)
	MaxSignals        int     // keep at most this many signals; 0 keeps all
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json). Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		RelativeThreshold: cfg.GetRelativeThreshold(),
		Neighborhood:      cfg.GetNeighborhood(),
		NoiseMargin:       cfg.GetNoiseMargin(),
		MinArea:           cfg.GetMinArea(),
		MaxSignals:        cfg.GetMaxSignals(),
	}
}

// Validate checks the thresholds.
func (c *Config) Validate() error {
	if !(c.RelativeThreshold > 0 && c.RelativeThreshold <= 1) {
		return mstid.Configf(stageName, "relative_threshold", "must be in (0, 1], got %g", c.RelativeThreshold)
	}
	if c.Neighborhood < 1 {
		return mstid.Configf(stageName, "neighborhood", "must be at least 1, got %d", c.Neighborhood)
	}
	if c.NoiseMargin < 0 {
		return mstid.Configf(stageName, "noise_margin", "must be non-negative, got %g", c.NoiseMargin)
	}
	if c.MinArea < 1 {
		return mstid.Configf(stageName, "min_area", "must be at least 1, got %d", c.MinArea)
	}
	if c.MaxSignals < 0 {
		return mstid.Configf(stageName, "max_signals", "must be non-negative, got %d", c.MaxSignals)
	}
	return nil
}

// WithThreshold sets the relative marker threshold.
func (c *Config) WithThreshold(rel float64) *Config {
	c.RelativeThreshold = rel
	return c
}

// WithNoiseMargin sets the floor margin.
func (c *Config) WithNoiseMargin(margin float64) *Config {
	c.NoiseMargin = margin
	return c
}

// WithMinArea sets the minimum region size.
func (c *Config) WithMinArea(n int) *Config {
	c.MinArea = n
	return c
}

// WithMaxSignals caps the number of reported signals.
func (c *Config) WithMaxSignals(n int) *Config {
	c.MaxSignals = n
	return c
}
