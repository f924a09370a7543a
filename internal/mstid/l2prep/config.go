package l2prep

import (
	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "prep"

// Config describes the bandpass filter.
type Config struct {
	NumTaps int     // odd, >= 3 (default: 31)
	LowHz   float64 // lower cutoff (default: 0.0003)
	HighHz  float64 // upper cutoff (default: 0.0012)
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json). Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		NumTaps: cfg.GetFilterNumTaps(),
		LowHz:   cfg.GetFilterLowHz(),
		HighHz:  cfg.GetFilterHighHz(),
	}
}

// Validate checks the filter against a sampling rate of fs Hz.
func (c *Config) Validate(fs float64) error {
	if c.NumTaps < 3 || c.NumTaps%2 == 0 {
		return mstid.Configf(stageName, "filter_num_taps", "must be odd and >= 3, got %d", c.NumTaps)
	}
	if c.LowHz <= 0 {
		return mstid.Configf(stageName, "filter_low_hz", "must be positive, got %g", c.LowHz)
	}
	if c.HighHz <= c.LowHz {
		return mstid.Configf(stageName, "filter_high_hz", "must exceed filter_low_hz %g, got %g", c.LowHz, c.HighHz)
	}
	if nyq := fs / 2; c.HighHz >= nyq {
		return mstid.Configf(stageName, "filter_high_hz", "must be below the Nyquist frequency %g Hz, got %g", nyq, c.HighHz)
	}
	return nil
}

// WithBand sets the filter cutoffs.
func (c *Config) WithBand(lowHz, highHz float64) *Config {
	c.LowHz = lowHz
	c.HighHz = highHz
	return c
}

// WithNumTaps sets the filter length.
func (c *Config) WithNumTaps(n int) *Config {
	c.NumTaps = n
	return c
}
