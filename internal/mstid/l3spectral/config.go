package l3spectral

import (
	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "spectrum"

// GateAveraging selects how range gates are turned into array elements.
type GateAveraging string

const (
	// GateNone uses the beams at a single representative gate.
	GateNone GateAveraging = "none"
	// GateMatrix averages the beam cross-spectral matrices over gates.
	GateMatrix GateAveraging = "matrix"
	// GateIncoherent keeps one beam group per gate; the mapper averages
	// their pseudo-spectra.
	GateIncoherent GateAveraging = "incoherent"
	// GateAperture treats every (beam, gate) cell as an element.
	GateAperture GateAveraging = "aperture"
)

// Valid reports whether m is a known mode.
func (m GateAveraging) Valid() bool {
	switch m {
	case GateNone, GateMatrix, GateIncoherent, GateAperture:
		return true
	}
	return false
}

// Config controls bin selection and spatial grouping.
type Config struct {
	GateAveraging      GateAveraging
	RepresentativeGate int     // radar gate number for GateNone; -1 means the middle gate
	FreqMinHz          float64 // inclusive
	FreqMaxHz          float64 // inclusive
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json). Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The analysis
// band defaults to the filter passband.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		GateAveraging:      GateAveraging(cfg.GetGateAveraging()),
		RepresentativeGate: cfg.GetRepresentativeGate(),
		FreqMinHz:          cfg.GetFreqMinHz(),
		FreqMaxHz:          cfg.GetFreqMaxHz(),
	}
}

// Validate checks the data-independent parameters.
func (c *Config) Validate() error {
	if !c.GateAveraging.Valid() {
		return mstid.Configf(stageName, "gate_averaging",
			"unknown mode %q (want none, matrix, incoherent or aperture)", c.GateAveraging)
	}
	if c.FreqMinHz < 0 {
		return mstid.Configf(stageName, "freq_min_hz", "must be non-negative, got %g", c.FreqMinHz)
	}
	if c.FreqMaxHz <= c.FreqMinHz {
		return mstid.Configf(stageName, "freq_max_hz", "must exceed freq_min_hz %g, got %g", c.FreqMinHz, c.FreqMaxHz)
	}
	return nil
}

// WithGateAveraging sets the grouping mode.
func (c *Config) WithGateAveraging(m GateAveraging) *Config {
	c.GateAveraging = m
	return c
}

// WithBand sets the analysis band.
func (c *Config) WithBand(minHz, maxHz float64) *Config {
	c.FreqMinHz = minHz
	c.FreqMaxHz = maxHz
	return c
}
