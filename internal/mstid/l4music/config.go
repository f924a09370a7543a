package l4music

import (
	"math"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "music"

// MaxGridPoints bounds each wavenumber axis.
const MaxGridPoints = 2001

// Combine selects how frequency bins are merged into one map.
type Combine string

const (
	// CombineSum adds the pseudo-spectra of every usable bin.
	CombineSum Combine = "sum"
	// CombinePeak keeps the pseudo-spectrum of the most powerful bin.
	CombinePeak Combine = "peak"
	// CombineMatrix sums the cross-spectral matrices of the usable bins
	// and decomposes once.
	CombineMatrix Combine = "matrix"
)

// Valid reports whether c is a known rule.
func (c Combine) Valid() bool {
	switch c {
	case CombineSum, CombinePeak, CombineMatrix:
		return true
	}
	return false
}

// Config controls the subspace split, the wavenumber grid and conditioning.
type Config struct {
	NumSignals         int     // p, signal subspace dimension (default: 1)
	KxMax              float64 // rad/km (default: 0.05)
	KyMax              float64 // rad/km (default: 0.05)
	Dkx                float64 // rad/km (default: 0.001)
	Dky                float64 // rad/km (default: 0.001)
	Combine            Combine // default: sum
	ConditionThreshold float64 // minimum λp/λ1 (default: 1e-6)
	MinEigenvalue      float64 // minimum λ1 (default: 1e-10)
	Workers            int     // concurrent bins; 0 means GOMAXPROCS
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json). Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		NumSignals:         cfg.GetNumSignals(),
		KxMax:              cfg.GetKxMax(),
		KyMax:              cfg.GetKyMax(),
		Dkx:                cfg.GetDkx(),
		Dky:                cfg.GetDky(),
		Combine:            Combine(cfg.GetCombine()),
		ConditionThreshold: cfg.GetConditionThreshold(),
		MinEigenvalue:      cfg.GetMinEigenvalue(),
		Workers:            cfg.GetWorkers(),
	}
}

// Validate checks the configuration against an array of numBeams beams.
func (c *Config) Validate(numBeams int) error {
	if c.NumSignals < 1 {
		return mstid.Configf(stageName, "num_signals", "must be at least 1, got %d", c.NumSignals)
	}
	if c.NumSignals >= numBeams {
		return mstid.Configf(stageName, "num_signals",
			"must be below the number of beams (%d), got %d", numBeams, c.NumSignals)
	}
	if !c.Combine.Valid() {
		return mstid.Configf(stageName, "combine", "unknown rule %q (want sum, peak or matrix)", c.Combine)
	}
	if _, err := axis("kx", c.KxMax, c.Dkx); err != nil {
		return err
	}
	if _, err := axis("ky", c.KyMax, c.Dky); err != nil {
		return err
	}
	if c.ConditionThreshold < 0 || c.ConditionThreshold >= 1 {
		return mstid.Configf(stageName, "condition_threshold", "must be in [0, 1), got %g", c.ConditionThreshold)
	}
	if c.MinEigenvalue < 0 {
		return mstid.Configf(stageName, "min_eigenvalue", "must be non-negative, got %g", c.MinEigenvalue)
	}
	if c.Workers < 0 {
		return mstid.Configf(stageName, "workers", "must be non-negative, got %d", c.Workers)
	}
	return nil
}

// axis returns the symmetric grid -n*step .. n*step with n = round(extent/step).
func axis(name string, extent, step float64) ([]float64, error) {
	if !(extent > 0) || math.IsInf(extent, 0) {
		return nil, mstid.Configf(stageName, name+"_max", "must be positive, got %g", extent)
	}
	if !(step > 0) {
		return nil, mstid.Configf(stageName, "d"+name, "must be positive, got %g", step)
	}
	if step > extent {
		return nil, mstid.Configf(stageName, "d"+name, "step %g exceeds extent %g", step, extent)
	}
	n := int(math.Round(extent / step))
	if 2*n+1 > MaxGridPoints {
		return nil, mstid.Configf(stageName, "d"+name,
			"%d points exceeds the limit of %d", 2*n+1, MaxGridPoints)
	}
	out := make([]float64, 2*n+1)
	for i := range out {
		out[i] = float64(i-n) * step
	}
	return out, nil
}

// WithNumSignals sets p.
func (c *Config) WithNumSignals(p int) *Config {
	c.NumSignals = p
	return c
}

// WithGrid sets a square wavenumber grid.
func (c *Config) WithGrid(kMax, dk float64) *Config {
	c.KxMax, c.KyMax = kMax, kMax
	c.Dkx, c.Dky = dk, dk
	return c
}

// WithCombine sets the combination rule.
func (c *Config) WithCombine(rule Combine) *Config {
	c.Combine = rule
	return c
}

// WithWorkers bounds bin concurrency.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}
