package pipeline

import (
	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/mstid/l1regrid"
	"github.com/banshee-data/mstid/internal/mstid/l2prep"
	"github.com/banshee-data/mstid/internal/mstid/l3spectral"
	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
)

// Config bundles the per-stage configurations of one run.
type Config struct {
	Regrid   *l1regrid.Config
	Prep     *l2prep.Config
	Spectral *l3spectral.Config
	MUSIC    *l4music.Config
	Detect   *l5detect.Config
}

// DefaultConfig returns a Config built from config/tuning.defaults.json.
// Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds every stage configuration from one TuningConfig.
func ConfigFromTuning(t *config.TuningConfig) *Config {
	return &Config{
		Regrid:   l1regrid.ConfigFromTuning(t),
		Prep:     l2prep.ConfigFromTuning(t),
		Spectral: l3spectral.ConfigFromTuning(t),
		MUSIC:    l4music.ConfigFromTuning(t),
		Detect:   l5detect.ConfigFromTuning(t),
	}
}
