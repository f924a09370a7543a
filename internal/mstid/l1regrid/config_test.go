package l1regrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/mstid"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Cadence)
	assert.Equal(t, 10, cfg.MinValidSamples)
	assert.Equal(t, 0, cfg.GateMin)
	assert.Equal(t, -1, cfg.GateMax)
	assert.Zero(t, cfg.MaxGap)
	assert.True(t, cfg.WindowStart.IsZero())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mod   func(*Config)
		param string
	}{
		{"min valid", func(c *Config) { c.MinValidSamples = 1 }, "min_valid_samples"},
		{"negative cadence", func(c *Config) { c.Cadence = -time.Second }, "cadence"},
		{"negative gap", func(c *Config) { c.MaxGap = -time.Second }, "max_gap"},
		{"window order", func(c *Config) { c.WithWindow(t0, t0) }, "window"},
		{"gate order", func(c *Config) { c.WithGates(10, 5) }, "gate_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var e *mstid.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, mstid.Configuration, e.Kind)
			assert.Equal(t, tt.param, e.Param)
		})
	}

	assert.NoError(t, testConfig().WithGates(5, -1).Validate())
}
