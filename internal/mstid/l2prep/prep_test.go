package l2prep

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
)

const cadence = 120 * time.Second

var (
	t0 = time.Date(2012, 12, 21, 16, 0, 0, 0, time.UTC)
	fs = 1 / cadence.Seconds()
)

func testConfig() *Config {
	return &Config{NumTaps: 31, LowHz: 0.0003, HighHz: 0.0012}
}

func newSnapshot(t *testing.T, nt, nb, ng int, f func(sec float64, b, g int) float64) *dataset.Snapshot {
	t.Helper()
	times := make([]time.Time, nt)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * cadence)
	}
	beams := make([]int, nb)
	for i := range beams {
		beams[i] = i
	}
	gates := make([]int, ng)
	for i := range gates {
		gates[i] = 10 + i
	}
	cube, err := dataset.NewCube(times, beams, gates)
	require.NoError(t, err)
	for ti := 0; ti < nt; ti++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				cube.Set(ti, b, g, f(float64(ti)*cadence.Seconds(), b, g))
			}
		}
	}
	snap, err := dataset.NewSnapshot("beamInterpolated", cube, dataset.NewPositionGrid(beams, gates, "geo"), dataset.Metadata{})
	require.NoError(t, err)
	return snap
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   *Config
		param string
	}{
		{"even taps", testConfig().WithNumTaps(30), "filter_num_taps"},
		{"too few taps", testConfig().WithNumTaps(1), "filter_num_taps"},
		{"zero low", testConfig().WithBand(0, 0.001), "filter_low_hz"},
		{"inverted band", testConfig().WithBand(0.001, 0.0005), "filter_high_hz"},
		{"above nyquist", testConfig().WithBand(0.001, fs/2), "filter_high_hz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(fs)
			require.Error(t, err)
			var e *mstid.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, mstid.Configuration, e.Kind)
			assert.Equal(t, tt.param, e.Param)
			assert.Contains(t, err.Error(), tt.param)
		})
	}

	assert.NoError(t, testConfig().Validate(fs))
	assert.NoError(t, DefaultConfig().Validate(fs))
}

func TestDesignBandpass(t *testing.T) {
	t.Parallel()

	taps, err := DesignBandpass(31, 0.0003, 0.0012, fs)
	require.NoError(t, err)
	require.Len(t, taps, 31)

	for i := range taps {
		assert.InDelta(t, taps[i], taps[len(taps)-1-i], 1e-15, "linear phase requires symmetric taps")
	}
	assert.InDelta(t, 1, Response(taps, 0.00075, fs), 1e-12)
	assert.Greater(t, Response(taps, 1.0/1200, fs), 0.95)
	assert.Greater(t, Response(taps, 1.0/1800, fs), 0.85)
	assert.Less(t, Response(taps, 0.002, fs), 0.01)
	assert.Less(t, Response(taps, fs/2, fs), 0.01)
	assert.Less(t, Response(taps, 0, fs), 0.3)

	_, err = DesignBandpass(31, 0.0003, 0.005, fs)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))
}

func TestApplyZeroPhase(t *testing.T) {
	t.Parallel()

	taps, err := DesignBandpass(31, 0.0003, 0.0012, fs)
	require.NoError(t, err)

	const n = 240
	f := 1.0 / 1200
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Cos(2 * math.Pi * f * float64(i) / fs)
	}
	y := ApplyZeroPhase(nil, x, taps)
	gain := Response(taps, f, fs)

	// Away from the zero-padded ends the output is the input scaled by the
	// gain, with no phase shift.
	for i := 31; i < n-31; i++ {
		assert.InDelta(t, gain*x[i], y[i], 1e-9)
	}

	impulse := make([]float64, 41)
	impulse[20] = 1
	resp := ApplyZeroPhase(nil, impulse, taps)
	assert.InDeltaSlice(t, taps, resp[5:36], 1e-15)
	assert.Zero(t, resp[0])
}

func TestDetrend(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 60, 2, 2, func(sec float64, b, g int) float64 {
		switch {
		case b == 0 && g == 0:
			return 42 // constant
		case b == 0 && g == 1:
			return 3 + 0.01*sec // pure trend
		}
		return 5 - 0.002*sec + math.Sin(2*math.Pi*sec/1200)
	})

	out, err := Detrend(in)
	require.NoError(t, err)
	assert.Equal(t, DetrendSnapshot, out.Name)

	for _, v := range out.Cube.Series(0, 0, nil) {
		assert.Equal(t, 0.0, v)
	}
	for _, v := range out.Cube.Series(0, 1, nil) {
		assert.InDelta(t, 0, v, 1e-9)
	}

	// The residual of trend + sinusoid has zero mean and no slope left.
	res := out.Cube.Series(1, 1, nil)
	var sum float64
	for _, v := range res {
		sum += v
	}
	assert.InDelta(t, 0, sum/float64(len(res)), 1e-9)
	assert.Equal(t, 42.0, in.Cube.At(0, 0, 0), "input untouched")
}

func TestNonFiniteIsNumerical(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 40, 1, 1, func(sec float64, _, _ int) float64 {
		if sec == 600 {
			return math.Inf(1)
		}
		return sec
	})

	_, err := Detrend(in)
	assert.True(t, mstid.IsKind(err, mstid.Numerical))
	_, err = Filter(in, testConfig())
	assert.True(t, mstid.IsKind(err, mstid.Numerical))
	_, err = Taper(in)
	assert.True(t, mstid.IsKind(err, mstid.Numerical))
}

func TestTaper(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 11, 1, 1, func(float64, int, int) float64 { return 2 })
	out, err := Taper(in)
	require.NoError(t, err)

	s := out.Cube.Series(0, 0, nil)
	assert.InDelta(t, 0, s[0], 1e-15)
	assert.InDelta(t, 2, s[5], 1e-15)
	assert.InDelta(t, 0, s[10], 1e-15)
	assert.InDelta(t, s[2], s[8], 1e-15)
}

func TestPreprocess(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 120, 3, 2, func(sec float64, b, g int) float64 {
		return 10 + 0.001*sec + math.Cos(2*math.Pi*sec/1200+float64(b+g))
	})
	ch, err := dataset.NewChain(in)
	require.NoError(t, err)

	require.NoError(t, Preprocess(ch, testConfig()))
	assert.Equal(t, []string{"beamInterpolated", DetrendSnapshot, FilterSnapshot, WindowSnapshot}, ch.Names())
	assert.True(t, ch.Active().Cube.AllFinite())

	h := ch.History()
	require.Len(t, h, 4)
	assert.Equal(t, FilterSnapshot, h[2].Stage)
	assert.Equal(t, 31, h[2].Params["num_taps"])
	assert.Equal(t, "hann", h[3].Params["window"])

	// The band-limited wave survives near the middle of the window.
	mid := ch.Active().Cube.Series(0, 0, nil)[60]
	assert.Greater(t, math.Abs(mid), 0.1)
}

func TestPreprocess_BadBand(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 50, 1, 1, func(sec float64, _, _ int) float64 { return sec })
	ch, err := dataset.NewChain(in)
	require.NoError(t, err)

	err = Preprocess(ch, testConfig().WithBand(0.001, 0.01))
	require.Error(t, err)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))
	assert.Equal(t, []string{"beamInterpolated"}, ch.Names())
}
