package l3spectral

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/fov"
)

const cadence = 120 * time.Second

var t0 = time.Date(2012, 12, 21, 16, 0, 0, 0, time.UTC)

func testConfig(mode GateAveraging) *Config {
	return &Config{GateAveraging: mode, RepresentativeGate: -1, FreqMinHz: 0.0003, FreqMaxHz: 0.0012}
}

func newSnapshot(t *testing.T, nt, nb, ng int, f func(ti, b, g int) float64) *dataset.Snapshot {
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
				cube.Set(ti, b, g, f(ti, b, g))
			}
		}
	}

	model, err := fov.ModelByName(fov.Standard)
	require.NoError(t, err)
	site := fov.Site{Lat: 37.1, Lon: -77.95, BeamSepDeg: 3.24, NumBeams: nb, FirstRangeKm: 180, RangeSepKm: 45}
	pos, err := fov.Project(site, beams, gates, model, nil)
	require.NoError(t, err)

	snap, err := dataset.NewSnapshot("windowed", cube, pos, dataset.Metadata{})
	require.NoError(t, err)
	return snap
}

func wave() func(ti, b, g int) float64 {
	return func(ti, b, g int) float64 {
		return math.Cos(2*math.Pi*float64(ti)/10 - 0.3*float64(b) - 0.2*float64(g))
	}
}

func TestEstimate_BinsAndModes(t *testing.T) {
	t.Parallel()

	const nt, nb, ng = 120, 6, 4
	in := newSnapshot(t, nt, nb, ng, wave())

	tests := []struct {
		mode      GateAveraging
		groups    int
		elements  int
		snapshots int
	}{
		{GateNone, 1, nb, 1},
		{GateMatrix, 1, nb, ng},
		{GateIncoherent, ng, nb, 1},
		{GateAperture, 1, nb * ng, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := Estimate(in, testConfig(tt.mode))
			require.NoError(t, err)

			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, nt, res.N)
			assert.Len(t, res.Frequencies, nt/2+1)
			require.NotEmpty(t, res.Bins)

			prev := 0.0
			for _, bin := range res.Bins {
				assert.Greater(t, bin.FreqHz, prev)
				assert.GreaterOrEqual(t, bin.FreqHz, 0.0003)
				assert.LessOrEqual(t, bin.FreqHz, 0.0012)
				assert.Positive(t, bin.Index)
				prev = bin.FreqHz

				require.Len(t, bin.Groups, tt.groups)
				for _, grp := range bin.Groups {
					assert.Equal(t, tt.elements, grp.Elements())
					assert.Equal(t, tt.snapshots, grp.Snapshots)
					assert.True(t, IsHermitian(grp.CSM, 1e-12), "bin %d %s", bin.Index, grp.Label)
				}
			}
			assert.Equal(t, res.Bins[0].FreqHz, res.BinFrequencies()[0])
		})
	}
}

func TestEstimate_PeriodogramScaling(t *testing.T) {
	t.Parallel()

	// A unit cosine exactly on bin 10 has one-sided power N/2 there.
	const nt = 120
	in := newSnapshot(t, nt, 2, 1, func(ti, _, _ int) float64 {
		return math.Cos(2 * math.Pi * 10 * float64(ti) / nt)
	})

	res, err := Estimate(in, testConfig(GateAperture))
	require.NoError(t, err)

	var found bool
	for _, bin := range res.Bins {
		csm := bin.Groups[0].CSM
		if bin.Index == 10 {
			found = true
			assert.InDelta(t, nt/2, real(csm.At(0, 0)), 1e-9)
			assert.InDelta(t, nt/2, real(csm.At(0, 1)), 1e-9)
			assert.InDelta(t, 0, imag(csm.At(0, 1)), 1e-9)
		} else {
			assert.InDelta(t, 0, bin.Trace(), 1e-9)
		}
	}
	assert.True(t, found)
}

func TestEstimate_NyquistScaling(t *testing.T) {
	t.Parallel()

	const nt = 8
	in := newSnapshot(t, nt, 1, 1, func(ti, _, _ int) float64 {
		return math.Pow(-1, float64(ti))
	})
	fs := 1 / cadence.Seconds()

	res, err := Estimate(in, testConfig(GateAperture).WithBand(0.99*fs/2, fs/2))
	require.NoError(t, err)
	require.Len(t, res.Bins, 1)
	assert.Equal(t, nt/2, res.Bins[0].Index)
	assert.InDelta(t, nt, res.Bins[0].Trace(), 1e-9)
}

func TestEstimate_PhaseConvention(t *testing.T) {
	t.Parallel()

	// cos(wt - phi_b) puts exp(-i(phi_0 - phi_1)) between elements 0 and 1.
	const nt = 120
	in := newSnapshot(t, nt, 2, 1, func(ti, b, _ int) float64 {
		return math.Cos(2*math.Pi*10*float64(ti)/nt - 0.5*float64(b))
	})
	res, err := Estimate(in, testConfig(GateAperture))
	require.NoError(t, err)
	for _, bin := range res.Bins {
		if bin.Index != 10 {
			continue
		}
		c01 := bin.Groups[0].CSM.At(0, 1)
		assert.InDelta(t, 0.5, math.Atan2(imag(c01), real(c01)), 1e-9)
	}
}

func TestEstimate_RepresentativeGate(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 60, 3, 5, wave())

	res, err := Estimate(in, testConfig(GateNone))
	require.NoError(t, err)
	assert.Equal(t, "gate 12", res.Bins[0].Groups[0].Label)

	cfg := testConfig(GateNone)
	cfg.RepresentativeGate = 13
	res, err = Estimate(in, cfg)
	require.NoError(t, err)
	assert.Equal(t, "gate 13", res.Bins[0].Groups[0].Label)

	cfg.RepresentativeGate = 99
	_, err = Estimate(in, cfg)
	var e *mstid.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, mstid.Configuration, e.Kind)
	assert.Equal(t, "representative_gate", e.Param)
}

func TestEstimate_Errors(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, 60, 2, 2, wave())

	_, err := Estimate(in, testConfig(GateAperture).WithBand(0.0000001, 0.0000002))
	assert.True(t, mstid.IsKind(err, mstid.Configuration), "no bin in band")

	_, err = Estimate(in, testConfig("beam"))
	assert.True(t, mstid.IsKind(err, mstid.Configuration))

	_, err = Estimate(in, testConfig(GateAperture).WithBand(0.001, 0.0005))
	assert.True(t, mstid.IsKind(err, mstid.Configuration))

	bad := in.Derive("bad")
	bad.Cube.Set(3, 1, 1, math.NaN())
	_, err = Estimate(bad, testConfig(GateAperture))
	assert.True(t, mstid.IsKind(err, mstid.Numerical))

	short := newSnapshot(t, 3, 1, 1, func(int, int, int) float64 { return 1 })
	_, err = Estimate(short, testConfig(GateAperture))
	assert.True(t, mstid.IsKind(err, mstid.DataQuality))
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, GateAperture, cfg.GateAveraging)
	assert.Equal(t, -1, cfg.RepresentativeGate)
	assert.Equal(t, 0.0003, cfg.FreqMinHz)
	assert.Equal(t, 0.0012, cfg.FreqMaxHz)
}
