package l1regrid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
)

var t0 = time.Date(2012, 12, 21, 16, 0, 0, 0, time.UTC)

func testConfig() *Config {
	return &Config{MinValidSamples: 2, GateMax: -1}
}

// newSnapshot builds a snapshot on the given times whose cells hold f(t, b, g).
// f returning NaN leaves the cell missing.
func newSnapshot(t *testing.T, times []time.Time, beams, gates []int, f func(sec float64, b, g int) float64) *dataset.Snapshot {
	t.Helper()
	cube, err := dataset.NewCube(times, beams, gates)
	require.NoError(t, err)
	secs := cube.Seconds(t0)
	for ti := range times {
		for bi := range beams {
			for gi := range gates {
				cube.Set(ti, bi, gi, f(secs[ti], bi, gi))
			}
		}
	}
	pos := dataset.NewPositionGrid(beams, gates, "geo")
	for bi := range beams {
		for gi := range gates {
			pos.Set(bi, gi, 37+0.4*float64(gi), -80+float64(bi))
		}
	}
	snap, err := dataset.NewSnapshot("original", cube, pos, dataset.Metadata{Radar: "bks", Parameter: "p_l"})
	require.NoError(t, err)
	return snap
}

func uniform(n int, step time.Duration) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * step)
	}
	return out
}

func TestInterpolateTime_UniformRoundTrip(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(30, 2*time.Minute), []int{0, 1, 2}, []int{10, 11, 12, 13},
		func(sec float64, b, g int) float64 {
			return math.Sin(sec/300+float64(b)) + 0.1*float64(g)
		})

	out, stats, err := InterpolateTime(in, testConfig())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, stats.Cadence)
	assert.Equal(t, 30, stats.Samples)
	assert.Zero(t, stats.Dropped())
	assert.Equal(t, in.Cube.Times, out.Cube.Times)
	assert.Equal(t, in.Cube.Values, out.Cube.Values)

	filled, bs, err := InterpolateBeams(out)
	require.NoError(t, err)
	assert.Zero(t, bs.AcrossBeams+bs.AcrossGates)
	assert.Equal(t, in.Cube.Values, filled.Cube.Values)
	assert.Equal(t, BeamSnapshot, filled.Name)
}

func TestInterpolateTime_IrregularLinear(t *testing.T) {
	t.Parallel()

	offsets := []time.Duration{0, 95 * time.Second, 250 * time.Second, 6 * time.Minute, 11 * time.Minute, 14 * time.Minute}
	times := make([]time.Time, len(offsets))
	for i, o := range offsets {
		times[i] = t0.Add(o)
	}
	in := newSnapshot(t, times, []int{0, 1}, []int{5}, func(sec float64, b, _ int) float64 {
		return 2*sec + float64(b)
	})

	cfg := testConfig().WithCadence(2 * time.Minute)
	out, stats, err := InterpolateTime(in, cfg)
	require.NoError(t, err)

	require.Equal(t, 8, stats.Samples) // 0..14 min every 2 min
	for ti, tm := range out.Cube.Times {
		sec := tm.Sub(t0).Seconds()
		assert.Equal(t, time.Duration(ti)*2*time.Minute, tm.Sub(t0))
		for b := 0; b < 2; b++ {
			assert.InDelta(t, 2*sec+float64(b), out.Cube.At(ti, b, 0), 1e-9)
		}
	}
	assert.Equal(t, 2*time.Minute, out.Meta.Cadence)
	assert.Equal(t, t0, out.Meta.WindowStart)
}

func TestInterpolateTime_NearestAtEdges(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(10, time.Minute), []int{0}, []int{0}, func(sec float64, _, _ int) float64 {
		if sec < 180 || sec > 420 {
			return math.NaN()
		}
		return sec
	})

	out, _, err := InterpolateTime(in, testConfig())
	require.NoError(t, err)

	got := out.Cube.Series(0, 0, nil)
	assert.Equal(t, []float64{180, 180, 180, 180, 240, 300, 360, 420, 420, 420}, got)
}

func TestInterpolateTime_Window(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(20, time.Minute), []int{0, 1}, []int{0}, func(sec float64, _, _ int) float64 {
		return sec
	})

	cfg := testConfig().WithWindow(t0.Add(5*time.Minute), t0.Add(10*time.Minute)).WithCadence(150 * time.Second)
	out, stats, err := InterpolateTime(in, cfg)
	require.NoError(t, err)

	// 300, 450, 600 s; 750 s would pass the window end.
	assert.Equal(t, 3, stats.Samples)
	assert.Equal(t, []float64{300, 450, 600}, out.Cube.Series(1, 0, nil))
	assert.Equal(t, t0.Add(10*time.Minute), out.Meta.WindowEnd)
}

func TestInterpolateTime_MissingBeam(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(12, time.Minute), []int{0, 1, 2, 3}, []int{0, 1}, func(sec float64, b, _ int) float64 {
		if b == 3 {
			return math.NaN()
		}
		return sec
	})

	_, _, err := InterpolateTime(in, testConfig())
	require.Error(t, err)
	assert.True(t, mstid.IsKind(err, mstid.DataQuality))
	var e *mstid.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "beam 3", e.Param)
	assert.Contains(t, err.Error(), "beam 3")
}

func TestInterpolateTime_NoData(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(12, time.Minute), []int{0, 1}, []int{0}, func(float64, int, int) float64 {
		return math.NaN()
	})

	_, _, err := InterpolateTime(in, testConfig())
	require.Error(t, err)
	var e *mstid.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, mstid.DataQuality, e.Kind)
	assert.Equal(t, "window", e.Param)
	assert.Contains(t, err.Error(), t0.Format(time.RFC3339))
}

func TestInterpolateTime_DropsSparseAndGappySeries(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(20, time.Minute), []int{0, 1, 2}, []int{0}, func(sec float64, b, _ int) float64 {
		switch {
		case b == 1 && sec > 60:
			return math.NaN() // two valid samples only
		case b == 2 && sec > 240 && sec < 900:
			return math.NaN() // one long gap
		}
		return sec
	})

	cfg := testConfig().WithMinValidSamples(5).WithMaxGap(5 * time.Minute)
	_, stats, err := InterpolateTime(in, cfg)
	require.Error(t, err, "beams 1 and 2 lose their only gate")
	assert.Equal(t, 1, stats.Sparse)
	assert.Equal(t, 1, stats.Gappy)

	cfg.MaxGap = 0
	out, stats, err := InterpolateTime(in, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beam 1")
	assert.Nil(t, out)
	assert.Equal(t, 1, stats.Sparse)
	assert.Zero(t, stats.Gappy)
}

func TestInterpolateBeams_FillsDroppedSeries(t *testing.T) {
	t.Parallel()

	// Beam 1 gate 0 is too sparse and gets dropped, then rebuilt from its
	// neighbouring beams. Beam 3 gate 1 is rebuilt from beam 2 only.
	in := newSnapshot(t, uniform(12, time.Minute), []int{0, 1, 2, 3}, []int{0, 1}, func(sec float64, b, g int) float64 {
		if (b == 1 && g == 0 && sec > 0) || (b == 3 && g == 1) {
			return math.NaN()
		}
		return sec + 10*float64(b)
	})

	ch, err := dataset.NewChain(in)
	require.NoError(t, err)
	require.NoError(t, Regularize(ch, testConfig()))

	assert.Equal(t, []string{"original", TimeSnapshot, BeamSnapshot}, ch.Names())
	timed, ok := ch.Get(TimeSnapshot)
	require.True(t, ok)
	assert.False(t, timed.Cube.Valid(5, 1, 0))

	out := ch.Active()
	require.True(t, out.Cube.AllFinite())
	for ti := range out.Cube.Times {
		sec := float64(ti * 60)
		assert.InDelta(t, sec+10, out.Cube.At(ti, 1, 0), 1e-9, "interpolated between beams 0 and 2")
		assert.InDelta(t, sec+20, out.Cube.At(ti, 3, 1), 1e-9, "edge beam holds nearest value")
	}

	warnings := ch.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, TimeSnapshot, warnings[0].Stage)
}

func TestInterpolateBeams_FallsBackToGates(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(3, time.Minute), []int{0, 1}, []int{0, 1, 2}, func(sec float64, _, g int) float64 {
		if g == 1 {
			return math.NaN()
		}
		return float64(g) * 4
	})

	out, stats, err := InterpolateBeams(in)
	require.NoError(t, err)
	assert.Zero(t, stats.AcrossBeams)
	assert.Equal(t, 6, stats.AcrossGates)
	assert.Equal(t, 4.0, out.Cube.At(2, 1, 1))

	// The input snapshot is untouched.
	assert.True(t, math.IsNaN(in.Cube.At(2, 1, 1)))
}

func TestInterpolateBeams_EmptyTimeStep(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(3, time.Minute), []int{0, 1}, []int{0}, func(sec float64, _, _ int) float64 {
		if sec == 60 {
			return math.NaN()
		}
		return 1
	})
	_, _, err := InterpolateBeams(in)
	assert.True(t, mstid.IsKind(err, mstid.DataQuality))
}

func TestGateCropping(t *testing.T) {
	t.Parallel()

	in := newSnapshot(t, uniform(5, time.Minute), []int{0, 1}, []int{8, 9, 10, 11, 12}, func(sec float64, _, g int) float64 {
		return sec + float64(g)
	})

	out, _, err := InterpolateTime(in, testConfig().WithGates(9, 11))
	require.NoError(t, err)
	assert.Equal(t, []int{9, 10, 11}, out.Cube.Gates)
	assert.Equal(t, []int{9, 10, 11}, out.Positions.Gates)
	assert.Equal(t, 1.0, out.Cube.At(0, 0, 0))

	out, _, err = InterpolateTime(in, testConfig().WithGates(11, -1))
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, out.Cube.Gates)

	_, _, err = InterpolateTime(in, testConfig().WithGates(40, 50))
	require.Error(t, err)
	assert.True(t, mstid.IsKind(err, mstid.Configuration))
}

func TestFillLine(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	tests := []struct {
		name   string
		in     []float64
		want   []float64
		filled int
		ok     bool
	}{
		{"complete", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, true},
		{"interior", []float64{0, nan, nan, 3}, []float64{0, 1, 2, 3}, 2, true},
		{"edges", []float64{nan, 2, 4, nan, nan}, []float64{2, 2, 4, 4, 4}, 3, true},
		{"single", []float64{nan, 7, nan}, []float64{7, 7, 7}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := append([]float64(nil), tt.in...)
			n, ok := fillLine(vals)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.filled, n)
			assert.Equal(t, tt.want, vals)
		})
	}

	_, ok := fillLine([]float64{nan, nan})
	assert.False(t, ok)
}

func TestMedianSpacing(t *testing.T) {
	t.Parallel()

	times := []time.Time{t0, t0.Add(time.Minute), t0.Add(3 * time.Minute), t0.Add(4 * time.Minute), t0.Add(5 * time.Minute)}
	d, err := medianSpacing(times)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = medianSpacing(times[:1])
	assert.True(t, mstid.IsKind(err, mstid.Configuration))

	dup := []time.Time{t0, t0, t0, t0.Add(time.Minute)}
	_, err = medianSpacing(dup)
	var e *mstid.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, mstid.Configuration, e.Kind)
	assert.Equal(t, "cadence", e.Param)
}

func TestInterpolateTime_DefaultCadenceFollowsInput(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, uniform(120, time.Minute), []int{0, 1}, []int{5}, func(sec float64, b, g int) float64 {
		return math.Sin(sec / 600)
	})
	out, stats, err := InterpolateTime(snap, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, stats.Cadence)
	assert.Equal(t, 120, stats.Samples)
	assert.Equal(t, time.Minute, out.Meta.Cadence)
}
