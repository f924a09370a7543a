package l1regrid

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
)

// Snapshot names published by Regularize.
const (
	TimeSnapshot = "timeInterpolated"
	BeamSnapshot = "beamInterpolated"
)

var logf = monitoring.Component("Regrid")

// TimeStats summarises a time regularisation.
type TimeStats struct {
	Start   time.Time
	End     time.Time
	Cadence time.Duration
	Samples int // length of the output time axis
	Series  int // (beam, gate) series considered
	Sparse  int // dropped for too few valid samples
	Gappy   int // dropped for exceeding MaxGap
}

// Dropped returns the number of series discarded.
func (s TimeStats) Dropped() int { return s.Sparse + s.Gappy }

// BeamStats summarises a spatial fill.
type BeamStats struct {
	AcrossBeams int // cells filled from neighbouring beams
	AcrossGates int // cells filled from neighbouring gates
}

// Regularize runs time then beam regularisation on the chain's active
// snapshot and publishes both results.
func Regularize(ch *dataset.Chain, cfg *Config) error {
	in := ch.Active()
	if in == nil {
		return mstid.DataQualityf(stageName, "snapshot", "chain has no active snapshot")
	}

	timed, ts, err := InterpolateTime(in, cfg)
	if err != nil {
		return err
	}
	if err := ch.Publish(timed, map[string]interface{}{
		"source":         in.Name,
		"gate_min":       timed.Cube.Gates[0],
		"gate_max":       timed.Cube.Gates[len(timed.Cube.Gates)-1],
		"start":          ts.Start.Format(time.RFC3339),
		"end":            ts.End.Format(time.RFC3339),
		"cadence":        ts.Cadence.String(),
		"samples":        ts.Samples,
		"dropped_series": ts.Dropped(),
		"min_valid":      cfg.MinValidSamples,
		"max_gap":        cfg.MaxGap.String(),
		"interpolation":  "linear",
		"edge_extension": "nearest",
	}); err != nil {
		return err
	}
	if ts.Dropped() > 0 {
		ch.Warn(TimeSnapshot, fmt.Sprintf("dropped %d of %d series", ts.Dropped(), ts.Series),
			map[string]interface{}{"sparse": ts.Sparse, "gappy": ts.Gappy})
	}

	filled, bs, err := InterpolateBeams(ch.Active())
	if err != nil {
		return err
	}
	return ch.Publish(filled, map[string]interface{}{
		"source":       TimeSnapshot,
		"across_beams": bs.AcrossBeams,
		"across_gates": bs.AcrossGates,
	})
}

// InterpolateTime crops in to the configured gate band and resamples every
// (beam, gate) series onto start + i*cadence. Output samples that coincide
// with input samples copy them exactly; samples outside the span of a
// series' valid data take its nearest valid value.
func InterpolateTime(in *dataset.Snapshot, cfg *Config) (*dataset.Snapshot, TimeStats, error) {
	var stats TimeStats
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}

	lo, hi, err := gateBand(in.Cube.Gates, cfg.GateMin, cfg.GateMax)
	if err != nil {
		return nil, stats, err
	}
	cube := in.Cube.CropGates(lo, hi)
	positions := in.Positions.CropGates(lo, hi)

	cadence := cfg.Cadence
	if cadence == 0 {
		cadence, err = medianSpacing(cube.Times)
		if err != nil {
			return nil, stats, err
		}
	}

	start, end := cfg.WindowStart, cfg.WindowEnd
	if start.IsZero() {
		start = cube.Times[0]
	}
	if end.IsZero() {
		end = cube.Times[len(cube.Times)-1]
	}
	if !end.After(start) {
		return nil, stats, mstid.Configf(stageName, "window", "end %s is not after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var times []time.Time
	for t := start; !t.After(end); t = t.Add(cadence) {
		times = append(times, t)
	}
	out, err := cube.Resampled(times)
	if err != nil {
		return nil, stats, err
	}

	stats = TimeStats{Start: start, End: end, Cadence: cadence, Samples: len(times)}
	xsIn := cube.Seconds(start)
	xsOut := out.Seconds(start)
	windowEnd := end.Sub(start).Seconds()
	maxGap := cfg.MaxGap.Seconds()

	nt, nb, ng := cube.Dims()
	xs := make([]float64, 0, nt)
	ys := make([]float64, 0, nt)
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			stats.Series++
			xs, ys = xs[:0], ys[:0]
			inWindow := 0
			largestGap := 0.0
			prev := math.NaN()
			for t := 0; t < nt; t++ {
				v := cube.At(t, b, g)
				if math.IsNaN(v) {
					continue
				}
				xs = append(xs, xsIn[t])
				ys = append(ys, v)
				if xsIn[t] >= 0 && xsIn[t] <= windowEnd {
					inWindow++
					if !math.IsNaN(prev) && xsIn[t]-prev > largestGap {
						largestGap = xsIn[t] - prev
					}
					prev = xsIn[t]
				}
			}
			if inWindow < cfg.MinValidSamples {
				stats.Sparse++
				continue
			}
			if maxGap > 0 && largestGap > maxGap {
				stats.Gappy++
				continue
			}

			var pl interp.PiecewiseLinear
			if err := pl.Fit(xs, ys); err != nil {
				return nil, stats, mstid.Numericalf(stageName, fmt.Sprintf("beam %d gate %d", cube.Beams[b], cube.Gates[g]),
					"interpolation fit: %v", err)
			}
			for t, x := range xsOut {
				out.Set(t, b, g, pl.Predict(x))
			}
		}
	}

	if out.CountValid() == 0 {
		return nil, stats, mstid.DataQualityf(stageName, "window",
			"no series with at least %d valid samples between %s and %s",
			cfg.MinValidSamples, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	for b := 0; b < nb; b++ {
		if !beamHasData(out, b) {
			return nil, stats, mstid.DataQualityf(stageName, fmt.Sprintf("beam %d", out.Beams[b]),
				"beam %d has no series with at least %d valid samples in the window", out.Beams[b], cfg.MinValidSamples)
		}
	}

	meta := in.Meta
	meta.WindowStart = start
	meta.WindowEnd = end
	meta.Cadence = cadence
	snap, err := dataset.NewSnapshot(TimeSnapshot, out, positions, meta)
	if err != nil {
		return nil, stats, err
	}

	logf("%d samples at %v, dropped %d/%d series", stats.Samples, cadence, stats.Dropped(), stats.Series)
	return snap, stats, nil
}

// InterpolateBeams fills missing cells of in. For each (time, gate) the gap
// is bridged linearly across beam index; edge beams take the nearest valid
// value. A (time, gate) with no valid beam is filled across gates of the
// same beam the same way.
func InterpolateBeams(in *dataset.Snapshot) (*dataset.Snapshot, BeamStats, error) {
	var stats BeamStats
	out := in.Derive(BeamSnapshot)
	cube := out.Cube
	nt, nb, ng := cube.Dims()

	line := make([]float64, max(nb, ng))
	for t := 0; t < nt; t++ {
		for g := 0; g < ng; g++ {
			row := line[:nb]
			for b := 0; b < nb; b++ {
				row[b] = cube.At(t, b, g)
			}
			n, ok := fillLine(row)
			if !ok {
				continue
			}
			stats.AcrossBeams += n
			for b := 0; b < nb; b++ {
				cube.Set(t, b, g, row[b])
			}
		}
		for b := 0; b < nb; b++ {
			col := line[:ng]
			for g := 0; g < ng; g++ {
				col[g] = cube.At(t, b, g)
			}
			n, ok := fillLine(col)
			if !ok {
				return nil, stats, mstid.DataQualityf(stageName, "time",
					"no valid cells at %s", cube.Times[t].Format(time.RFC3339))
			}
			stats.AcrossGates += n
			for g := 0; g < ng; g++ {
				cube.Set(t, b, g, col[g])
			}
		}
	}

	if stats.AcrossBeams+stats.AcrossGates > 0 {
		logf("filled %d cells across beams, %d across gates", stats.AcrossBeams, stats.AcrossGates)
	}
	return out, stats, nil
}

// fillLine replaces NaNs in vals by linear interpolation over index, holding
// the nearest valid value beyond the ends. It reports how many values it
// filled and false if vals has no valid entry.
func fillLine(vals []float64) (int, bool) {
	var xs, ys []float64
	for i, v := range vals {
		if !math.IsNaN(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	switch len(xs) {
	case 0:
		return 0, false
	case len(vals):
		return 0, true
	}

	predict := func(float64) float64 { return ys[0] }
	if len(xs) > 1 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return 0, false
		}
		predict = pl.Predict
	}
	filled := 0
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = predict(float64(i))
			filled++
		}
	}
	return filled, true
}

func beamHasData(c *dataset.Cube, b int) bool {
	nt, _, ng := c.Dims()
	for t := 0; t < nt; t++ {
		for g := 0; g < ng; g++ {
			if c.Valid(t, b, g) {
				return true
			}
		}
	}
	return false
}

// gateBand returns the inclusive gate-axis indices covering radar gates
// [gateMin, gateMax]. gateMax -1 means the last gate.
func gateBand(gates []int, gateMin, gateMax int) (int, int, error) {
	lo, hi := -1, -1
	for i, g := range gates {
		if g < gateMin || (gateMax != -1 && g > gateMax) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return 0, 0, mstid.Configf(stageName, "gate_min",
			"no gates in [%d, %d] (cube has %d..%d)", gateMin, gateMax, gates[0], gates[len(gates)-1])
	}
	return lo, hi, nil
}

// medianSpacing returns the median interval of a strictly increasing axis.
func medianSpacing(times []time.Time) (time.Duration, error) {
	if len(times) < 2 {
		return 0, mstid.Configf(stageName, "cadence", "cannot derive cadence from %d sample(s)", len(times))
	}
	diffs := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs[i-1] = times[i].Sub(times[i-1]).Seconds()
	}
	sort.Float64s(diffs)
	med := stat.Quantile(0.5, stat.Empirical, diffs, nil)
	d := time.Duration(math.Round(med * float64(time.Second)))
	if d <= 0 {
		return 0, mstid.Configf(stageName, "cadence", "median sample spacing %v is not positive", d)
	}
	return d, nil
}
