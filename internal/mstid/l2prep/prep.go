package l2prep

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
)

// Snapshot names published by Preprocess.
const (
	DetrendSnapshot = "detrended"
	FilterSnapshot  = "filtered"
	WindowSnapshot  = "windowed"
)

var logf = monitoring.Component("Prep")

// Preprocess detrends, filters and tapers the chain's active snapshot,
// publishing each intermediate result.
func Preprocess(ch *dataset.Chain, cfg *Config) error {
	in := ch.Active()
	if in == nil {
		return mstid.DataQualityf(stageName, "snapshot", "chain has no active snapshot")
	}
	fs, err := SampleRate(in.Cube)
	if err != nil {
		return err
	}
	if err := cfg.Validate(fs); err != nil {
		return err
	}

	detrended, err := Detrend(in)
	if err != nil {
		return err
	}
	if err := ch.Publish(detrended, map[string]interface{}{"source": in.Name, "method": "linear"}); err != nil {
		return err
	}

	filtered, err := Filter(detrended, cfg)
	if err != nil {
		return err
	}
	if err := ch.Publish(filtered, map[string]interface{}{
		"source":    DetrendSnapshot,
		"num_taps":  cfg.NumTaps,
		"low_hz":    cfg.LowHz,
		"high_hz":   cfg.HighHz,
		"sample_hz": fs,
		"window":    "blackman",
	}); err != nil {
		return err
	}

	tapered, err := Taper(filtered)
	if err != nil {
		return err
	}
	return ch.Publish(tapered, map[string]interface{}{"source": FilterSnapshot, "window": "hann"})
}

// SampleRate returns the sampling rate in Hz of a uniformly sampled cube.
func SampleRate(c *dataset.Cube) (float64, error) {
	if len(c.Times) < 2 {
		return 0, mstid.DataQualityf(stageName, "time", "need at least 2 samples, got %d", len(c.Times))
	}
	dt := c.Times[1].Sub(c.Times[0]).Seconds()
	if dt <= 0 {
		return 0, mstid.DataQualityf(stageName, "time", "non-increasing time axis")
	}
	return 1 / dt, nil
}

// Detrend removes the least-squares line from every (beam, gate) series.
// A constant series becomes exactly zero.
func Detrend(in *dataset.Snapshot) (*dataset.Snapshot, error) {
	if err := checkFinite(in.Cube, "input"); err != nil {
		return nil, err
	}
	out := in.Derive(DetrendSnapshot)
	x := out.Cube.Seconds(out.Cube.Times[0])
	_, nb, ng := out.Cube.Dims()
	var y []float64
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			y = out.Cube.Series(b, g, y)
			if floats.Max(y) == floats.Min(y) {
				for i := range y {
					y[i] = 0
				}
			} else {
				alpha, beta := stat.LinearRegression(x, y, nil, false)
				for i := range y {
					y[i] -= alpha + beta*x[i]
				}
			}
			out.Cube.SetSeries(b, g, y)
		}
	}
	if err := checkFinite(out.Cube, "detrended"); err != nil {
		return nil, err
	}
	return out, nil
}

// Filter applies the zero-phase bandpass to every series.
func Filter(in *dataset.Snapshot, cfg *Config) (*dataset.Snapshot, error) {
	if err := checkFinite(in.Cube, "input"); err != nil {
		return nil, err
	}
	fs, err := SampleRate(in.Cube)
	if err != nil {
		return nil, err
	}
	taps, err := DesignBandpass(cfg.NumTaps, cfg.LowHz, cfg.HighHz, fs)
	if err != nil {
		return nil, err
	}
	nt, _, _ := in.Cube.Dims()
	if nt < cfg.NumTaps {
		logf("warning: %d samples is shorter than the %d-tap filter", nt, cfg.NumTaps)
	}

	out := in.Derive(FilterSnapshot)
	_, nb, ng := out.Cube.Dims()
	var x, y []float64
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			x = out.Cube.Series(b, g, x)
			y = ApplyZeroPhase(y, x, taps)
			out.Cube.SetSeries(b, g, y)
		}
	}
	if err := checkFinite(out.Cube, "filtered"); err != nil {
		return nil, err
	}
	logf("bandpass %g-%g Hz, %d taps at %g Hz", cfg.LowHz, cfg.HighHz, cfg.NumTaps, fs)
	return out, nil
}

// Taper multiplies every series by a Hann window spanning its full length.
func Taper(in *dataset.Snapshot) (*dataset.Snapshot, error) {
	if err := checkFinite(in.Cube, "input"); err != nil {
		return nil, err
	}
	out := in.Derive(WindowSnapshot)
	nt, nb, ng := out.Cube.Dims()
	w := make([]float64, nt)
	for i := range w {
		w[i] = 1
	}
	if nt > 1 {
		window.Hann(w)
	}
	var y []float64
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			y = out.Cube.Series(b, g, y)
			floats.Mul(y, w)
			out.Cube.SetSeries(b, g, y)
		}
	}
	return out, nil
}

func checkFinite(c *dataset.Cube, what string) error {
	nt, nb, ng := c.Dims()
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				v := c.At(t, b, g)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return mstid.Numericalf(stageName, what,
						"non-finite value %v at %s beam %d gate %d",
						v, c.Times[t].Format("15:04:05"), c.Beams[b], c.Gates[g])
				}
			}
		}
	}
	return nil
}

