package l2prep

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// DesignBandpass returns the taps of a Blackman-windowed sinc bandpass
// filter for sampling rate fs, scaled to unit gain at the band centre.
func DesignBandpass(numTaps int, lowHz, highHz, fs float64) ([]float64, error) {
	cfg := Config{NumTaps: numTaps, LowHz: lowHz, HighHz: highHz}
	if err := cfg.Validate(fs); err != nil {
		return nil, err
	}

	fl := lowHz / fs
	fh := highHz / fs
	mid := float64(numTaps-1) / 2

	taps := make([]float64, numTaps)
	for i := range taps {
		m := float64(i) - mid
		taps[i] = 2*fh*sinc(2*fh*m) - 2*fl*sinc(2*fl*m)
	}

	w := make([]float64, numTaps)
	for i := range w {
		w[i] = 1
	}
	window.Blackman(w)
	floats.Mul(taps, w)

	if g := Response(taps, (lowHz+highHz)/2, fs); g > 0 {
		floats.Scale(1/g, taps)
	}
	return taps, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// Response returns the magnitude of the frequency response of a centred
// linear-phase filter at f Hz.
func Response(taps []float64, f, fs float64) float64 {
	mid := float64(len(taps)-1) / 2
	var re, im float64
	for i, h := range taps {
		ph := 2 * math.Pi * f / fs * (float64(i) - mid)
		re += h * math.Cos(ph)
		im -= h * math.Sin(ph)
	}
	return math.Hypot(re, im)
}

// ApplyZeroPhase convolves x with the centred taps, treating samples beyond
// either end as zero, and writes the result into dst.
func ApplyZeroPhase(dst, x, taps []float64) []float64 {
	n := len(x)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	half := (len(taps) - 1) / 2
	for i := 0; i < n; i++ {
		var acc float64
		for k, h := range taps {
			j := i + k - half
			if j < 0 || j >= n {
				continue
			}
			acc += h * x[j]
		}
		dst[i] = acc
	}
	return dst
}
