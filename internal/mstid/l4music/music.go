package l4music

import (
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/l3spectral"
)

var logf = monitoring.Component("MUSIC")

// minDenominator floors 1 - ‖Eₛᴴa‖² so the pseudo-spectrum stays finite
// where the steering vector lies in the signal subspace.
const minDenominator = 1e-12

// binOutcome is the result of evaluating one bin (or, for CombineMatrix,
// one combined matrix).
type binOutcome struct {
	spectrum *mat.Dense // group-averaged pseudo-spectrum; nil when excluded
	eigen    []float64
	groups   []l3spectral.Group // usable groups
	reason   string
}

// Compute builds the wavenumber map for every retained bin of res.
// Ill-conditioned bins are excluded and listed in Map.Excluded; if every
// bin is excluded the map is all zeros and no error is returned.
func Compute(res *l3spectral.Result, cfg *Config) (*Map, error) {
	if res == nil || len(res.Bins) == 0 {
		return nil, mstid.DataQualityf(stageName, "spectrum", "no frequency bins to map")
	}
	if err := cfg.Validate(len(res.Beams)); err != nil {
		return nil, err
	}
	for _, b := range res.Bins {
		for _, g := range b.Groups {
			if cfg.NumSignals >= g.Elements() {
				return nil, mstid.Configf(stageName, "num_signals",
					"must be below the %d elements of group %s, got %d", g.Elements(), g.Label, cfg.NumSignals)
			}
			// A per-bin matrix has rank at most Snapshots.
			if cfg.Combine != CombineMatrix && cfg.NumSignals > g.Snapshots {
				return nil, mstid.Configf(stageName, "num_signals",
					"%d signals need at least as many snapshots per bin, group %s has %d; use combine %q or gate_averaging %q",
					cfg.NumSignals, g.Label, g.Snapshots, CombineMatrix, l3spectral.GateMatrix)
			}
		}
	}
	kx, _ := axis("kx", cfg.KxMax, cfg.Dkx)
	ky, _ := axis("ky", cfg.KyMax, cfg.Dky)

	m := &Map{
		Kx:         kx,
		Ky:         ky,
		Values:     mat.NewDense(len(ky), len(kx), nil),
		Combine:    cfg.Combine,
		NumSignals: cfg.NumSignals,
	}

	var err error
	switch cfg.Combine {
	case CombineMatrix:
		err = computeMatrix(res, cfg, m)
	default:
		err = computePerBin(res, cfg, m)
	}
	if err != nil {
		return nil, err
	}

	for _, issue := range m.Excluded {
		logf("excluded bin %d (%.3g mHz): %s", issue.Index, issue.FreqHz*1e3, issue.Reason)
	}
	logf("%dx%d map, rule %s, p=%d, %d/%d bins used, max %.3g",
		len(kx), len(ky), cfg.Combine, cfg.NumSignals, len(m.BinsUsed), len(res.Bins), m.Max())
	return m, nil
}

func computePerBin(res *l3spectral.Result, cfg *Config, m *Map) error {
	outcomes := make([]binOutcome, len(res.Bins))

	var eg errgroup.Group
	eg.SetLimit(workers(cfg.Workers))
	for i := range res.Bins {
		eg.Go(func() error {
			out, err := evaluate(res.Bins[i].Groups, cfg, m.Kx, m.Ky)
			if err != nil {
				return fmt.Errorf("bin %d: %w", res.Bins[i].Index, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	best, bestPower := -1, math.Inf(-1)
	for i, out := range outcomes {
		bin := res.Bins[i]
		if out.spectrum == nil {
			m.Excluded = append(m.Excluded, BinIssue{Index: bin.Index, FreqHz: bin.FreqHz, Kind: mstid.Numerical, Reason: out.reason})
			continue
		}
		var power float64
		for _, g := range out.groups {
			power += g.Trace()
		}
		if power > bestPower {
			best, bestPower = i, power
		}
		if cfg.Combine == CombineSum {
			m.Values.Add(m.Values, out.spectrum)
			m.BinsUsed = append(m.BinsUsed, bin.Index)
			m.bins = append(m.bins, binModel{index: bin.Index, freq: bin.FreqHz, groups: out.groups, eigen: out.eigen})
		}
	}
	if cfg.Combine == CombinePeak && best >= 0 {
		bin, out := res.Bins[best], outcomes[best]
		m.Values.Copy(out.spectrum)
		m.BinsUsed = []int{bin.Index}
		m.bins = []binModel{{index: bin.Index, freq: bin.FreqHz, groups: out.groups, eigen: out.eigen}}
	}
	return nil
}

func computeMatrix(res *l3spectral.Result, cfg *Config, m *Map) error {
	var usable []l3spectral.Bin
	for _, bin := range res.Bins {
		if reason := screenBin(bin, cfg); reason != "" {
			m.Excluded = append(m.Excluded, BinIssue{Index: bin.Index, FreqHz: bin.FreqHz, Kind: mstid.Numerical, Reason: reason})
			continue
		}
		usable = append(usable, bin)
	}
	if len(usable) == 0 {
		return nil
	}

	combined := make([]l3spectral.Group, len(usable[0].Groups))
	for gi := range combined {
		g := usable[0].Groups[gi]
		n := g.Elements()
		sum := mat.NewCDense(n, n, nil)
		snaps := 0
		for _, bin := range usable {
			addCDense(sum, bin.Groups[gi].CSM)
			snaps += bin.Groups[gi].Snapshots
		}
		combined[gi] = l3spectral.Group{Label: g.Label, X: g.X, Y: g.Y, CSM: sum, Snapshots: snaps}
	}

	out, err := evaluate(combined, cfg, m.Kx, m.Ky)
	if err != nil {
		return err
	}
	if out.spectrum == nil {
		for _, bin := range usable {
			m.Excluded = append(m.Excluded, BinIssue{Index: bin.Index, FreqHz: bin.FreqHz, Kind: mstid.Numerical,
				Reason: "combined matrix: " + out.reason})
		}
		return nil
	}
	m.Values.Copy(out.spectrum)
	for _, bin := range usable {
		m.BinsUsed = append(m.BinsUsed, bin.Index)
		m.bins = append(m.bins, binModel{index: bin.Index, freq: bin.FreqHz, groups: bin.Groups, eigen: out.eigen})
	}
	return nil
}

// screenBin rejects bins that cannot contribute to a summed matrix.
func screenBin(bin l3spectral.Bin, cfg *Config) string {
	for _, g := range bin.Groups {
		r, c := g.CSM.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := g.CSM.At(i, j); cmplx.IsNaN(v) || cmplx.IsInf(v) {
					return fmt.Sprintf("non-finite entry in group %s", g.Label)
				}
			}
		}
	}
	if tr := bin.Trace(); !(tr > cfg.MinEigenvalue) {
		return fmt.Sprintf("total power %.3g is not above %.3g", tr, cfg.MinEigenvalue)
	}
	return ""
}

// evaluate decomposes every group, skips the ill-conditioned ones and
// averages the pseudo-spectra of the rest.
func evaluate(groups []l3spectral.Group, cfg *Config, kx, ky []float64) (binOutcome, error) {
	var out binOutcome
	var reasons []string
	var eigenSum []float64
	for _, g := range groups {
		sub, err := decompose(g.CSM, cfg.NumSignals)
		if err != nil {
			reasons = append(reasons, g.Label+": "+err.Error())
			continue
		}
		if ok, why := cfg.conditioned(sub); !ok {
			reasons = append(reasons, g.Label+": "+why)
			continue
		}
		if out.spectrum == nil {
			out.spectrum = mat.NewDense(len(ky), len(kx), nil)
			eigenSum = make([]float64, len(sub.values))
		}
		addPseudoSpectrum(out.spectrum, g, sub, kx, ky)
		floats.Add(eigenSum, sub.values)
		out.groups = append(out.groups, g)
	}
	if out.spectrum == nil {
		out.reason = "no usable group"
		if len(reasons) > 0 {
			out.reason = reasons[0]
			if len(reasons) > 1 {
				out.reason += fmt.Sprintf(" (and %d more)", len(reasons)-1)
			}
		}
		return out, nil
	}
	n := float64(len(out.groups))
	out.spectrum.Scale(1/n, out.spectrum)
	floats.Scale(1/n, eigenSum)
	out.eigen = eigenSum

	r, c := out.spectrum.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := out.spectrum.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return out, mstid.Numericalf(stageName, "spectrum", "invalid pseudo-spectrum value %v at (%d, %d)", v, i, j)
			}
		}
	}
	return out, nil
}

// addPseudoSpectrum adds 1 / (1 - ‖Eₛᴴa(k)‖²) over the grid into dst.
// The steering phase separates as exp(-i kx x) exp(-i ky y), so the two
// factors are tabulated once per axis.
func addPseudoSpectrum(dst *mat.Dense, g l3spectral.Group, sub *subspace, kx, ky []float64) {
	n := g.Elements()
	scale := 1 / math.Sqrt(float64(n))
	ex := make([][]complex128, len(kx))
	for ix, k := range kx {
		row := make([]complex128, n)
		for e, x := range g.X {
			row[e] = cmplx.Rect(scale, -k*x)
		}
		ex[ix] = row
	}
	ey := make([][]complex128, len(ky))
	for iy, k := range ky {
		row := make([]complex128, n)
		for e, y := range g.Y {
			row[e] = cmplx.Rect(1, -k*y)
		}
		ey[iy] = row
	}

	ar := make([]float64, n)
	ai := make([]float64, n)
	for iy := range ky {
		for ix := range kx {
			for e := 0; e < n; e++ {
				a := ex[ix][e] * ey[iy][e]
				ar[e], ai[e] = real(a), imag(a)
			}
			var proj float64
			for _, v := range sub.signal {
				d := floats.Dot(v[:n], ar) + floats.Dot(v[n:], ai)
				proj += d * d
			}
			den := math.Max(1-proj, minDenominator)
			dst.Set(iy, ix, dst.At(iy, ix)+1/den)
		}
	}
}

func addCDense(dst, src *mat.CDense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+src.At(i, j))
		}
	}
}

func workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
