package l3spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/fov"
)

var logf = monitoring.Component("Spectral")

// Group is one spatial array at one frequency bin: element positions in
// local km (x east, y north) and their cross-spectral matrix.
type Group struct {
	Label     string
	X, Y      []float64
	CSM       *mat.CDense
	Snapshots int // number of outer products averaged into CSM
}

// Elements returns the number of array elements.
func (g Group) Elements() int { return len(g.X) }

// Trace returns the summed power on the diagonal.
func (g Group) Trace() float64 {
	var tr float64
	for i := range g.X {
		tr += real(g.CSM.At(i, i))
	}
	return tr
}

// Bin holds every group at one retained frequency.
type Bin struct {
	Index  int     // FFT bin index
	FreqHz float64 // bin centre frequency
	Groups []Group
}

// Trace returns the total power of the bin over all groups.
func (b Bin) Trace() float64 {
	var tr float64
	for _, g := range b.Groups {
		tr += g.Trace()
	}
	return tr
}

// Result is the output of Estimate.
type Result struct {
	Mode         GateAveraging
	SampleRateHz float64
	N            int       // series length
	Frequencies  []float64 // every non-negative FFT frequency, Hz
	Bins         []Bin     // retained bins in ascending frequency
	Beams        []int
	Gates        []int
}

// BinFrequencies returns the retained bin frequencies.
func (r *Result) BinFrequencies() []float64 {
	out := make([]float64, len(r.Bins))
	for i, b := range r.Bins {
		out[i] = b.FreqHz
	}
	return out
}

// Estimate computes the cross-spectral matrices of in for every FFT bin
// in the configured band.
func Estimate(in *dataset.Snapshot, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cube := in.Cube
	if !cube.AllFinite() {
		return nil, mstid.Numericalf(stageName, "input", "snapshot %q contains missing or non-finite samples", in.Name)
	}
	nt, nb, ng := cube.Dims()
	if nt < 4 {
		return nil, mstid.DataQualityf(stageName, "time", "need at least 4 samples, got %d", nt)
	}
	dt := cube.Times[1].Sub(cube.Times[0]).Seconds()
	fs := 1 / dt

	fft := fourier.NewFFT(nt)
	nf := nt/2 + 1
	freqs := make([]float64, nf)
	for k := range freqs {
		freqs[k] = fft.Freq(k) * fs
	}

	var keep []int
	for k := 1; k < nf; k++ {
		if freqs[k] >= cfg.FreqMinHz && freqs[k] <= cfg.FreqMaxHz {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		return nil, mstid.Configf(stageName, "freq_min_hz",
			"no FFT bin in [%g, %g] Hz (resolution %g Hz, Nyquist %g Hz)",
			cfg.FreqMinHz, cfg.FreqMaxHz, fs/float64(nt), fs/2)
	}

	// spec[(b*ng+g)*len(keep)+j] is the coefficient of cell (b, g) at keep[j].
	spec := make([]complex128, nb*ng*len(keep))
	var series []float64
	coeff := make([]complex128, nf)
	for b := 0; b < nb; b++ {
		for g := 0; g < ng; g++ {
			series = cube.Series(b, g, series)
			fft.Coefficients(coeff, series)
			base := (b*ng + g) * len(keep)
			for j, k := range keep {
				spec[base+j] = coeff[k]
			}
		}
	}
	at := func(b, g, j int) complex128 { return spec[(b*ng+g)*len(keep)+j] }

	xs, ys := fov.LocalXYCentroid(in.Positions.Lat, in.Positions.Lon)
	pos := func(b, g int) (float64, float64) {
		i := in.Positions.Index(b, g)
		return xs[i], ys[i]
	}

	repGate := ng / 2
	if cfg.GateAveraging == GateNone && cfg.RepresentativeGate != -1 {
		gi, ok := cube.GateIndex(cfg.RepresentativeGate)
		if !ok {
			return nil, mstid.Configf(stageName, "representative_gate",
				"gate %d not in %d..%d", cfg.RepresentativeGate, cube.Gates[0], cube.Gates[ng-1])
		}
		repGate = gi
	}

	res := &Result{
		Mode:         cfg.GateAveraging,
		SampleRateHz: fs,
		N:            nt,
		Frequencies:  freqs,
		Beams:        append([]int(nil), cube.Beams...),
		Gates:        append([]int(nil), cube.Gates...),
	}

	vec := make([]complex128, nb*ng)
	for j, k := range keep {
		scale := 2 / float64(nt)
		if nt%2 == 0 && k == nt/2 {
			scale = 1 / float64(nt)
		}
		bin := Bin{Index: k, FreqHz: freqs[k]}

		switch cfg.GateAveraging {
		case GateNone:
			v := vec[:nb]
			gx, gy := make([]float64, nb), make([]float64, nb)
			for b := 0; b < nb; b++ {
				v[b] = at(b, repGate, j)
				gx[b], gy[b] = pos(b, repGate)
			}
			csm := mat.NewCDense(nb, nb, nil)
			addOuter(csm, v, scale)
			bin.Groups = []Group{{Label: fmt.Sprintf("gate %d", cube.Gates[repGate]), X: gx, Y: gy, CSM: csm, Snapshots: 1}}

		case GateMatrix:
			v := vec[:nb]
			gx, gy := make([]float64, nb), make([]float64, nb)
			csm := mat.NewCDense(nb, nb, nil)
			for g := 0; g < ng; g++ {
				for b := 0; b < nb; b++ {
					v[b] = at(b, g, j)
					x, y := pos(b, g)
					gx[b] += x / float64(ng)
					gy[b] += y / float64(ng)
				}
				addOuter(csm, v, scale/float64(ng))
			}
			bin.Groups = []Group{{Label: "gate-averaged", X: gx, Y: gy, CSM: csm, Snapshots: ng}}

		case GateIncoherent:
			v := vec[:nb]
			for g := 0; g < ng; g++ {
				gx, gy := make([]float64, nb), make([]float64, nb)
				for b := 0; b < nb; b++ {
					v[b] = at(b, g, j)
					gx[b], gy[b] = pos(b, g)
				}
				csm := mat.NewCDense(nb, nb, nil)
				addOuter(csm, v, scale)
				bin.Groups = append(bin.Groups, Group{Label: fmt.Sprintf("gate %d", cube.Gates[g]), X: gx, Y: gy, CSM: csm, Snapshots: 1})
			}

		case GateAperture:
			n := nb * ng
			gx, gy := make([]float64, n), make([]float64, n)
			for b := 0; b < nb; b++ {
				for g := 0; g < ng; g++ {
					i := b*ng + g
					vec[i] = at(b, g, j)
					gx[i], gy[i] = pos(b, g)
				}
			}
			csm := mat.NewCDense(n, n, nil)
			addOuter(csm, vec, scale)
			bin.Groups = []Group{{Label: "aperture", X: gx, Y: gy, CSM: csm, Snapshots: 1}}
		}

		for _, grp := range bin.Groups {
			if !finiteCDense(grp.CSM) {
				return nil, mstid.Numericalf(stageName, fmt.Sprintf("bin %d", k),
					"non-finite cross-spectral matrix for %s", grp.Label)
			}
		}
		res.Bins = append(res.Bins, bin)
	}

	logf("%d bins in %.3g-%.3g mHz, mode %s, %d group(s) of %d elements",
		len(res.Bins), res.Bins[0].FreqHz*1e3, res.Bins[len(res.Bins)-1].FreqHz*1e3,
		cfg.GateAveraging, len(res.Bins[0].Groups), res.Bins[0].Groups[0].Elements())
	return res, nil
}

// addOuter accumulates scale * v vᴴ into m. The diagonal is stored exactly
// real and the lower triangle as the conjugate of the upper.
func addOuter(m *mat.CDense, v []complex128, scale float64) {
	n := len(v)
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+complex(scale*real(v[i]*cmplx.Conj(v[i])), 0))
		for j := i + 1; j < n; j++ {
			p := complex(scale, 0) * v[i] * cmplx.Conj(v[j])
			m.Set(i, j, m.At(i, j)+p)
			m.Set(j, i, m.At(j, i)+cmplx.Conj(p))
		}
	}
}

func finiteCDense(m *mat.CDense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if cmplx.IsNaN(v) || cmplx.IsInf(v) {
				return false
			}
		}
	}
	return true
}

// IsHermitian reports whether m is square, equal to its conjugate transpose
// within tol, and has a real non-negative diagonal.
func IsHermitian(m *mat.CDense, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	for i := 0; i < r; i++ {
		d := m.At(i, i)
		if imag(d) != 0 || real(d) < 0 {
			return false
		}
		for j := i + 1; j < r; j++ {
			if cmplx.Abs(m.At(i, j)-cmplx.Conj(m.At(j, i))) > tol*math.Max(1, cmplx.Abs(m.At(i, j))) {
				return false
			}
		}
	}
	return true
}
