package l4music

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/l3spectral"
)

// BinIssue records why a frequency bin did not contribute to the map.
type BinIssue struct {
	Index  int
	FreqHz float64
	Kind   mstid.Kind
	Reason string
}

// BinPower is the steered power of one bin at one wavenumber.
type BinPower struct {
	Index  int
	FreqHz float64
	Power  float64
}

// binModel keeps what the detector needs to characterise a peak.
type binModel struct {
	index  int
	freq   float64
	groups []l3spectral.Group
	eigen  []float64 // descending, averaged over usable groups
}

// Map is a MUSIC pseudo-spectrum over a symmetric wavenumber grid.
// Values has one row per Ky sample and one column per Kx sample. All values
// are finite and non-negative.
type Map struct {
	Kx         []float64 // rad/km
	Ky         []float64 // rad/km
	Values     *mat.Dense
	Combine    Combine
	NumSignals int
	BinsUsed   []int // FFT bin indices that contributed
	Excluded   []BinIssue

	bins []binModel
}

// NewMap wraps precomputed values. A map built this way carries no
// spectral data: SteeredPower and Eigenvalues return nil.
func NewMap(kx, ky []float64, values *mat.Dense) *Map {
	return &Map{Kx: kx, Ky: ky, Values: values}
}

// Dims returns (rows, cols) = (len(Ky), len(Kx)).
func (m *Map) Dims() (int, int) {
	return len(m.Ky), len(m.Kx)
}

// At returns the value at row iy, column ix.
func (m *Map) At(iy, ix int) float64 {
	return m.Values.At(iy, ix)
}

// Max returns the largest value in the map.
func (m *Map) Max() float64 {
	return mat.Max(m.Values)
}

// IsZero reports whether every value is zero (all bins excluded).
func (m *Map) IsZero() bool {
	return mat.Max(m.Values) == 0 && mat.Min(m.Values) == 0
}

// SteeredPower returns aᴴ C a at (kx, ky) for every contributing bin, with
// a the unit-norm steering vector and C summed over the bin's groups.
func (m *Map) SteeredPower(kx, ky float64) []BinPower {
	if len(m.bins) == 0 {
		return nil
	}
	out := make([]BinPower, len(m.bins))
	for i, b := range m.bins {
		var p float64
		for _, g := range b.groups {
			a := steering(g.X, g.Y, kx, ky)
			p += quadForm(g.CSM, a)
		}
		out[i] = BinPower{Index: b.index, FreqHz: b.freq, Power: p}
	}
	return out
}

// Eigenvalues returns the descending eigenvalues used for bin index, or nil
// if the bin did not contribute.
func (m *Map) Eigenvalues(index int) []float64 {
	for _, b := range m.bins {
		if b.index == index {
			return append([]float64(nil), b.eigen...)
		}
	}
	return nil
}

// EigenSeparation returns λp over the mean noise eigenvalue for bin index.
func (m *Map) EigenSeparation(index int) float64 {
	return separation(m.Eigenvalues(index), m.NumSignals)
}

// steering returns the unit-norm vector exp(-i(kx x + ky y)) / √n.
func steering(xs, ys []float64, kx, ky float64) []complex128 {
	n := len(xs)
	a := make([]complex128, n)
	s := 1 / math.Sqrt(float64(n))
	for i := range xs {
		a[i] = cmplx.Rect(s, -(kx*xs[i] + ky*ys[i]))
	}
	return a
}

// quadForm returns the real part of aᴴ C a.
func quadForm(c *mat.CDense, a []complex128) float64 {
	var acc complex128
	for i := range a {
		var row complex128
		for j := range a {
			row += c.At(i, j) * a[j]
		}
		acc += cmplx.Conj(a[i]) * row
	}
	return real(acc)
}
