package l4music

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// subspace is the eigendecomposition of one Hermitian n×n matrix.
type subspace struct {
	n      int
	values []float64   // complex eigenvalues, descending, length n
	signal [][]float64 // top 2p real eigenvectors of the embedding, length 2n each
}

// embed returns the real symmetric 2n×2n matrix [[Re, -Im], [Im, Re]] of a
// Hermitian matrix. Every eigenvalue of h appears twice in the embedding.
func embed(h *mat.CDense) *mat.SymDense {
	n, _ := h.Dims()
	s := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			re, im := real(v), imag(v)
			if i == j {
				im = 0
			}
			s.SetSym(i, j, re)
			s.SetSym(n+i, n+j, re)
			// Lower-left block holds Im; upper-right holds -Im.
			s.SetSym(n+i, j, im)
			s.SetSym(i, n+j, -im)
		}
	}
	return s
}

// decompose factorises h and keeps the p-dimensional signal subspace.
func decompose(h *mat.CDense, p int) (*subspace, error) {
	n, _ := h.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v := h.At(i, j); cmplx.IsNaN(v) || cmplx.IsInf(v) {
				return nil, fmt.Errorf("non-finite entry at (%d, %d)", i, j)
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed(h), true); !ok {
		return nil, fmt.Errorf("eigendecomposition did not converge")
	}
	raw := eig.Values(nil) // ascending, length 2n
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	sub := &subspace{n: n, values: make([]float64, n)}
	for j := 0; j < n; j++ {
		sub.values[j] = math.Max(0, raw[2*n-1-2*j])
	}
	for c := 2*n - 1; c >= 2*n-2*p; c-- {
		sub.signal = append(sub.signal, mat.Col(nil, c, &vecs))
	}
	return sub, nil
}

// conditioned reports whether the decomposition is usable for p signals.
func (c *Config) conditioned(sub *subspace) (bool, string) {
	l1 := sub.values[0]
	if !(l1 > c.MinEigenvalue) {
		return false, fmt.Sprintf("largest eigenvalue %.3g is not above %.3g", l1, c.MinEigenvalue)
	}
	p := c.NumSignals
	if ratio := sub.values[p-1] / l1; ratio < c.ConditionThreshold {
		return false, fmt.Sprintf("eigenvalue ratio λ%d/λ1 = %.3g is below %.3g", p, ratio, c.ConditionThreshold)
	}
	return true, ""
}

// separation returns λp over the mean of the noise eigenvalues, capped at
// 1e15 when the noise subspace is numerically empty.
func separation(values []float64, p int) float64 {
	const maxSeparation = 1e15
	if p < 1 || p >= len(values) {
		return 0
	}
	var noise float64
	for _, v := range values[p:] {
		noise += v
	}
	noise /= float64(len(values) - p)
	lp := values[p-1]
	if noise <= lp/maxSeparation {
		if lp <= 0 {
			return 0
		}
		return maxSeparation
	}
	return lp / noise
}
