package dataset

import (
	"math"
	"time"

	"github.com/banshee-data/mstid/internal/mstid"
)

const stageName = "dataset"

// Cube is a (time, beam, range-gate) array of one radar parameter.
// Values are stored flat in row-major (time, beam, gate) order; NaN marks a
// missing sample.
type Cube struct {
	Times  []time.Time
	Beams  []int // radar beam numbers
	Gates  []int // radar range-gate numbers
	Values []float64
}

// NewCube allocates a cube with every sample missing.
// The time axis must be strictly increasing and the beam and gate axes must
// be non-empty with unique entries.
func NewCube(times []time.Time, beams, gates []int) (*Cube, error) {
	if len(times) == 0 {
		return nil, mstid.DataQualityf(stageName, "time", "time axis is empty")
	}
	if len(beams) == 0 {
		return nil, mstid.DataQualityf(stageName, "beam", "beam axis is empty")
	}
	if len(gates) == 0 {
		return nil, mstid.DataQualityf(stageName, "gate", "gate axis is empty")
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, mstid.DataQualityf(stageName, "time",
				"time axis not strictly increasing at index %d (%s after %s)",
				i, times[i].Format(time.RFC3339), times[i-1].Format(time.RFC3339))
		}
	}
	if dup, ok := firstDuplicate(beams); ok {
		return nil, mstid.DataQualityf(stageName, "beam", "duplicate beam %d", dup)
	}
	if dup, ok := firstDuplicate(gates); ok {
		return nil, mstid.DataQualityf(stageName, "gate", "duplicate gate %d", dup)
	}

	values := make([]float64, len(times)*len(beams)*len(gates))
	for i := range values {
		values[i] = math.NaN()
	}
	return &Cube{
		Times:  append([]time.Time(nil), times...),
		Beams:  append([]int(nil), beams...),
		Gates:  append([]int(nil), gates...),
		Values: values,
	}, nil
}

func firstDuplicate(xs []int) (int, bool) {
	seen := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			return x, true
		}
		seen[x] = struct{}{}
	}
	return 0, false
}

// Dims returns the axis lengths.
func (c *Cube) Dims() (nt, nb, ng int) {
	return len(c.Times), len(c.Beams), len(c.Gates)
}

// Index returns the flat offset of (t, b, g) where all three are axis indices.
func (c *Cube) Index(t, b, g int) int {
	return (t*len(c.Beams)+b)*len(c.Gates) + g
}

// At returns the sample at axis indices (t, b, g).
func (c *Cube) At(t, b, g int) float64 {
	return c.Values[c.Index(t, b, g)]
}

// Set stores v at axis indices (t, b, g).
func (c *Cube) Set(t, b, g int, v float64) {
	c.Values[c.Index(t, b, g)] = v
}

// Valid reports whether the sample at (t, b, g) is present.
func (c *Cube) Valid(t, b, g int) bool {
	return !math.IsNaN(c.At(t, b, g))
}

// Series copies the time series of cell (b, g) into dst, growing it as
// needed, and returns it.
func (c *Cube) Series(b, g int, dst []float64) []float64 {
	nt := len(c.Times)
	if cap(dst) < nt {
		dst = make([]float64, nt)
	}
	dst = dst[:nt]
	for t := 0; t < nt; t++ {
		dst[t] = c.Values[c.Index(t, b, g)]
	}
	return dst
}

// SetSeries overwrites the time series of cell (b, g) with src.
func (c *Cube) SetSeries(b, g int, src []float64) {
	for t := range c.Times {
		c.Values[c.Index(t, b, g)] = src[t]
	}
}

// BeamIndex returns the axis index of radar beam number beam.
func (c *Cube) BeamIndex(beam int) (int, bool) {
	return indexOf(c.Beams, beam)
}

// GateIndex returns the axis index of radar gate number gate.
func (c *Cube) GateIndex(gate int) (int, bool) {
	return indexOf(c.Gates, gate)
}

func indexOf(xs []int, x int) (int, bool) {
	for i, v := range xs {
		if v == x {
			return i, true
		}
	}
	return -1, false
}

// CountValid returns the number of present samples.
func (c *Cube) CountValid() int {
	n := 0
	for _, v := range c.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// AllFinite reports whether every sample is present and finite.
func (c *Cube) AllFinite() bool {
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Seconds returns the time axis as seconds relative to ref.
func (c *Cube) Seconds(ref time.Time) []float64 {
	out := make([]float64, len(c.Times))
	for i, t := range c.Times {
		out[i] = t.Sub(ref).Seconds()
	}
	return out
}

// Clone returns a deep copy.
func (c *Cube) Clone() *Cube {
	if c == nil {
		return nil
	}
	return &Cube{
		Times:  append([]time.Time(nil), c.Times...),
		Beams:  append([]int(nil), c.Beams...),
		Gates:  append([]int(nil), c.Gates...),
		Values: append([]float64(nil), c.Values...),
	}
}

// CropGates returns a new cube restricted to gate indices [lo, hi].
func (c *Cube) CropGates(lo, hi int) *Cube {
	nt, nb, _ := c.Dims()
	ng := hi - lo + 1
	out := &Cube{
		Times:  append([]time.Time(nil), c.Times...),
		Beams:  append([]int(nil), c.Beams...),
		Gates:  append([]int(nil), c.Gates[lo:hi+1]...),
		Values: make([]float64, nt*nb*ng),
	}
	for t := 0; t < nt; t++ {
		for b := 0; b < nb; b++ {
			for g := 0; g < ng; g++ {
				out.Set(t, b, g, c.At(t, b, lo+g))
			}
		}
	}
	return out
}

// Resampled returns an all-missing cube with the same beams and gates on a
// new time axis.
func (c *Cube) Resampled(times []time.Time) (*Cube, error) {
	return NewCube(times, c.Beams, c.Gates)
}
