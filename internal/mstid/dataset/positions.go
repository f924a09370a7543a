package dataset

import (
	"github.com/banshee-data/mstid/internal/mstid"
)

// PositionGrid holds the geographic location of every (beam, gate) cell.
// Slices are row-major (beam, gate). GroundRange and Altitude are optional
// and may be nil.
type PositionGrid struct {
	Beams       []int
	Gates       []int
	Lat         []float64 // degrees
	Lon         []float64 // degrees
	GroundRange []float64 // km, optional
	Altitude    []float64 // km, optional
	CoordSystem string    // e.g. "geo"
}

// NewPositionGrid allocates a zeroed grid.
func NewPositionGrid(beams, gates []int, coordSystem string) *PositionGrid {
	n := len(beams) * len(gates)
	return &PositionGrid{
		Beams:       append([]int(nil), beams...),
		Gates:       append([]int(nil), gates...),
		Lat:         make([]float64, n),
		Lon:         make([]float64, n),
		CoordSystem: coordSystem,
	}
}

// Index returns the flat offset of cell (b, g).
func (p *PositionGrid) Index(b, g int) int {
	return b*len(p.Gates) + g
}

// At returns the latitude and longitude of cell (b, g).
func (p *PositionGrid) At(b, g int) (lat, lon float64) {
	i := p.Index(b, g)
	return p.Lat[i], p.Lon[i]
}

// Set stores the latitude and longitude of cell (b, g).
func (p *PositionGrid) Set(b, g int, lat, lon float64) {
	i := p.Index(b, g)
	p.Lat[i] = lat
	p.Lon[i] = lon
}

// Clone returns a deep copy.
func (p *PositionGrid) Clone() *PositionGrid {
	if p == nil {
		return nil
	}
	return &PositionGrid{
		Beams:       append([]int(nil), p.Beams...),
		Gates:       append([]int(nil), p.Gates...),
		Lat:         append([]float64(nil), p.Lat...),
		Lon:         append([]float64(nil), p.Lon...),
		GroundRange: cloneOptional(p.GroundRange),
		Altitude:    cloneOptional(p.Altitude),
		CoordSystem: p.CoordSystem,
	}
}

func cloneOptional(xs []float64) []float64 {
	if xs == nil {
		return nil
	}
	return append([]float64(nil), xs...)
}

// CropGates returns a new grid restricted to gate indices [lo, hi].
func (p *PositionGrid) CropGates(lo, hi int) *PositionGrid {
	out := NewPositionGrid(p.Beams, p.Gates[lo:hi+1], p.CoordSystem)
	if p.GroundRange != nil {
		out.GroundRange = make([]float64, len(out.Lat))
	}
	if p.Altitude != nil {
		out.Altitude = make([]float64, len(out.Lat))
	}
	for b := range p.Beams {
		for g := lo; g <= hi; g++ {
			src := p.Index(b, g)
			dst := out.Index(b, g-lo)
			out.Lat[dst] = p.Lat[src]
			out.Lon[dst] = p.Lon[src]
			if p.GroundRange != nil {
				out.GroundRange[dst] = p.GroundRange[src]
			}
			if p.Altitude != nil {
				out.Altitude[dst] = p.Altitude[src]
			}
		}
	}
	return out
}

// Matches checks that the grid covers exactly the cube's beams and gates.
func (p *PositionGrid) Matches(c *Cube) error {
	if !equalInts(p.Beams, c.Beams) {
		return mstid.DataQualityf(stageName, "positions",
			"position grid beams %v do not match cube beams %v", p.Beams, c.Beams)
	}
	if !equalInts(p.Gates, c.Gates) {
		return mstid.DataQualityf(stageName, "positions",
			"position grid gates %v do not match cube gates %v", p.Gates, c.Gates)
	}
	n := len(p.Beams) * len(p.Gates)
	if len(p.Lat) != n || len(p.Lon) != n {
		return mstid.DataQualityf(stageName, "positions",
			"position grid has %d/%d coordinates, want %d", len(p.Lat), len(p.Lon), n)
	}
	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
