package fov

import (
	"math"
	"sort"

	"github.com/banshee-data/mstid/internal/mstid"
)

// Model maps a slant range to a ground range for one propagation mode.
// Elevation is only consulted by models that need it.
type Model interface {
	Name() string
	GroundRange(slantKm, elevDeg float64) float64
}

// VirtualHeighter is implemented by models that assign a scatter altitude.
type VirtualHeighter interface {
	VirtualHeight(slantKm float64) float64
}

// Model tags accepted by ModelByName.
const (
	GroundScatter      = "ground-scatter"
	IonosphericScatter = "ionospheric-scatter"
	Standard           = "standard"
	HalfHopE           = "half-hop-E"
	HalfHopF           = "half-hop-F"
	HopAndAHalfF       = "hop-and-a-half-F"
	GenericProjection  = "generic-projection"
	RawElevation       = "raw-elevation"
)

// legModel propagates over legs equal straight segments, each reaching a
// reflection or scatter height given by height(slant of one leg).
type legModel struct {
	name   string
	legs   int
	height func(legKm float64) float64
}

func (m legModel) Name() string { return m.name }

func (m legModel) GroundRange(slantKm, _ float64) float64 {
	if slantKm <= 0 {
		return 0
	}
	leg := slantKm / float64(m.legs)
	return float64(m.legs) * legGroundRange(leg, m.height(leg))
}

func (m legModel) VirtualHeight(slantKm float64) float64 {
	return m.height(slantKm / float64(m.legs))
}

// legGroundRange solves the triangle Earth centre / radar / scatter point
// for the arc length under a straight ray of length r to height h.
func legGroundRange(r, h float64) float64 {
	re := EarthRadiusKm
	cosTheta := (re*re + (re+h)*(re+h) - r*r) / (2 * re * (re + h))
	if cosTheta >= 1 {
		return 0
	}
	if cosTheta < -1 {
		cosTheta = -1
	}
	return re * math.Acos(cosTheta)
}

func fixedHeight(h float64) func(float64) float64 {
	return func(float64) float64 { return h }
}

// chishamHeight is the range-dependent virtual height of Chisham et al.
// (2008) for a single leg of slant range r km.
func chishamHeight(r float64) float64 {
	switch {
	case r < 787.5:
		return 108.974 + 0.0191271*r + 6.68283e-5*r*r
	case r <= 2137.5:
		return 384.416 - 0.178640*r + 1.81405e-4*r*r
	default:
		return 1098.28 - 0.354557*r + 9.39961e-5*r*r
	}
}

// chishamF is the F-region branch of chishamHeight, clamped so near ranges
// still land in the F region.
func chishamF(r float64) float64 {
	return math.Max(200, 384.416-0.178640*r+1.81405e-4*r*r)
}

type genericModel struct{}

func (genericModel) Name() string { return GenericProjection }
func (genericModel) GroundRange(slantKm, _ float64) float64 { return slantKm }

type rawElevationModel struct{}

func (rawElevationModel) Name() string { return RawElevation }
func (rawElevationModel) GroundRange(slantKm, elevDeg float64) float64 {
	return slantKm * math.Cos(elevDeg*deg2rad)
}

var registry = map[string]Model{
	GroundScatter:      legModel{name: GroundScatter, legs: 2, height: fixedHeight(300)},
	IonosphericScatter: legModel{name: IonosphericScatter, legs: 1, height: fixedHeight(300)},
	Standard:           legModel{name: Standard, legs: 1, height: chishamHeight},
	HalfHopE:           legModel{name: HalfHopE, legs: 1, height: fixedHeight(110)},
	HalfHopF:           legModel{name: HalfHopF, legs: 1, height: chishamF},
	HopAndAHalfF:       legModel{name: HopAndAHalfF, legs: 3, height: fixedHeight(300)},
	GenericProjection:  genericModel{},
	RawElevation:       rawElevationModel{},
}

// ModelByName returns the scatter model registered under tag.
func ModelByName(tag string) (Model, error) {
	m, ok := registry[tag]
	if !ok {
		return nil, mstid.Configf("fov", "scatter_model", "unknown scatter model %q (known: %v)", tag, ModelNames())
	}
	return m, nil
}

// ModelNames lists the registered tags in sorted order.
func ModelNames() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
