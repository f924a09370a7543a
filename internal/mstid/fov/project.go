package fov

import (
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
)

// Site describes a radar's location and beam/range layout.
type Site struct {
	Code         string
	Lat, Lon     float64 // degrees
	Boresight    float64 // degrees clockwise from north
	BeamSepDeg   float64
	NumBeams     int     // beams in the full scan; 0 means max(beam)+1
	FirstRangeKm float64 // slant range of gate 0
	RangeSepKm   float64
}

// SlantRange returns the slant range in km of gate number gate.
func (s Site) SlantRange(gate int) float64 {
	return s.FirstRangeKm + float64(gate)*s.RangeSepKm
}

// BeamBearing returns the azimuth in degrees of beam number beam.
func (s Site) BeamBearing(beam, numBeams int) float64 {
	offset := float64(beam) - float64(numBeams-1)/2
	return normDeg(s.Boresight + offset*s.BeamSepDeg)
}

// Project returns the ground position of every (beam, gate) cell under
// model. elevations is optional; when set it is indexed like the grid
// (beam major) and only used by elevation-aware models.
func Project(site Site, beams, gates []int, model Model, elevations []float64) (*dataset.PositionGrid, error) {
	if model == nil {
		return nil, mstid.Configf("fov", "scatter_model", "no scatter model")
	}
	if len(beams) == 0 || len(gates) == 0 {
		return nil, mstid.DataQualityf("fov", "grid", "empty beam or gate list")
	}
	if site.RangeSepKm <= 0 {
		return nil, mstid.Configf("fov", "range_sep", "range separation must be positive, got %g", site.RangeSepKm)
	}
	grid := dataset.NewPositionGrid(beams, gates, "geo")
	if elevations != nil && len(elevations) != len(grid.Lat) {
		return nil, mstid.DataQualityf("fov", "elevation", "have %d elevations, want %d", len(elevations), len(grid.Lat))
	}

	nb := site.NumBeams
	if nb <= 0 {
		for _, b := range beams {
			if b+1 > nb {
				nb = b + 1
			}
		}
	}

	grid.GroundRange = make([]float64, len(grid.Lat))
	vh, hasHeight := model.(VirtualHeighter)
	if hasHeight {
		grid.Altitude = make([]float64, len(grid.Lat))
	}

	for bi, beam := range beams {
		az := site.BeamBearing(beam, nb)
		for gi, gate := range gates {
			idx := grid.Index(bi, gi)
			slant := site.SlantRange(gate)
			elev := 0.0
			if elevations != nil {
				elev = elevations[idx]
			}
			gr := model.GroundRange(slant, elev)
			lat, lon := Destination(site.Lat, site.Lon, az, gr)
			grid.Set(bi, gi, lat, lon)
			grid.GroundRange[idx] = gr
			if hasHeight {
				grid.Altitude[idx] = vh.VirtualHeight(slant)
			}
		}
	}
	return grid, nil
}
