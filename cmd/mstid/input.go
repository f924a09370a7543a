package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/fov"
)

// cubeFile is the JSON interchange format for an input cube. Values are
// indexed [time][beam][gate]; null marks a missing sample. Cell positions
// come either from Positions or, when absent, from projecting Site with
// ScatterModel.
type cubeFile struct {
	Radar        string          `json:"radar"`
	Parameter    string          `json:"parameter"`
	ScatterModel string          `json:"scatter_model,omitempty"`
	Times        []time.Time     `json:"times"`
	Beams        []int           `json:"beams"`
	Gates        []int           `json:"gates"`
	Values       [][][]*float64  `json:"values"`
	Site         *siteFile       `json:"site,omitempty"`
	Positions    *positionsFile  `json:"positions,omitempty"`
	Notes        json.RawMessage `json:"notes,omitempty"`
}

type siteFile struct {
	Code         string  `json:"code"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Boresight    float64 `json:"boresight_deg"`
	BeamSepDeg   float64 `json:"beam_sep_deg"`
	NumBeams     int     `json:"num_beams"`
	FirstRangeKm float64 `json:"first_range_km"`
	RangeSepKm   float64 `json:"range_sep_km"`
}

// positionsFile holds per-cell coordinates indexed [beam][gate].
type positionsFile struct {
	Lat         [][]float64 `json:"lat"`
	Lon         [][]float64 `json:"lon"`
	CoordSystem string      `json:"coord_system,omitempty"`
}

// readCube decodes a cube file into an "original" snapshot. scatterModel
// is used when the file does not name one.
func readCube(r io.Reader, scatterModel string) (*dataset.Snapshot, error) {
	var f cubeFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode cube: %w", err)
	}
	if f.ScatterModel == "" {
		f.ScatterModel = scatterModel
	}

	cube, err := dataset.NewCube(f.Times, f.Beams, f.Gates)
	if err != nil {
		return nil, err
	}
	if len(f.Values) != len(f.Times) {
		return nil, fmt.Errorf("cube has %d time rows, want %d", len(f.Values), len(f.Times))
	}
	for ti, plane := range f.Values {
		if len(plane) != len(f.Beams) {
			return nil, fmt.Errorf("time %d has %d beams, want %d", ti, len(plane), len(f.Beams))
		}
		for bi, row := range plane {
			if len(row) != len(f.Gates) {
				return nil, fmt.Errorf("time %d beam %d has %d gates, want %d", ti, bi, len(row), len(f.Gates))
			}
			for gi, v := range row {
				if v != nil {
					cube.Set(ti, bi, gi, *v)
				}
			}
		}
	}

	positions, err := f.positions()
	if err != nil {
		return nil, err
	}

	var notes map[string]string
	if len(f.Notes) > 0 {
		if err := json.Unmarshal(f.Notes, &notes); err != nil {
			return nil, fmt.Errorf("decode notes: %w", err)
		}
	}
	meta := dataset.Metadata{
		Radar:        f.Radar,
		Parameter:    f.Parameter,
		ScatterModel: f.ScatterModel,
		WindowStart:  f.Times[0],
		WindowEnd:    f.Times[len(f.Times)-1],
		Notes:        notes,
	}
	if len(f.Times) > 1 {
		meta.Cadence = f.Times[1].Sub(f.Times[0])
	}
	return dataset.NewSnapshot("original", cube, positions, meta)
}

func (f *cubeFile) positions() (*dataset.PositionGrid, error) {
	switch {
	case f.Positions != nil:
		coord := f.Positions.CoordSystem
		if coord == "" {
			coord = "geo"
		}
		grid := dataset.NewPositionGrid(f.Beams, f.Gates, coord)
		if len(f.Positions.Lat) != len(f.Beams) || len(f.Positions.Lon) != len(f.Beams) {
			return nil, fmt.Errorf("positions cover %d beams, want %d", len(f.Positions.Lat), len(f.Beams))
		}
		for bi := range f.Beams {
			lat, lon := f.Positions.Lat[bi], f.Positions.Lon[bi]
			if len(lat) != len(f.Gates) || len(lon) != len(f.Gates) {
				return nil, fmt.Errorf("positions for beam %d cover %d gates, want %d", f.Beams[bi], len(lat), len(f.Gates))
			}
			for gi := range f.Gates {
				grid.Set(bi, gi, lat[gi], lon[gi])
			}
		}
		return grid, nil
	case f.Site != nil:
		model, err := fov.ModelByName(f.ScatterModel)
		if err != nil {
			return nil, err
		}
		s := f.Site
		return fov.Project(fov.Site{
			Code:         s.Code,
			Lat:          s.Lat,
			Lon:          s.Lon,
			Boresight:    s.Boresight,
			BeamSepDeg:   s.BeamSepDeg,
			NumBeams:     s.NumBeams,
			FirstRangeKm: s.FirstRangeKm,
			RangeSepKm:   s.RangeSepKm,
		}, f.Beams, f.Gates, model, nil)
	default:
		return nil, fmt.Errorf("cube file needs either positions or site")
	}
}

// writeCube encodes snap in the cube file format with explicit positions.
func writeCube(w io.Writer, snap *dataset.Snapshot) error {
	c := snap.Cube
	nt, nb, ng := c.Dims()
	f := cubeFile{
		Radar:        snap.Meta.Radar,
		Parameter:    snap.Meta.Parameter,
		ScatterModel: snap.Meta.ScatterModel,
		Times:        c.Times,
		Beams:        c.Beams,
		Gates:        c.Gates,
		Values:       make([][][]*float64, nt),
		Positions: &positionsFile{
			Lat:         make([][]float64, nb),
			Lon:         make([][]float64, nb),
			CoordSystem: snap.Positions.CoordSystem,
		},
	}
	for ti := 0; ti < nt; ti++ {
		f.Values[ti] = make([][]*float64, nb)
		for bi := 0; bi < nb; bi++ {
			row := make([]*float64, ng)
			for gi := 0; gi < ng; gi++ {
				if v := c.At(ti, bi, gi); !math.IsNaN(v) {
					row[gi] = &v
				}
			}
			f.Values[ti][bi] = row
		}
	}
	for bi := 0; bi < nb; bi++ {
		f.Positions.Lat[bi] = make([]float64, ng)
		f.Positions.Lon[bi] = make([]float64, ng)
		for gi := 0; gi < ng; gi++ {
			f.Positions.Lat[bi][gi], f.Positions.Lon[bi][gi] = snap.Positions.At(bi, gi)
		}
	}
	if len(snap.Meta.Notes) > 0 {
		notes, err := json.Marshal(snap.Meta.Notes)
		if err != nil {
			return err
		}
		f.Notes = notes
	}
	enc := json.NewEncoder(w)
	return enc.Encode(&f)
}

func readCubeFile(path, scatterModel string) (*dataset.Snapshot, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer fh.Close()
	return readCube(fh, scatterModel)
}

func writeCubeFile(path string, snap *dataset.Snapshot) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeCube(fh, snap); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
