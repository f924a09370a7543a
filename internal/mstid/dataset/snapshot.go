package dataset

import (
	"time"

	"github.com/banshee-data/mstid/internal/mstid"
)

// Metadata describes where a snapshot came from. None of it changes the
// numerical processing; it is carried for provenance.
type Metadata struct {
	Radar        string            `json:"radar"`
	Parameter    string            `json:"parameter"`
	ScatterModel string            `json:"scatter_model"`
	WindowStart  time.Time         `json:"window_start"`
	WindowEnd    time.Time         `json:"window_end"`
	Cadence      time.Duration     `json:"cadence"`
	Notes        map[string]string `json:"notes,omitempty"`
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Notes != nil {
		out.Notes = make(map[string]string, len(m.Notes))
		for k, v := range m.Notes {
			out.Notes[k] = v
		}
	}
	return out
}

// Snapshot is one named state of the dataset. Stages never modify their
// input snapshot; they Derive a new one and hand it to Chain.Publish.
type Snapshot struct {
	Name      string
	Cube      *Cube
	Positions *PositionGrid
	Meta      Metadata
}

// NewSnapshot validates that cube and positions agree and returns a snapshot.
func NewSnapshot(name string, cube *Cube, positions *PositionGrid, meta Metadata) (*Snapshot, error) {
	if cube == nil {
		return nil, mstid.DataQualityf(stageName, "cube", "snapshot %q has no cube", name)
	}
	if positions == nil {
		return nil, mstid.DataQualityf(stageName, "positions", "snapshot %q has no position grid", name)
	}
	if err := positions.Matches(cube); err != nil {
		return nil, err
	}
	if len(cube.Values) != len(cube.Times)*len(cube.Beams)*len(cube.Gates) {
		return nil, mstid.DataQualityf(stageName, "cube",
			"cube has %d values, want %d", len(cube.Values), len(cube.Times)*len(cube.Beams)*len(cube.Gates))
	}
	return &Snapshot{Name: name, Cube: cube, Positions: positions, Meta: meta}, nil
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Name:      s.Name,
		Cube:      s.Cube.Clone(),
		Positions: s.Positions.Clone(),
		Meta:      s.Meta.clone(),
	}
}

// Derive returns a deep copy renamed to name, ready to be transformed.
func (s *Snapshot) Derive(name string) *Snapshot {
	out := s.Clone()
	out.Name = name
	return out
}
