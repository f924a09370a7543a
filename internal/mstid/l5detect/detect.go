package l5detect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/l4music"
)

var logf = monitoring.Component("Detect")

// maxConfidenceDB caps the confidence when the noise floor is zero.
const maxConfidenceDB = 300

// Signal is one detected wave component.
type Signal struct {
	Index           int     // ascending in detection order
	Kx              float64 // rad/km
	Ky              float64 // rad/km
	K               float64 // |k|, rad/km
	WavelengthKm    float64
	FreqHz          float64 // dominant bin; 0 when the map carries no spectra
	PeriodS         float64
	VelocityMS      float64 // phase velocity
	AzimuthDeg      float64 // propagation direction, clockwise from north, [0, 360)
	Peak            float64 // pseudo-spectrum value at the peak
	NoiseFloor      float64 // median map value
	ConfidenceDB    float64 // 10·log10(Peak / NoiseFloor)
	EigenSeparation float64 // λp over the mean noise eigenvalue of the dominant bin
	Area            int     // region size in cells
	DominantBin     int     // FFT bin index; -1 when unknown
}

// Detect partitions m into watershed regions around its dominant maxima and
// returns the regions that stand clear of the noise floor. Zero signals is
// a valid result.
func Detect(m *l4music.Map, cfg *Config) ([]Signal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil || m.Values == nil {
		return nil, mstid.DataQualityf(stageName, "map", "no wavenumber map")
	}
	rows, cols := m.Dims()
	if r, c := m.Values.Dims(); r != rows || c != cols {
		return nil, mstid.Configf(stageName, "map", "values are %dx%d but axes are %dx%d", r, c, rows, cols)
	}
	peak := m.Max()
	if !(peak > 0) {
		logf("empty map, nothing to detect")
		return nil, nil
	}

	floor := NoiseFloor(m)
	markers := findMarkers(m.Values, cfg.Neighborhood, cfg.RelativeThreshold*peak)
	labels := watershed(m.Values, markers)
	area := make([]int, len(markers))
	for _, l := range labels {
		if l != unlabeled {
			area[l]++
		}
	}

	var out []Signal
	var dropped int
	for i, mk := range markers {
		kx, ky := m.Kx[mk.col], m.Ky[mk.row]
		value := m.At(mk.row, mk.col)
		if (kx == 0 && ky == 0) || value <= cfg.NoiseMargin*floor || area[i] < cfg.MinArea {
			dropped++
			continue
		}
		out = append(out, characterise(m, kx, ky, value, floor, area[i]))
	}

	if cfg.MaxSignals > 0 && len(out) > cfg.MaxSignals {
		order := make([]int, len(out))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return out[order[a]].Peak > out[order[b]].Peak })
		keep := order[:cfg.MaxSignals]
		sort.Ints(keep)
		trimmed := make([]Signal, len(keep))
		for i, j := range keep {
			trimmed[i] = out[j]
		}
		dropped += len(out) - len(trimmed)
		out = trimmed
	}
	for i := range out {
		out[i].Index = i
	}

	logf("%d markers, %d signals, %d dropped, floor %.3g, max %.3g", len(markers), len(out), dropped, floor, peak)
	return out, nil
}

// NoiseFloor returns the median value of the map.
func NoiseFloor(m *l4music.Map) float64 {
	rows, cols := m.Dims()
	vals := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			vals = append(vals, m.At(r, c))
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

func characterise(m *l4music.Map, kx, ky, value, floor float64, area int) Signal {
	k := math.Hypot(kx, ky)
	s := Signal{
		Kx:           kx,
		Ky:           ky,
		K:            k,
		WavelengthKm: 2 * math.Pi / k,
		AzimuthDeg:   azimuth(kx, ky),
		Peak:         value,
		NoiseFloor:   floor,
		Area:         area,
		DominantBin:  -1,
	}
	if floor > 0 {
		s.ConfidenceDB = 10 * math.Log10(value/floor)
	} else {
		s.ConfidenceDB = maxConfidenceDB
	}

	best := math.Inf(-1)
	for _, bp := range m.SteeredPower(kx, ky) {
		if bp.Power > best {
			best = bp.Power
			s.DominantBin = bp.Index
			s.FreqHz = bp.FreqHz
		}
	}
	if s.FreqHz > 0 {
		s.PeriodS = 1 / s.FreqHz
		s.VelocityMS = s.WavelengthKm * 1000 / s.PeriodS
		s.EigenSeparation = m.EigenSeparation(s.DominantBin)
	}
	return s
}

// azimuth returns atan2(kx, ky) in degrees on [0, 360).
func azimuth(kx, ky float64) float64 {
	a := math.Atan2(kx, ky) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a -= 360
	}
	return a
}
