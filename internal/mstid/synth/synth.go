package synth

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/fov"
)

// Wave is one travelling plane wave A·cos(2πt/T − k·r + φ) with k pointing
// along Azimuth.
type Wave struct {
	WavelengthKm float64
	PeriodS      float64
	AzimuthDeg   float64 // propagation direction, clockwise from north
	Amplitude    float64
	PhaseRad     float64
}

// Wavenumber returns (kx, ky) in rad/km.
func (w Wave) Wavenumber() (kx, ky float64) {
	k := 2 * math.Pi / w.WavelengthKm
	az := w.AzimuthDeg * math.Pi / 180
	return k * math.Sin(az), k * math.Cos(az)
}

// Config describes a synthetic scene.
type Config struct {
	Radar        string
	Parameter    string
	Site         fov.Site
	ScatterModel string
	Beams        []int
	Gates        []int

	Start   time.Time
	Cadence time.Duration
	Samples int
	Jitter  time.Duration // uniform ± offset applied to each sample time; must stay below Cadence/2

	Waves      []Wave
	Background float64 // constant offset added everywhere
	Noise      float64 // Gaussian noise std as a fraction of the largest wave amplitude

	MissingFraction float64 // probability that any one sample is NaN
	MissingBeams    []int   // radar beams with no data at all

	Seed int64
}

// DefaultConfig returns a 16-beam mid-latitude radar looking north-west,
// two hours at 2 min cadence, with a single 200 km, 20 min wave towards
// the north-east and 10% noise.
func DefaultConfig() *Config {
	beams := make([]int, 16)
	for i := range beams {
		beams[i] = i
	}
	gates := make([]int, 10)
	for i := range gates {
		gates[i] = 6 + i
	}
	return &Config{
		Radar:     "bks",
		Parameter: "p_l",
		Site: fov.Site{
			Code:         "bks",
			Lat:          37.10,
			Lon:          -77.95,
			Boresight:    -40,
			BeamSepDeg:   3.24,
			NumBeams:     16,
			FirstRangeKm: 180,
			RangeSepKm:   45,
		},
		ScatterModel: fov.Standard,
		Beams:        beams,
		Gates:        gates,
		Start:        time.Date(2012, 12, 21, 16, 0, 0, 0, time.UTC),
		Cadence:      2 * time.Minute,
		Samples:      60,
		Waves: []Wave{
			{WavelengthKm: 200, PeriodS: 1200, AzimuthDeg: 45, Amplitude: 1},
		},
		Background: 10,
		Noise:      0.1,
		Seed:       1,
	}
}

// Generate builds the scene as an "original" snapshot.
func Generate(cfg *Config) (*dataset.Snapshot, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	model, err := fov.ModelByName(cfg.ScatterModel)
	if err != nil {
		return nil, err
	}
	positions, err := fov.Project(cfg.Site, cfg.Beams, cfg.Gates, model, nil)
	if err != nil {
		return nil, err
	}
	xs, ys := fov.LocalXYCentroid(positions.Lat, positions.Lon)

	rng := rand.New(rand.NewSource(cfg.Seed))
	times := make([]time.Time, cfg.Samples)
	for i := range times {
		t := cfg.Start.Add(time.Duration(i) * cfg.Cadence)
		if cfg.Jitter > 0 {
			t = t.Add(time.Duration((2*rng.Float64() - 1) * float64(cfg.Jitter)))
		}
		times[i] = t
	}
	cube, err := dataset.NewCube(times, cfg.Beams, cfg.Gates)
	if err != nil {
		return nil, err
	}

	type plane struct{ kx, ky, omega, amp, phase float64 }
	planes := make([]plane, len(cfg.Waves))
	var maxAmp float64
	for i, w := range cfg.Waves {
		kx, ky := w.Wavenumber()
		planes[i] = plane{kx, ky, 2 * math.Pi / w.PeriodS, w.Amplitude, w.PhaseRad}
		maxAmp = math.Max(maxAmp, math.Abs(w.Amplitude))
	}
	sigma := cfg.Noise * maxAmp

	missing := make(map[int]bool, len(cfg.MissingBeams))
	for _, b := range cfg.MissingBeams {
		missing[b] = true
	}

	nt, nb, ng := cube.Dims()
	for ti := 0; ti < nt; ti++ {
		sec := times[ti].Sub(cfg.Start).Seconds()
		for bi := 0; bi < nb; bi++ {
			for gi := 0; gi < ng; gi++ {
				if missing[cfg.Beams[bi]] {
					cube.Set(ti, bi, gi, math.NaN())
					continue
				}
				idx := positions.Index(bi, gi)
				v := cfg.Background
				for _, p := range planes {
					v += p.amp * math.Cos(p.omega*sec-(p.kx*xs[idx]+p.ky*ys[idx])+p.phase)
				}
				if sigma > 0 {
					v += sigma * rng.NormFloat64()
				}
				if cfg.MissingFraction > 0 && rng.Float64() < cfg.MissingFraction {
					v = math.NaN()
				}
				cube.Set(ti, bi, gi, v)
			}
		}
	}

	return dataset.NewSnapshot("original", cube, positions, dataset.Metadata{
		Radar:        cfg.Radar,
		Parameter:    cfg.Parameter,
		ScatterModel: cfg.ScatterModel,
		WindowStart:  times[0],
		WindowEnd:    times[nt-1],
		Cadence:      cfg.Cadence,
		Notes:        map[string]string{"source": "synthetic", "seed": fmt.Sprint(cfg.Seed)},
	})
}

func (c *Config) validate() error {
	if c.Samples < 2 {
		return mstid.Configf("synth", "samples", "need at least 2 samples, got %d", c.Samples)
	}
	if c.Cadence <= 0 {
		return mstid.Configf("synth", "cadence", "must be positive, got %v", c.Cadence)
	}
	if c.Jitter < 0 || 2*c.Jitter >= c.Cadence {
		return mstid.Configf("synth", "jitter", "must be in [0, cadence/2), got %v", c.Jitter)
	}
	for i, w := range c.Waves {
		if !(w.WavelengthKm > 0) || !(w.PeriodS > 0) {
			return mstid.Configf("synth", fmt.Sprintf("wave %d", i),
				"wavelength and period must be positive, got %g km, %g s", w.WavelengthKm, w.PeriodS)
		}
	}
	if c.Noise < 0 || c.MissingFraction < 0 || c.MissingFraction > 1 {
		return mstid.Configf("synth", "noise", "noise %g and missing fraction %g must be non-negative fractions",
			c.Noise, c.MissingFraction)
	}
	return nil
}
