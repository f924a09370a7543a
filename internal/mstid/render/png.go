package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
)

// Options control both renderers.
type Options struct {
	Title    string
	Decibels bool      // plot 10·log10(value / max) instead of linear power
	Size     vg.Length // PNG edge length; zero means 6 inches
}

func (o Options) title() string {
	if o.Title != "" {
		return o.Title
	}
	return "MUSIC wavenumber map"
}

// mapGrid adapts a Map to plotter.GridXYZ. Columns follow Kx, rows Ky.
type mapGrid struct {
	m     *l4music.Map
	scale func(float64) float64
}

func (g mapGrid) Dims() (c, r int)   { return len(g.m.Kx), len(g.m.Ky) }
func (g mapGrid) Z(c, r int) float64 { return g.scale(g.m.At(r, c)) }
func (g mapGrid) X(c int) float64    { return g.m.Kx[c] }
func (g mapGrid) Y(r int) float64    { return g.m.Ky[r] }

// scaler returns the value transform for o. In decibels the map maximum is
// 0 dB and zeros are clamped to the floor.
func scaler(m *l4music.Map, o Options) func(float64) float64 {
	if !o.Decibels {
		return func(v float64) float64 { return v }
	}
	const floorDB = -40
	max := m.Max()
	return func(v float64) float64 {
		if max <= 0 || v <= 0 {
			return floorDB
		}
		return math.Max(10*math.Log10(v/max), floorDB)
	}
}

func checkMap(m *l4music.Map) error {
	if m == nil || m.Values == nil {
		return fmt.Errorf("render: no map")
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("render: empty map")
	}
	if r, c := m.Values.Dims(); r != rows || c != cols {
		return fmt.Errorf("render: map values are %dx%d, axes %dx%d", r, c, rows, cols)
	}
	return nil
}

// NewPlot builds the heat map of m with signals overlaid as crosses.
func NewPlot(m *l4music.Map, signals []l5detect.Signal, o Options) (*plot.Plot, error) {
	if err := checkMap(m); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = o.title()
	p.X.Label.Text = "kx (rad/km)"
	p.Y.Label.Text = "ky (rad/km)"

	hm := plotter.NewHeatMap(mapGrid{m: m, scale: scaler(m, o)}, palette.Heat(64, 1))
	if hm.Max <= hm.Min {
		// A flat map would divide by zero when picking colours.
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	if len(signals) > 0 {
		pts := make(plotter.XYs, len(signals))
		for i, s := range signals {
			pts[i] = plotter.XY{X: s.Kx, Y: s.Ky}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("render: signal overlay: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add("signals", sc)
	}
	return p, nil
}

// WritePNG renders m and signals as a PNG image to w.
func WritePNG(w io.Writer, m *l4music.Map, signals []l5detect.Signal, o Options) error {
	p, err := NewPlot(m, signals, o)
	if err != nil {
		return err
	}
	size := o.Size
	if size <= 0 {
		size = 6 * vg.Inch
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render: write png: %w", err)
	}
	return nil
}
