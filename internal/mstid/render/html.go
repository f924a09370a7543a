package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
)

// viridis stops, matching the other interactive charts.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func axisLabels(ks []float64) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = fmt.Sprintf("%.3f", k)
	}
	return out
}

// nearestIndex returns the index of the axis sample closest to k.
func nearestIndex(axis []float64, k float64) int {
	best, bestD := 0, math.Inf(1)
	for i, a := range axis {
		if d := math.Abs(a - k); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// NewHeatMap builds the interactive chart of m. Signals are drawn as a
// scatter series on the nearest grid cell.
func NewHeatMap(m *l4music.Map, signals []l5detect.Signal, o Options) (*charts.HeatMap, error) {
	if err := checkMap(m); err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	scale := scaler(m, o)

	data := make([]opts.HeatMapData, 0, rows*cols)
	lo, hi := math.Inf(1), math.Inf(-1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := scale(m.At(r, c))
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, v}})
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.title(), Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.title(),
			Subtitle: fmt.Sprintf("combine=%s p=%d bins=%d signals=%d", m.Combine, m.NumSignals, len(m.BinsUsed), len(signals)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "kx (rad/km)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: axisLabels(m.Ky), Name: "ky (rad/km)", NameLocation: "middle", NameGap: 45}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(axisLabels(m.Kx)).AddSeries("music", data)

	if len(signals) > 0 {
		pts := make([]opts.ScatterData, len(signals))
		for i, s := range signals {
			pts[i] = opts.ScatterData{
				Name:  fmt.Sprintf("signal %d: %.0f km, %.0f°", s.Index, s.WavelengthKm, s.AzimuthDeg),
				Value: []interface{}{nearestIndex(m.Kx, s.Kx), nearestIndex(m.Ky, s.Ky)},
			}
		}
		sc := charts.NewScatter()
		sc.AddSeries("signals", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
		hm.Overlap(sc)
	}
	return hm, nil
}

// WriteHTML renders m and signals as a standalone HTML page to w.
func WriteHTML(w io.Writer, m *l4music.Map, signals []l5detect.Signal, o Options) error {
	hm, err := NewHeatMap(m, signals, o)
	if err != nil {
		return err
	}
	if err := hm.Render(w); err != nil {
		return fmt.Errorf("render: write html: %w", err)
	}
	return nil
}
