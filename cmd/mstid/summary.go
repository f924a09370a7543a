package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/mstid/internal/mstid/pipeline"
)

// printSummary writes a human-readable report of res.
func printSummary(w io.Writer, res *pipeline.Result) {
	ch := res.Chain
	snap := ch.Active()
	nt, nb, ng := snap.Cube.Dims()

	fmt.Fprintf(w, "Run %s\n", ch.RunID)
	fmt.Fprintf(w, "Radar %s, parameter %s, scatter model %s\n", snap.Meta.Radar, snap.Meta.Parameter, snap.Meta.ScatterModel)
	fmt.Fprintf(w, "Window %s to %s (%s samples × %d beams × %d gates)\n",
		snap.Meta.WindowStart.Format(time.RFC3339), snap.Meta.WindowEnd.Format(time.RFC3339),
		humanize.Comma(int64(nt)), nb, ng)
	if res.Spectra != nil && len(res.Spectra.Bins) > 0 {
		freqs := res.Spectra.BinFrequencies()
		fmt.Fprintf(w, "Band %s to %s, %d bins\n",
			humanize.SIWithDigits(freqs[0], 3, "Hz"), humanize.SIWithDigits(freqs[len(freqs)-1], 3, "Hz"), len(freqs))
	}
	if m := res.Map; m != nil {
		rows, cols := m.Dims()
		fmt.Fprintf(w, "Map %s cells, combine=%s, p=%d, %d bins used, %d excluded\n",
			humanize.Comma(int64(rows*cols)), m.Combine, m.NumSignals, len(m.BinsUsed), len(m.Excluded))
	}
	for _, warn := range ch.Warnings() {
		fmt.Fprintf(w, "warning [%s]: %s\n", warn.Stage, warn.Message)
	}

	if len(res.Signals) == 0 {
		fmt.Fprintln(w, "No signals detected")
		return
	}
	fmt.Fprintf(w, "%d signal(s):\n", len(res.Signals))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tλ (km)\tT (min)\tv (m/s)\taz (°)\tconf (dB)\tarea\t")
	for _, s := range res.Signals {
		period := "-"
		if s.PeriodS > 0 {
			period = fmt.Sprintf("%.1f", s.PeriodS/60)
		}
		velocity := "-"
		if s.VelocityMS > 0 {
			velocity = fmt.Sprintf("%.0f", s.VelocityMS)
		}
		fmt.Fprintf(tw, "%d\t%.0f\t%s\t%s\t%.0f\t%.1f\t%s\t\n",
			s.Index, s.WavelengthKm, period, velocity, s.AzimuthDeg, s.ConfidenceDB, humanize.Comma(int64(s.Area)))
	}
	tw.Flush()
}
