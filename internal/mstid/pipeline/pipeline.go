package pipeline

import (
	"fmt"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/l1regrid"
	"github.com/banshee-data/mstid/internal/mstid/l2prep"
	"github.com/banshee-data/mstid/internal/mstid/l3spectral"
	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
)

// History stage names for the stages that do not publish a snapshot.
const (
	SpectrumStage = "spectrum"
	MUSICStage    = "music"
	DetectStage   = "detect"
)

// OriginalSnapshot is the conventional name of the input snapshot.
const OriginalSnapshot = "original"

var logf = monitoring.Component("Pipeline")

// Result is everything a run produces.
type Result struct {
	Chain   *dataset.Chain
	Spectra *l3spectral.Result
	Map     *l4music.Map
	Signals []l5detect.Signal
}

// Analyze starts a chain from initial and runs every stage over it.
func Analyze(initial *dataset.Snapshot, cfg *Config, opts ...dataset.Option) (*Result, error) {
	if initial == nil {
		return nil, mstid.DataQualityf("dataset", "snapshot", "no input snapshot")
	}
	snap := initial
	if snap.Name == "" {
		snap = initial.Derive(OriginalSnapshot)
	}
	ch, err := dataset.NewChain(snap, opts...)
	if err != nil {
		return nil, err
	}
	return Run(ch, cfg)
}

// Run regularises, preprocesses, maps and detects, starting from the
// chain's active snapshot. On error the chain keeps every snapshot
// published before the failing stage.
func Run(ch *dataset.Chain, cfg *Config) (*Result, error) {
	if ch == nil {
		return nil, fmt.Errorf("pipeline: chain is nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	res := &Result{Chain: ch}

	logf("run %s: starting from %q", ch.RunID, ch.ActiveName())
	if err := l1regrid.Regularize(ch, cfg.Regrid); err != nil {
		return res, err
	}
	if err := l2prep.Preprocess(ch, cfg.Prep); err != nil {
		return res, err
	}

	spectra, err := l3spectral.Estimate(ch.Active(), cfg.Spectral)
	if err != nil {
		return res, err
	}
	res.Spectra = spectra
	ch.Log(SpectrumStage, map[string]interface{}{
		"source":         ch.ActiveName(),
		"gate_averaging": string(spectra.Mode),
		"samples":        spectra.N,
		"sample_hz":      spectra.SampleRateHz,
		"bins":           len(spectra.Bins),
		"frequencies_hz": spectra.BinFrequencies(),
	})

	m, err := l4music.Compute(spectra, cfg.MUSIC)
	if err != nil {
		return res, err
	}
	res.Map = m
	ch.Log(MUSICStage, map[string]interface{}{
		"combine":             string(m.Combine),
		"num_signals":         m.NumSignals,
		"kx_max":              cfg.MUSIC.KxMax,
		"ky_max":              cfg.MUSIC.KyMax,
		"dkx":                 cfg.MUSIC.Dkx,
		"dky":                 cfg.MUSIC.Dky,
		"condition_threshold": cfg.MUSIC.ConditionThreshold,
		"bins_used":           m.BinsUsed,
		"bins_excluded":       len(m.Excluded),
		"max":                 m.Max(),
	})
	for _, issue := range m.Excluded {
		ch.Warn(MUSICStage, fmt.Sprintf("bin %d excluded: %s", issue.Index, issue.Reason), map[string]interface{}{
			"bin":     issue.Index,
			"freq_hz": issue.FreqHz,
			"kind":    issue.Kind.String(),
		})
	}

	signals, err := l5detect.Detect(m, cfg.Detect)
	if err != nil {
		return res, err
	}
	res.Signals = signals
	ch.Log(DetectStage, map[string]interface{}{
		"relative_threshold": cfg.Detect.RelativeThreshold,
		"neighborhood":       cfg.Detect.Neighborhood,
		"noise_margin":       cfg.Detect.NoiseMargin,
		"min_area":           cfg.Detect.MinArea,
		"max_signals":        cfg.Detect.MaxSignals,
		"signals":            len(signals),
	})

	logf("run %s: %d signals from %d/%d bins", ch.RunID, len(signals), len(m.BinsUsed), len(spectra.Bins))
	return res, nil
}
