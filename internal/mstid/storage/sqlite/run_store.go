package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
	"github.com/banshee-data/mstid/internal/mstid/pipeline"
	"github.com/banshee-data/mstid/internal/timeutil"
)

var logf = monitoring.Component("RunStore")

// RunStore persists pipeline results.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore over an already migrated database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, clock: timeutil.RealClock{}}
}

// WithClock sets the clock used for created_at.
func (s *RunStore) WithClock(c timeutil.Clock) *RunStore {
	s.clock = c
	return s
}

// SaveRun stores a completed run: the run row, its full history, the
// detected signals and the wavenumber map, in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, res *pipeline.Result, cfg *pipeline.Config) error {
	return s.save(ctx, res, cfg, StatusCompleted, "")
}

// FailRun stores a run that stopped with runErr. Whatever the partial
// result holds (history, and the map if it was built) is kept.
func (s *RunStore) FailRun(ctx context.Context, res *pipeline.Result, cfg *pipeline.Config, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	return s.save(ctx, res, cfg, StatusFailed, msg)
}

func (s *RunStore) save(ctx context.Context, res *pipeline.Result, cfg *pipeline.Config, status, errMsg string) error {
	if res == nil || res.Chain == nil {
		return fmt.Errorf("save run: result has no chain")
	}
	ch := res.Chain
	meta := ch.Active().Meta

	params, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode params for run %s: %w", ch.RunID, err)
	}
	combine, numSignals := "", 0
	switch {
	case res.Map != nil:
		combine, numSignals = string(res.Map.Combine), res.Map.NumSignals
	case cfg != nil && cfg.MUSIC != nil:
		combine, numSignals = string(cfg.MUSIC.Combine), cfg.MUSIC.NumSignals
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mstid_runs (
			run_id, radar, parameter, scatter_model, window_start, window_end,
			combine, num_signals, params_json, status, error, signal_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.RunID, meta.Radar, meta.Parameter, meta.ScatterModel,
		formatTime(meta.WindowStart), formatTime(meta.WindowEnd),
		combine, numSignals, string(params), status, errMsg, len(res.Signals),
		formatTime(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", ch.RunID, err)
	}

	for _, e := range ch.History() {
		p, err := json.Marshal(e.Params)
		if err != nil {
			return fmt.Errorf("encode history entry %d: %w", e.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mstid_history (run_id, seq, stage, level, message, params_json, at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ch.RunID, e.Seq, e.Stage, string(e.Level), e.Message, string(p), formatTime(e.At),
		)
		if err != nil {
			return fmt.Errorf("insert history entry %d: %w", e.Seq, err)
		}
	}

	for _, sig := range res.Signals {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mstid_signals (
				run_id, signal_index, kx, ky, k, wavelength_km, freq_hz, period_s,
				velocity_ms, azimuth_deg, peak, noise_floor, confidence_db,
				eigen_separation, area, dominant_bin
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.RunID, sig.Index, sig.Kx, sig.Ky, sig.K, sig.WavelengthKm, sig.FreqHz, sig.PeriodS,
			sig.VelocityMS, sig.AzimuthDeg, sig.Peak, sig.NoiseFloor, sig.ConfidenceDB,
			sig.EigenSeparation, sig.Area, sig.DominantBin,
		)
		if err != nil {
			return fmt.Errorf("insert signal %d: %w", sig.Index, err)
		}
	}

	if res.Map != nil {
		if err := insertMap(ctx, tx, ch.RunID, res.Map); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", ch.RunID, err)
	}
	logf("stored %s run %s (%d signals, %d history entries)", status, ch.RunID, len(res.Signals), len(ch.History()))
	return nil
}

func insertMap(ctx context.Context, tx *sql.Tx, runID string, m *l4music.Map) error {
	rows, cols := m.Dims()
	values := make([][]float64, rows)
	for r := range values {
		values[r] = mat.Row(nil, r, m.Values)
	}
	issues := make([]storedIssue, len(m.Excluded))
	for i, is := range m.Excluded {
		issues[i] = storedIssue{Index: is.Index, FreqHz: is.FreqHz, Kind: is.Kind.String(), Reason: is.Reason}
	}
	binsUsed := m.BinsUsed
	if binsUsed == nil {
		binsUsed = []int{}
	}

	var enc [5][]byte
	for i, v := range []interface{}{m.Kx, m.Ky, values, binsUsed, issues} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %dx%d map: %w", rows, cols, err)
		}
		enc[i] = b
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO mstid_maps (run_id, kx_json, ky_json, values_json, bins_used_json, excluded_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(enc[0]), string(enc[1]), string(enc[2]), string(enc[3]), string(enc[4]),
	)
	if err != nil {
		return fmt.Errorf("insert map for run %s: %w", runID, err)
	}
	return nil
}

const runColumns = `
	run_id, radar, parameter, scatter_model, window_start, window_end,
	combine, num_signals, params_json, status, error, signal_count, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var start, end sql.NullString
	var params, created string
	err := row.Scan(&r.RunID, &r.Radar, &r.Parameter, &r.ScatterModel, &start, &end,
		&r.Combine, &r.NumSignals, &params, &r.Status, &r.Error, &r.SignalCount, &created)
	if err != nil {
		return nil, err
	}
	r.ParamsJSON = json.RawMessage(params)
	if r.WindowStart, err = parseTime(start.String); err != nil {
		return nil, err
	}
	if r.WindowEnd, err = parseTime(end.String); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+runColumns+` FROM mstid_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns runs newest first. An empty radar lists every radar.
func (s *RunStore) ListRuns(ctx context.Context, radar string) ([]*Run, error) {
	query := `SELECT` + runColumns + ` FROM mstid_runs`
	var args []interface{}
	if radar != "" {
		query += ` WHERE radar = ?`
		args = append(args, radar)
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSignals returns the signals of a run in detection order.
func (s *RunStore) ListSignals(ctx context.Context, runID string) ([]l5detect.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_index, kx, ky, k, wavelength_km, freq_hz, period_s,
		       velocity_ms, azimuth_deg, peak, noise_floor, confidence_db,
		       eigen_separation, area, dominant_bin
		FROM mstid_signals
		WHERE run_id = ?
		ORDER BY signal_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []l5detect.Signal
	for rows.Next() {
		var sig l5detect.Signal
		if err := rows.Scan(&sig.Index, &sig.Kx, &sig.Ky, &sig.K, &sig.WavelengthKm, &sig.FreqHz, &sig.PeriodS,
			&sig.VelocityMS, &sig.AzimuthDeg, &sig.Peak, &sig.NoiseFloor, &sig.ConfidenceDB,
			&sig.EigenSeparation, &sig.Area, &sig.DominantBin); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ListHistory returns the history of a run in sequence order. Numeric
// parameters come back as float64.
func (s *RunStore) ListHistory(ctx context.Context, runID string) ([]dataset.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, stage, level, message, params_json, at
		FROM mstid_history
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []dataset.HistoryEntry
	for rows.Next() {
		var e dataset.HistoryEntry
		var level, params, at string
		if err := rows.Scan(&e.Seq, &e.Stage, &level, &e.Message, &params, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Level = dataset.Level(level)
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return nil, fmt.Errorf("decode history entry %d params: %w", e.Seq, err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetMap rebuilds the stored wavenumber map of a run. The returned map
// carries no spectral data.
func (s *RunStore) GetMap(ctx context.Context, runID string) (*l4music.Map, error) {
	var kxJSON, kyJSON, valuesJSON, binsJSON, excludedJSON, combine string
	var numSignals int
	err := s.db.QueryRowContext(ctx, `
		SELECT m.kx_json, m.ky_json, m.values_json, m.bins_used_json, m.excluded_json,
		       r.combine, r.num_signals
		FROM mstid_maps m JOIN mstid_runs r ON r.run_id = m.run_id
		WHERE m.run_id = ?`, runID).Scan(&kxJSON, &kyJSON, &valuesJSON, &binsJSON, &excludedJSON, &combine, &numSignals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("map for run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan map: %w", err)
	}

	var kx, ky []float64
	var values [][]float64
	var binsUsed []int
	var issues []storedIssue
	for _, d := range []struct {
		src string
		dst interface{}
	}{{kxJSON, &kx}, {kyJSON, &ky}, {valuesJSON, &values}, {binsJSON, &binsUsed}, {excludedJSON, &issues}} {
		if err := json.Unmarshal([]byte(d.src), d.dst); err != nil {
			return nil, fmt.Errorf("decode map for run %s: %w", runID, err)
		}
	}
	if len(values) != len(ky) {
		return nil, fmt.Errorf("map for run %s: %d rows for %d ky samples", runID, len(values), len(ky))
	}
	dense := mat.NewDense(len(ky), len(kx), nil)
	for r, row := range values {
		if len(row) != len(kx) {
			return nil, fmt.Errorf("map for run %s: row %d has %d values for %d kx samples", runID, r, len(row), len(kx))
		}
		dense.SetRow(r, row)
	}

	m := l4music.NewMap(kx, ky, dense)
	m.Combine = l4music.Combine(combine)
	m.NumSignals = numSignals
	m.BinsUsed = binsUsed
	for _, is := range issues {
		m.Excluded = append(m.Excluded, l4music.BinIssue{
			Index: is.Index, FreqHz: is.FreqHz, Kind: kindByName(is.Kind), Reason: is.Reason,
		})
	}
	return m, nil
}

// DeleteRun removes a run and everything stored with it.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mstid_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

func kindByName(name string) mstid.Kind {
	for _, k := range []mstid.Kind{mstid.DataQuality, mstid.Configuration, mstid.Numerical} {
		if k.String() == name {
			return k
		}
	}
	return mstid.Numerical
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
