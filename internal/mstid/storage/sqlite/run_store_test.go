package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mstid/internal/db"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/pipeline"
	"github.com/banshee-data/mstid/internal/mstid/synth"
	"github.com/banshee-data/mstid/internal/timeutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *RunStore {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(epoch)
	clock.Step = time.Minute
	return NewRunStore(database.DB).WithClock(clock)
}

func analyze(t *testing.T, runID string, mod func(*synth.Config)) (*pipeline.Result, *pipeline.Config, error) {
	t.Helper()
	sc := synth.DefaultConfig()
	if mod != nil {
		mod(sc)
	}
	snap, err := synth.Generate(sc)
	require.NoError(t, err)

	clock := timeutil.NewMockClock(epoch)
	clock.Step = time.Second
	cfg := pipeline.DefaultConfig()
	res, err := pipeline.Analyze(snap, cfg, dataset.WithRunID(runID), dataset.WithClock(clock))
	return res, cfg, err
}

func TestRunStore_SaveAndRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	res, cfg, err := analyze(t, "run-ok", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, res, cfg))

	run, err := store.GetRun(ctx, "run-ok")
	require.NoError(t, err)
	assert.Equal(t, "bks", run.Radar)
	assert.Equal(t, "p_l", run.Parameter)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Empty(t, run.Error)
	assert.Equal(t, "sum", run.Combine)
	assert.Equal(t, 1, run.NumSignals)
	assert.Equal(t, len(res.Signals), run.SignalCount)
	assert.True(t, run.CreatedAt.Equal(epoch))
	assert.True(t, run.WindowStart.Equal(time.Date(2012, 12, 21, 16, 0, 0, 0, time.UTC)))
	assert.Contains(t, string(run.ParamsJSON), `"NumTaps"`)

	signals, err := store.ListSignals(ctx, "run-ok")
	require.NoError(t, err)
	if diff := cmp.Diff(res.Signals, signals); diff != "" {
		t.Errorf("stored signals mismatch (-want +got):\n%s", diff)
	}

	history, err := store.ListHistory(ctx, "run-ok")
	require.NoError(t, err)
	want := res.Chain.History()
	require.Len(t, history, len(want))
	for i := range want {
		assert.Equal(t, want[i].Seq, history[i].Seq)
		assert.Equal(t, want[i].Stage, history[i].Stage)
		assert.Equal(t, want[i].Level, history[i].Level)
		assert.True(t, want[i].At.Equal(history[i].At), "entry %d time", i)
	}
	last := history[len(history)-1]
	assert.Equal(t, pipeline.DetectStage, last.Stage)
	assert.Equal(t, float64(len(res.Signals)), last.Params["signals"])

	m, err := store.GetMap(ctx, "run-ok")
	require.NoError(t, err)
	assert.Equal(t, res.Map.Kx, m.Kx)
	assert.Equal(t, res.Map.Ky, m.Ky)
	assert.True(t, mat.Equal(res.Map.Values, m.Values))
	assert.Equal(t, res.Map.BinsUsed, m.BinsUsed)
	assert.Equal(t, res.Map.Combine, m.Combine)
	assert.Nil(t, m.SteeredPower(0, 0))
}

func TestRunStore_ExcludedBinsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	res, cfg, err := analyze(t, "run-flat", func(c *synth.Config) {
		c.Waves = nil
		c.Noise = 0
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, res, cfg))

	m, err := store.GetMap(ctx, "run-flat")
	require.NoError(t, err)
	assert.Empty(t, m.BinsUsed)
	require.Len(t, m.Excluded, len(res.Map.Excluded))
	for i, is := range m.Excluded {
		assert.Equal(t, mstid.Numerical, is.Kind)
		assert.Equal(t, res.Map.Excluded[i].Index, is.Index)
		assert.Equal(t, res.Map.Excluded[i].Reason, is.Reason)
	}

	history, err := store.ListHistory(ctx, "run-flat")
	require.NoError(t, err)
	var warnings int
	for _, e := range history {
		if e.Level == dataset.LevelWarning {
			warnings++
		}
	}
	assert.Equal(t, len(res.Map.Excluded), warnings)
}

func TestRunStore_FailRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	res, cfg, runErr := analyze(t, "run-bad", func(c *synth.Config) { c.MissingBeams = []int{5} })
	require.Error(t, runErr)
	require.NoError(t, store.FailRun(ctx, res, cfg, runErr))

	run, err := store.GetRun(ctx, "run-bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "beam 5")
	assert.Equal(t, 0, run.SignalCount)
	assert.Equal(t, "sum", run.Combine)

	history, err := store.ListHistory(ctx, "run-bad")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "original", history[0].Stage)

	_, err = store.GetMap(ctx, "run-bad")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_ListRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	for _, c := range []struct{ id, radar string }{{"a", "bks"}, {"b", "fhe"}, {"c", "bks"}} {
		res, cfg, err := analyze(t, c.id, func(sc *synth.Config) { sc.Radar = c.radar })
		require.NoError(t, err)
		require.NoError(t, store.SaveRun(ctx, res, cfg))
	}

	runs, err := store.ListRuns(ctx, "bks")
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	assert.Equal(t, []string{"c", "a"}, ids)

	all, err := store.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListRuns(ctx, "kod")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunStore_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.DeleteRun(ctx, "missing"), ErrRunNotFound)
	assert.Error(t, store.SaveRun(ctx, nil, nil))
	assert.Error(t, store.SaveRun(ctx, &pipeline.Result{}, nil))

	res, cfg, err := analyze(t, "dup", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, res, cfg))
	assert.Error(t, store.SaveRun(ctx, res, cfg), "duplicate run ID must be rejected")

	signals, err := store.ListSignals(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, signals, len(res.Signals), "failed duplicate insert must not add rows")
}

func TestRunStore_DeleteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupStore(t)

	res, cfg, err := analyze(t, "gone", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, res, cfg))
	require.NoError(t, store.DeleteRun(ctx, "gone"))

	signals, err := store.ListSignals(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, signals)
	history, err := store.ListHistory(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = store.GetMap(ctx, "gone")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
