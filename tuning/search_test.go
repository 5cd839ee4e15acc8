package tuning

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/tracking"
)

func smallDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	opts := dataset.DefaultClassificationOptions()
	opts.Samples = 300
	opts.Weights = []float64{0.8, 0.2}
	ds, err := dataset.MakeClassification(opts)
	require.NoError(t, err)
	return ds
}

// recordingTrain scores a trial by its learning rate and remembers every
// configuration it was called with.
type recordingTrain struct {
	mu      sync.Mutex
	configs []config.Training
}

func (r *recordingTrain) train(_ *dataset.Dataset, cfg config.Training) (*pipeline.TrainedModel, pipeline.Metrics, error) {
	r.mu.Lock()
	r.configs = append(r.configs, cfg)
	r.mu.Unlock()
	lr := cfg.Model.Params.LearningRate
	return nil, pipeline.Metrics{Accuracy: 0.9, F1Class1: lr, F1Macro: lr / 2}, nil
}

func failingTrain(*dataset.Dataset, config.Training) (*pipeline.TrainedModel, pipeline.Metrics, error) {
	return nil, pipeline.Metrics{}, lsErrors.NewFitError("GBDTClassifier", "n_estimators", "must be positive")
}

func TestSearch_AlwaysFailing(t *testing.T) {
	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{
		Trials:      7,
		Parallelism: 3,
		Train:       failingTrain,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Best)
	assert.Equal(t, int64(7), res.Attempts)
	require.Len(t, res.Trials, 7)
	for i, trial := range res.Trials {
		assert.Equal(t, i, trial.Number)
		assert.Equal(t, TrialFailed, trial.State)
		var fitErr *lsErrors.FitError
		assert.True(t, lsErrors.As(trial.Err, &fitErr))
		assert.NotEmpty(t, trial.Error)
	}
	assert.Equal(t, 0, res.Summary.Count)
	assert.Equal(t, config.Default(), res.BestConfig)
}

func TestSearch_SelectsBest(t *testing.T) {
	rec := &recordingTrain{}
	base := config.Default()
	base.Training.SMOTE = false
	before := base

	res, err := Search(context.Background(), smallDataset(t), base, Options{
		Trials:      20,
		Parallelism: 4,
		Train:       rec.train,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Best)

	best := 0.0
	for _, trial := range res.Trials {
		require.Equal(t, TrialComplete, trial.State)
		best = max(best, trial.Params["learning_rate"])
	}
	assert.Equal(t, best, res.BestScore)
	assert.Equal(t, best, res.Best.Score)
	assert.Equal(t, best, res.BestConfig.Training.Model.Params.LearningRate)
	assert.True(t, res.BestConfig.Training.SMOTE)
	assert.Equal(t, 20, res.Summary.Count)
	assert.LessOrEqual(t, res.Summary.Min, res.Summary.Mean)
	assert.Equal(t, best, res.Summary.Max)

	require.Len(t, rec.configs, 20)
	for _, cfg := range rec.configs {
		assert.True(t, cfg.SMOTE, "every trial runs with SMOTE")
		assert.Equal(t, base.Training.TestSize, cfg.TestSize)
	}
	assert.Equal(t, before, base, "base config must not change")
}

func TestSearch_TieKeepsLowerTrial(t *testing.T) {
	constant := func(*dataset.Dataset, config.Training) (*pipeline.TrainedModel, pipeline.Metrics, error) {
		return nil, pipeline.Metrics{F1Class1: 0.5}, nil
	}
	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{
		Trials: 6, Parallelism: 3, Train: constant,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Best)
	assert.Equal(t, 0, res.Best.Number)
}

func TestSearch_PanicIsolatedToTrial(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	train := func(*dataset.Dataset, config.Training) (*pipeline.TrainedModel, pipeline.Metrics, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		return nil, pipeline.Metrics{F1Class1: 0.3}, nil
	}
	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{Trials: 3, Train: train})
	require.NoError(t, err)

	var panicErr *lsErrors.PanicError
	require.True(t, lsErrors.As(res.Trials[0].Err, &panicErr))
	require.NotNil(t, res.Best)
	assert.Equal(t, 1, res.Best.Number)
}

func TestSearch_InvalidOptions(t *testing.T) {
	ds := smallDataset(t)
	tests := []struct {
		name string
		opts Options
		key  string
	}{
		{"no trials", Options{Trials: 0}, "tuning.trials"},
		{"unknown objective", Options{Trials: 1, Objective: "roc_auc"}, "objective"},
		{"bad space", Options{Trials: 1, Space: Space{{Name: "num_leaves", Low: 1, High: 2}}}, "tuning.space.num_leaves"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Search(context.Background(), ds, config.Default(), tt.opts)
			var cfgErr *lsErrors.ConfigError
			require.True(t, lsErrors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recordingTrain{}

	res, err := Search(ctx, smallDataset(t), config.Default(), Options{Trials: 5, Train: rec.train})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Empty(t, res.Trials)
	assert.Empty(t, rec.configs)
}

func TestSearch_WarnsWhenSMOTEForced(t *testing.T) {
	logger, restore := log.UseTestProvider(log.LevelInfo)
	defer restore()

	base := config.Default()
	base.Training.SMOTE = false
	rec := &recordingTrain{}
	_, err := Search(context.Background(), smallDataset(t), base, Options{Trials: 2, Train: rec.train})
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	warnings := 0
	for _, e := range entries {
		if e["level"] == log.LevelWarn.String() && strings.Contains(e["message"].(string), "SMOTE") {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
	assert.True(t, logger.ContainsField(log.TrialKey, 1.0))
}

type fakeRun struct {
	id      string
	parent  string
	params  map[string]string
	metrics map[string]float64
	tags    map[string]string
	status  tracking.Status
}

func (r *fakeRun) ID() string { return r.id }

func (r *fakeRun) LogParams(_ context.Context, p map[string]string) error {
	for k, v := range p {
		r.params[k] = v
	}
	return nil
}

func (r *fakeRun) LogMetrics(_ context.Context, m map[string]float64, _ int64) error {
	for k, v := range m {
		r.metrics[k] = v
	}
	return nil
}

func (r *fakeRun) SetTag(_ context.Context, k, v string) error {
	r.tags[k] = v
	return nil
}

func (r *fakeRun) End(_ context.Context, s tracking.Status) error {
	r.status = s
	return nil
}

type fakeTracker struct {
	mu   sync.Mutex
	runs []*fakeRun
	fail bool
}

func (f *fakeTracker) StartRun(_ context.Context, opts tracking.RunOptions) (tracking.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("tracking server unreachable")
	}
	tags := map[string]string{}
	for k, v := range opts.Tags {
		tags[k] = v
	}
	r := &fakeRun{
		id:      opts.Name,
		parent:  opts.ParentRunID,
		params:  map[string]string{},
		metrics: map[string]float64{},
		tags:    tags,
	}
	f.runs = append(f.runs, r)
	return r, nil
}

func TestSearch_TracksTrials(t *testing.T) {
	tracker := &fakeTracker{}
	calls := 0
	train := func(ds *dataset.Dataset, cfg config.Training) (*pipeline.TrainedModel, pipeline.Metrics, error) {
		calls++
		if calls == 2 {
			return failingTrain(ds, cfg)
		}
		return (&recordingTrain{}).train(ds, cfg)
	}

	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{
		Trials: 4, Train: train, Tracker: tracker,
	})
	require.NoError(t, err)
	require.Len(t, tracker.runs, 5)

	parent := tracker.runs[0]
	assert.Equal(t, DefaultStudyName, parent.id)
	assert.Equal(t, tracking.StatusFinished, parent.status)
	assert.Equal(t, res.BestScore, parent.metrics["best_f1_class_1"])
	assert.NotEmpty(t, parent.params["learning_rate"])

	for _, child := range tracker.runs[1:] {
		assert.Equal(t, DefaultStudyName, child.parent)
		assert.Equal(t, "Hyperparameter tuning trial", child.tags[tracking.TagDescription])
		assert.Equal(t, "true", child.params["smote"])
		assert.NotEmpty(t, child.params["trial_number"])
	}
	failed := tracker.runs[2]
	assert.Equal(t, tracking.StatusFailed, failed.status)
	assert.NotEmpty(t, failed.tags["error"])
	ok := tracker.runs[3]
	assert.Equal(t, tracking.StatusFinished, ok.status)
	assert.Contains(t, ok.metrics, ObjectiveScoreMetric)
	assert.Len(t, ok.metrics, 6)
}

func TestSearch_TrackingFailureIsNotFatal(t *testing.T) {
	rec := &recordingTrain{}
	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{
		Trials: 3, Train: rec.train, Tracker: &fakeTracker{fail: true},
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Best)
}

func TestSearch_RealPipeline(t *testing.T) {
	space := Space{
		{Name: "n_estimators", Low: 10, High: 20, Step: 5, Int: true},
		{Name: "max_depth", Low: 2, High: 3, Int: true},
		{Name: "learning_rate", Low: 0.05, High: 0.3, Log: true},
	}
	var progress bytes.Buffer
	res, err := Search(context.Background(), smallDataset(t), config.Default(), Options{
		Trials:      3,
		Parallelism: 2,
		Space:       space,
		Sampler:     NewTPESampler(42),
		Progress:    &progress,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Best)
	assert.GreaterOrEqual(t, res.BestScore, 0.0)
	assert.LessOrEqual(t, res.BestScore, 1.0)
	assert.NotEmpty(t, progress.String())

	dir := t.TempDir()
	require.NoError(t, SaveResult(res, filepath.Join(dir, "search.yaml")))
	data, err := os.ReadFile(filepath.Join(dir, "search.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "best_score")
	assert.Contains(t, string(data), "f1_class_1")

	png := filepath.Join(dir, "plots", "history.png")
	require.NoError(t, PlotHistory(res, png))
	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestHistory_BestSoFar(t *testing.T) {
	res := &Result{Trials: []Trial{
		{Number: 0, State: TrialComplete, Score: 0.2},
		{Number: 1, State: TrialFailed},
		{Number: 2, State: TrialComplete, Score: 0.5},
		{Number: 3, State: TrialComplete, Score: 0.4},
	}}
	numbers, scores, best := History(res)
	assert.Equal(t, []float64{0, 2, 3}, numbers)
	assert.Equal(t, []float64{0.2, 0.5, 0.4}, scores)
	assert.Equal(t, []float64{0.2, 0.5, 0.5}, best)

	err := PlotHistory(&Result{}, filepath.Join(t.TempDir(), "empty.png"))
	var valErr *lsErrors.ValueError
	assert.True(t, lsErrors.As(err, &valErr))
}
