// Package tuning searches the hyperparameter space of the sales classifier by
// repeatedly running the training pipeline and maximising one metric.
package tuning

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/tracking"
)

const (
	// DefaultStudyName names the parent tracking run.
	DefaultStudyName = "Sales Tuning"
	// ObjectiveScoreMetric is logged on every trial run next to the five metrics.
	ObjectiveScoreMetric = "tuning_objective_score"

	trialDescription = "Hyperparameter tuning trial"
)

// TrialState is the outcome of a trial.
type TrialState string

const (
	TrialComplete TrialState = "COMPLETE"
	TrialFailed   TrialState = "FAIL"
)

// Options configures Search. Zero values select the defaults noted per field.
type Options struct {
	// Trials is the number of attempts; required.
	Trials int
	// Objective is the metric to maximise; defaults to f1_class_1.
	Objective string
	// Parallelism bounds concurrently running trials; defaults to 1.
	Parallelism int
	// Sampler defaults to a RandomSampler seeded with the base random seed.
	Sampler Sampler
	// Space defaults to DefaultSpace.
	Space Space
	// Train defaults to pipeline.Train.
	Train pipeline.TrainFunc
	// Tracker defaults to tracking.NopTracker.
	Tracker tracking.Tracker
	// Progress receives a progress bar when set.
	Progress io.Writer
	// StudyName defaults to DefaultStudyName.
	StudyName string
}

// Trial is the record of one attempt.
type Trial struct {
	Number      int                `yaml:"number"`
	State       TrialState         `yaml:"state"`
	Params      Point              `yaml:"params"`
	Hyperparams config.Hyperparams `yaml:"hyperparams"`
	Metrics     pipeline.Metrics   `yaml:"metrics"`
	Score       float64            `yaml:"score"`
	Duration    time.Duration      `yaml:"duration"`
	RunID       string             `yaml:"run_id,omitempty"`
	Err         error              `yaml:"-"`
	Error       string             `yaml:"error,omitempty"`
}

// Summary describes the distribution of successful scores.
type Summary struct {
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	Median float64 `yaml:"median"`
	StdDev float64 `yaml:"stddev"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// Result is the outcome of Search.
type Result struct {
	Objective string  `yaml:"objective"`
	Trials    []Trial `yaml:"trials"`
	// Best is nil when no trial succeeded.
	Best *Trial `yaml:"best,omitempty"`
	// BestConfig is the base configuration with the best hyperparameters
	// applied, or the base configuration when Best is nil.
	BestConfig config.Config `yaml:"best_config"`
	BestScore  float64       `yaml:"best_score"`
	Summary    Summary       `yaml:"summary"`
	// Attempts counts started trials.
	Attempts int64 `yaml:"attempts"`
}

// accumulator is the single point where concurrent trials publish results.
type accumulator struct {
	mu      sync.Mutex
	sampler Sampler
	space   Space
	trials  []Trial
	history []Observation
	best    *Trial
}

func (a *accumulator) next() Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sampler.Sample(a.space, a.history)
}

func (a *accumulator) record(t Trial) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trials = append(a.trials, t)
	if t.State != TrialComplete {
		return
	}
	a.history = append(a.history, Observation{Point: t.Params, Score: t.Score})
	if a.best == nil || t.Score > a.best.Score || (t.Score == a.best.Score && t.Number < a.best.Number) {
		best := t
		a.best = &best
	}
}

type search struct {
	ds       *dataset.Dataset
	base     config.Config
	opts     Options
	acc      *accumulator
	parent   tracking.Run
	bar      *progressbar.ProgressBar
	attempts *atomic.Int64
	logger   log.Logger
}

// Search runs opts.Trials training pipelines with sampled hyperparameters and
// keeps the configuration maximising the objective. Every trial trains with
// SMOTE enabled, whatever the base configuration says. Failed trials are
// recorded and excluded from the best selection; they never abort the search.
// When ctx is cancelled no further trials are started and the partial result
// is returned with the context error.
func Search(ctx context.Context, ds *dataset.Dataset, base config.Config, opts Options) (*Result, error) {
	opts, err := withDefaults(opts, base)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, lsErrors.NewValueError("tuning.Search", "dataset is nil")
	}

	logger := log.GetLoggerWithName("tuning").With(
		log.PhaseKey, log.PhaseTuning,
		log.OperationKey, log.OperationSearch,
		log.ObjectiveKey, opts.Objective,
	)
	if !base.Training.SMOTE {
		logger.Warn("SMOTE is disabled in the base configuration; every trial enables it")
	}

	s := &search{
		ds:       ds,
		base:     base,
		opts:     opts,
		acc:      &accumulator{sampler: opts.Sampler, space: opts.Space},
		attempts: atomic.NewInt64(0),
		logger:   logger,
	}
	s.parent = s.startParent(ctx)
	if opts.Progress != nil {
		s.bar = progressbar.NewOptions(opts.Trials,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Tuning"),
			progressbar.OptionShowCount(),
		)
	}

	logger.Info("Search started", "trials", opts.Trials, "parallelism", opts.Parallelism, "sampler", fmt.Sprintf("%T", opts.Sampler))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(opts.Parallelism)
	for i := 0; i < opts.Trials; i++ {
		if ctx.Err() != nil {
			break
		}
		number := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.acc.record(s.runTrial(ctx, number))
			return nil
		})
	}
	_ = g.Wait()
	if s.bar != nil {
		_ = s.bar.Finish()
	}

	res := s.result()
	s.finishParent(ctx, res)

	if res.Best == nil {
		logger.Warn("No trial succeeded", "attempts", res.Attempts)
	} else {
		logger.Info("Search finished",
			log.TrialKey, res.Best.Number,
			log.ScoreKey, res.BestScore,
			log.HyperParamsKey, res.Best.Params,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	if err := ctx.Err(); err != nil {
		return res, lsErrors.Wrap(err, "search interrupted")
	}
	return res, nil
}

func withDefaults(opts Options, base config.Config) (Options, error) {
	if opts.Trials <= 0 {
		return opts, lsErrors.NewConfigError("tuning.trials", "must be positive", opts.Trials)
	}
	if opts.Objective == "" {
		opts.Objective = pipeline.MetricF1Class1
	}
	if err := pipeline.ValidateMetricName(opts.Objective); err != nil {
		return opts, err
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Space == nil {
		opts.Space = DefaultSpace()
	}
	if err := opts.Space.Validate(); err != nil {
		return opts, err
	}
	if opts.Sampler == nil {
		opts.Sampler = NewRandomSampler(base.Training.RandomSeed)
	}
	if opts.Train == nil {
		opts.Train = pipeline.Train
	}
	if opts.Tracker == nil {
		opts.Tracker = tracking.NopTracker{}
	}
	if opts.StudyName == "" {
		opts.StudyName = DefaultStudyName
	}
	return opts, nil
}

// TrialConfig returns a copy of base with pt applied to the hyperparameters and
// SMOTE enabled. base is never modified.
func TrialConfig(base config.Config, space Space, pt Point) (config.Config, error) {
	hp, err := space.Apply(base.Training.Model.Params, pt)
	if err != nil {
		return base, err
	}
	cfg := base
	cfg.Training = cfg.Training.WithParams(hp)
	cfg.Training.SMOTE = true
	return cfg, nil
}

func (s *search) runTrial(ctx context.Context, number int) (trial Trial) {
	s.attempts.Inc()
	trial = Trial{Number: number, State: TrialFailed}
	logger := s.logger.With(log.TrialKey, number)
	start := time.Now()

	defer func() {
		trial.Duration = time.Since(start)
		if trial.Err != nil {
			trial.Error = trial.Err.Error()
			logger.Warn("Trial failed", trial.Err, log.DurationMsKey, trial.Duration.Milliseconds())
		} else {
			logger.Info("Trial finished",
				log.ScoreKey, trial.Score,
				log.HyperParamsKey, trial.Params,
				log.DurationMsKey, trial.Duration.Milliseconds(),
			)
		}
		s.trackTrial(ctx, &trial)
		if s.bar != nil {
			_ = s.bar.Add(1)
		}
	}()

	trial.Params = s.acc.next()
	cfg, err := TrialConfig(s.base, s.opts.Space, trial.Params)
	if err != nil {
		trial.Err = err
		return trial
	}
	trial.Hyperparams = cfg.Training.Model.Params

	m, err := s.train(cfg.Training)
	if err != nil {
		trial.Err = err
		return trial
	}
	score, err := m.Get(s.opts.Objective)
	if err != nil {
		trial.Err = err
		return trial
	}
	if math.IsNaN(score) {
		trial.Err = lsErrors.NewValueError("tuning.Search", "objective is NaN")
		return trial
	}

	trial.Metrics = m
	trial.Score = score
	trial.State = TrialComplete
	return trial
}

// train isolates panics of the train function to the trial.
func (s *search) train(cfg config.Training) (m pipeline.Metrics, err error) {
	err = lsErrors.SafeExecute("tuning.trial", func() error {
		var trainErr error
		_, m, trainErr = s.opts.Train(s.ds, cfg)
		return trainErr
	})
	return m, err
}

func (s *search) startParent(ctx context.Context) tracking.Run {
	run, err := s.opts.Tracker.StartRun(ctx, tracking.RunOptions{
		Name: s.opts.StudyName,
		Tags: map[string]string{"objective": s.opts.Objective},
	})
	if err != nil {
		s.logger.Warn("Tracking unavailable for the study", err)
		return nil
	}
	return run
}

func (s *search) trackTrial(ctx context.Context, trial *Trial) {
	if s.parent == nil {
		return
	}
	run, err := s.opts.Tracker.StartRun(ctx, tracking.RunOptions{
		Name:        "trial-" + strconv.Itoa(trial.Number),
		ParentRunID: s.parent.ID(),
		Tags:        map[string]string{tracking.TagDescription: trialDescription},
	})
	if err != nil {
		s.logger.Warn("Trial not tracked", err, log.TrialKey, trial.Number)
		return
	}
	trial.RunID = run.ID()

	params := trial.Hyperparams.Strings()
	params["trial_number"] = strconv.Itoa(trial.Number)
	params["smote"] = "true"
	params["random_seed"] = strconv.FormatInt(s.base.Training.RandomSeed, 10)

	status := tracking.StatusFailed
	var errs []error
	errs = append(errs, run.LogParams(ctx, params))
	if trial.State == TrialComplete {
		status = tracking.StatusFinished
		metrics := trial.Metrics.Map()
		metrics[ObjectiveScoreMetric] = trial.Score
		errs = append(errs, run.LogMetrics(ctx, metrics, int64(trial.Number)))
	} else if trial.Err != nil {
		errs = append(errs, run.SetTag(ctx, "error", trial.Err.Error()))
	}
	errs = append(errs, run.End(ctx, status))
	for _, err := range errs {
		if err != nil {
			s.logger.Warn("Trial tracking incomplete", err, log.TrialKey, trial.Number)
			return
		}
	}
}

func (s *search) finishParent(ctx context.Context, res *Result) {
	if s.parent == nil {
		return
	}
	var errs []error
	if res.Best != nil {
		errs = append(errs,
			s.parent.LogParams(ctx, res.Best.Hyperparams.Strings()),
			s.parent.LogMetrics(ctx, map[string]float64{"best_" + s.opts.Objective: res.BestScore}, 0),
			s.parent.SetTag(ctx, "best_trial", strconv.Itoa(res.Best.Number)),
		)
	}
	errs = append(errs, s.parent.End(ctx, tracking.StatusFinished))
	for _, err := range errs {
		if err != nil {
			s.logger.Warn("Study tracking incomplete", err)
			return
		}
	}
}

func (s *search) result() *Result {
	s.acc.mu.Lock()
	defer s.acc.mu.Unlock()

	trials := append([]Trial(nil), s.acc.trials...)
	sort.Slice(trials, func(i, j int) bool { return trials[i].Number < trials[j].Number })

	res := &Result{
		Objective:  s.opts.Objective,
		Trials:     trials,
		BestConfig: s.base,
		Attempts:   s.attempts.Load(),
	}
	if s.acc.best != nil {
		best := *s.acc.best
		res.Best = &best
		res.BestScore = best.Score
		// Params were applied once already, so this cannot fail.
		res.BestConfig, _ = TrialConfig(s.base, s.opts.Space, best.Params)
	}
	res.Summary = summarize(trials)
	return res
}

func summarize(trials []Trial) Summary {
	var scores stats.Float64Data
	for _, t := range trials {
		if t.State == TrialComplete {
			scores = append(scores, t.Score)
		}
	}
	if len(scores) == 0 {
		return Summary{}
	}
	// stats only fails on empty input.
	sum := Summary{Count: len(scores)}
	sum.Mean, _ = stats.Mean(scores)
	sum.Median, _ = stats.Median(scores)
	sum.Min, _ = stats.Min(scores)
	sum.Max, _ = stats.Max(scores)
	sum.StdDev, _ = stats.StandardDeviation(scores)
	return sum
}
