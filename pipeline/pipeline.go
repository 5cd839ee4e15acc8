// Package pipeline trains and evaluates the lead classifier: a seeded
// train/test split, optional SMOTE oversampling of the training partition,
// gradient boosted trees, and evaluation on the untouched test partition.
package pipeline

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/metrics"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/sklearn/boosting"
	"github.com/YuminosukeSato/leadscore/sklearn/model_selection"
	"github.com/YuminosukeSato/leadscore/sklearn/resample"
)

// TrainFunc is the signature of Train, used by callers that wrap it.
type TrainFunc func(ds *dataset.Dataset, cfg config.Training) (*TrainedModel, Metrics, error)

var _ TrainFunc = Train

// Train splits ds, optionally oversamples the training partition, fits the
// classifier with cfg.Model.Params and evaluates it on the test partition.
// ds and cfg are not modified.
func Train(ds *dataset.Dataset, cfg config.Training) (*TrainedModel, Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Metrics{}, err
	}
	if ds == nil {
		return nil, Metrics{}, lsErrors.Wrap(lsErrors.ErrEmptyData, "pipeline.Train")
	}

	logger := log.GetLoggerWithName("pipeline").With(
		log.PhaseKey, log.PhaseTraining,
		log.RandomSeedKey, cfg.RandomSeed,
	)
	start := time.Now()

	split, err := model_selection.TrainTestSplit(ds.X(), ds.Labels(), cfg.TestSize, cfg.RandomSeed)
	if err != nil {
		return nil, Metrics{}, err
	}
	logger.Debug("Dataset split",
		log.OperationKey, log.OperationSplit,
		"train", len(split.YTrain), "test", len(split.YTest))

	xTrain, yTrain, err := maybeResample(split.XTrain, split.YTrain, cfg, logger)
	if err != nil {
		return nil, Metrics{}, err
	}

	clf, err := fit(xTrain, yTrain, cfg)
	if err != nil {
		logger.Error("Training failed", err)
		return nil, Metrics{}, err
	}

	preds, err := clf.PredictLabels(split.XTest)
	if err != nil {
		return nil, Metrics{}, err
	}
	cm, err := metrics.ConfusionMatrix(split.YTest, preds)
	if err != nil {
		return nil, Metrics{}, err
	}
	m := metricsFromConfusion(cm)

	if logger.Enabled(context.Background(), log.LevelDebug) {
		logger.Debug("Classification report\n" + metrics.Report(cm))
	}
	logger.Info("Training finished",
		log.OperationKey, log.OperationEvaluate,
		log.AccuracyKey, m.Accuracy,
		log.F1Class1Key, m.F1Class1,
		log.DurationMsKey, time.Since(start).Milliseconds())

	return newTrainedModel(clf, ds, cfg), m, nil
}

// FitFinal fits the classifier on every row of ds, oversampled with SMOTE
// when cfg enables it. No evaluation is performed.
func FitFinal(ds *dataset.Dataset, cfg config.Training) (*TrainedModel, error) {
	if ds == nil {
		return nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "pipeline.FitFinal")
	}
	logger := log.GetLoggerWithName("pipeline").With(
		log.PhaseKey, log.PhaseTraining,
		log.RandomSeedKey, cfg.RandomSeed,
	)

	X, y, err := maybeResample(ds.X(), ds.Labels(), cfg, logger)
	if err != nil {
		return nil, err
	}

	clf, err := fit(X, y, cfg)
	if err != nil {
		logger.Error("Final training failed", err)
		return nil, err
	}
	rows, _ := X.Dims()
	logger.Info("Final model trained", log.SamplesKey, rows)
	return newTrainedModel(clf, ds, cfg), nil
}

func maybeResample(X mat.Matrix, y []int, cfg config.Training, logger log.Logger) (mat.Matrix, []int, error) {
	if !cfg.SMOTE {
		return X, y, nil
	}
	Xr, yr, err := resample.NewSMOTE(cfg.RandomSeed).FitResample(X, y)
	if err != nil {
		return nil, nil, err
	}
	rows, _ := Xr.Dims()
	logger.Debug("Training partition resampled",
		log.OperationKey, log.OperationResample,
		log.SamplesKey, rows,
		log.ClassCountsKey, classCounts(yr))
	return Xr, yr, nil
}

func fit(X mat.Matrix, y []int, cfg config.Training) (*boosting.Classifier, error) {
	labels := make([]float64, len(y))
	for i, v := range y {
		labels[i] = float64(v)
	}
	clf := boosting.NewClassifier(BoostingParams(cfg.Model.Params, cfg.RandomSeed))
	if err := clf.Fit(X, mat.NewDense(len(labels), 1, labels)); err != nil {
		return nil, err
	}
	return clf, nil
}

// BoostingParams maps the configured hyperparameters onto the estimator.
func BoostingParams(hp config.Hyperparams, seed int64) boosting.Params {
	p := boosting.DefaultParams()
	p.NEstimators = hp.NEstimators
	p.MaxDepth = hp.MaxDepth
	p.LearningRate = hp.LearningRate
	p.Subsample = hp.Subsample
	p.ColsampleBytree = hp.ColsampleBytree
	p.MinChildWeight = hp.MinChildWeight
	p.Gamma = hp.Gamma
	p.RegLambda = hp.RegLambda
	p.RegAlpha = hp.RegAlpha
	p.RandomState = seed
	return p
}

func newTrainedModel(clf *boosting.Classifier, ds *dataset.Dataset, cfg config.Training) *TrainedModel {
	return &TrainedModel{
		Classifier:   clf,
		Hyperparams:  cfg.Model.Params,
		RandomSeed:   cfg.RandomSeed,
		SMOTE:        cfg.SMOTE,
		FeatureNames: ds.FeatureNames(),
	}
}

func classCounts(y []int) map[string]int {
	counts := map[string]int{}
	for _, v := range y {
		counts[metrics.ClassName(v)]++
	}
	return counts
}
