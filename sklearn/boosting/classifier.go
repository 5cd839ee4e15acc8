// Package boosting implements a gradient boosted decision tree classifier
// for binary targets.
package boosting

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/core/model"
	"github.com/YuminosukeSato/leadscore/core/parallel"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

// Below this many rows prediction runs on the calling goroutine.
const parallelPredictRows = 1000

// Classifier is a binary gradient boosted trees classifier.
type Classifier struct {
	Params Params
	Model  *Model
	State  *model.StateManager

	ClassLabels []int
}

var _ model.Classifier = (*Classifier)(nil)

// NewClassifier creates a classifier with params.
func NewClassifier(params Params) *Classifier {
	return &Classifier{
		Params: params,
		State:  model.NewStateManager(),
	}
}

// Fit trains the classifier. y is an n×1 matrix of 0/1 labels. Rejected
// hyperparameters and failures inside training are returned as FitError.
func (c *Classifier) Fit(X, y mat.Matrix) (err error) {
	defer lsErrors.RecoverFit(&err, EstimatorName)

	if err := c.Params.Validate(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return lsErrors.WrapFitError(EstimatorName, lsErrors.ErrEmptyData)
	}
	if yRows != rows || yCols != 1 {
		return lsErrors.WrapFitError(EstimatorName, lsErrors.NewDimensionError("GBDTClassifier.Fit", rows, yRows, 0))
	}

	targets := make([]float64, rows)
	seen := map[int]bool{}
	for i := range targets {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return lsErrors.NewFitError(EstimatorName, "y", "labels must be 0 or 1")
		}
		targets[i] = v
		seen[int(v)] = true
	}

	// NaN is routed right as a missing value; infinities are rejected.
	xDense := mat.DenseCopyOf(X)
	if hasInf(xDense.RawMatrix().Data) {
		return lsErrors.NewFitError(EstimatorName, "X", "features must not be infinite")
	}

	logger := log.GetLoggerWithName("boosting").With(
		log.ModelNameKey, EstimatorName,
		log.OperationKey, log.OperationFit,
	)
	logger.Debug("Fitting started", log.SamplesKey, rows, log.FeaturesKey, cols)

	trainer := NewTrainer(c.Params)
	if err := trainer.Fit(xDense, targets); err != nil {
		return lsErrors.WrapFitError(EstimatorName, err)
	}

	c.Model = trainer.GetModel()
	c.ClassLabels = c.ClassLabels[:0]
	for _, label := range []int{0, 1} {
		if seen[label] {
			c.ClassLabels = append(c.ClassLabels, label)
		}
	}
	c.State.SetFitted(cols, rows)

	logger.Debug("Fitting finished", "trees", c.Model.NumTrees())
	return nil
}

func hasInf(values []float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// PredictProba returns the positive-class probabilities as an n×1 matrix.
func (c *Classifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.predictProba(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(proba), 1, proba), nil
}

// Predict returns labels thresholded at probability 0.5 as an n×1 matrix.
func (c *Classifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.predictProba(X, "Predict")
	if err != nil {
		return nil, err
	}
	for i, p := range proba {
		proba[i] = float64(label(p))
	}
	return mat.NewDense(len(proba), 1, proba), nil
}

// PredictLabels is Predict returning a plain slice.
func (c *Classifier) PredictLabels(X mat.Matrix) ([]int, error) {
	proba, err := c.predictProba(X, "Predict")
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, p := range proba {
		labels[i] = label(p)
	}
	return labels, nil
}

// PredictOne returns the label of a single feature vector.
func (c *Classifier) PredictOne(features []float64) (int, error) {
	if err := c.State.RequireFitted(EstimatorName, "PredictOne"); err != nil {
		return 0, err
	}
	if err := c.State.RequireFeatures("GBDTClassifier.PredictOne", len(features)); err != nil {
		return 0, err
	}
	return label(c.Model.PredictProba(features)), nil
}

// Classes returns the labels observed during Fit.
func (c *Classifier) Classes() []int {
	return append([]int(nil), c.ClassLabels...)
}

func (c *Classifier) predictProba(X mat.Matrix, method string) ([]float64, error) {
	if err := c.State.RequireFitted(EstimatorName, method); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := c.State.RequireFeatures("GBDTClassifier."+method, cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, parallelPredictRows, 0, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = c.Model.PredictProba(row)
		}
	})
	return out, nil
}

func label(p float64) int {
	if p >= 0.5 {
		return 1
	}
	return 0
}

// ImportanceType selects how FeatureImportance aggregates splits.
type ImportanceType string

const (
	// ImportanceGain sums the split gain per feature.
	ImportanceGain ImportanceType = "gain"
	// ImportanceSplit counts splits per feature.
	ImportanceSplit ImportanceType = "split"
)

// FeatureImportance returns per-feature importance normalised to sum to 1.
func (c *Classifier) FeatureImportance(kind ImportanceType) ([]float64, error) {
	if err := c.State.RequireFitted(EstimatorName, "FeatureImportance"); err != nil {
		return nil, err
	}
	var raw []float64
	switch kind {
	case ImportanceGain:
		raw = c.Model.GainImportance
	case ImportanceSplit:
		raw = c.Model.SplitImportance
	default:
		return nil, lsErrors.NewValueError("FeatureImportance", "importance type must be gain or split")
	}

	out := append([]float64(nil), raw...)
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out, nil
}
