package boosting

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/core/model"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

func labelMatrix(y []float64) *mat.Dense {
	return mat.NewDense(len(y), 1, append([]float64(nil), y...))
}

func fitted(t *testing.T, params Params) (*Classifier, *mat.Dense, []float64) {
	t.Helper()
	X, y := separable(400)
	clf := NewClassifier(params)
	require.NoError(t, clf.Fit(X, labelMatrix(y)))
	return clf, X, y
}

func TestClassifier_FitPredict(t *testing.T) {
	params := DefaultParams()
	params.NEstimators = 30
	params.LearningRate = 0.2
	clf, X, y := fitted(t, params)

	pred, err := clf.PredictLabels(X)
	require.NoError(t, err)
	correct := 0
	for i, p := range pred {
		if float64(p) == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.95)
	assert.Equal(t, []int{0, 1}, clf.Classes())

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 400, r)
	assert.Equal(t, 1, c)
	for i := 0; i < r; i++ {
		assert.True(t, proba.At(i, 0) >= 0 && proba.At(i, 0) <= 1)
	}

	labels, err := clf.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, float64(pred[7]), labels.At(7, 0))
}

func TestClassifier_PredictOne(t *testing.T) {
	clf, _, _ := fitted(t, DefaultParams())

	got, err := clf.PredictOne([]float64{0.9, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = clf.PredictOne([]float64{0.1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = clf.PredictOne([]float64{0.1})
	var dimErr *lsErrors.DimensionError
	assert.True(t, lsErrors.As(err, &dimErr))
}

func TestClassifier_Deterministic(t *testing.T) {
	params := DefaultParams()
	params.Subsample = 0.8
	params.ColsampleBytree = 0.5
	params.RandomState = 42

	a, X, _ := fitted(t, params)
	b, _, _ := fitted(t, params)
	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestClassifier_NotFitted(t *testing.T) {
	clf := NewClassifier(DefaultParams())
	_, err := clf.PredictOne(make([]float64, 2))
	var nfErr *lsErrors.NotFittedError
	assert.True(t, lsErrors.As(err, &nfErr))

	_, err = clf.FeatureImportance(ImportanceGain)
	assert.True(t, lsErrors.As(err, &nfErr))
}

func TestClassifier_RejectsParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		param  string
	}{
		{"negative tree count", func(p *Params) { p.NEstimators = -1 }, "n_estimators"},
		{"zero depth", func(p *Params) { p.MaxDepth = 0 }, "max_depth"},
		{"learning rate", func(p *Params) { p.LearningRate = 0 }, "learning_rate"},
		{"subsample", func(p *Params) { p.Subsample = 1.5 }, "subsample"},
		{"colsample", func(p *Params) { p.ColsampleBytree = math.NaN() }, "colsample_bytree"},
		{"negative lambda", func(p *Params) { p.RegLambda = -1 }, "reg_lambda"},
	}
	X, y := separable(20)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			err := NewClassifier(params).Fit(X, labelMatrix(y))

			var fitErr *lsErrors.FitError
			require.True(t, lsErrors.As(err, &fitErr), "expected FitError, got %v", err)
			assert.Equal(t, tt.param, fitErr.Param)
			assert.Equal(t, EstimatorName, fitErr.Estimator)
		})
	}
}

func TestClassifier_RejectsData(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	var fitErr *lsErrors.FitError

	err := NewClassifier(DefaultParams()).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 2}))
	assert.True(t, lsErrors.As(err, &fitErr))

	err = NewClassifier(DefaultParams()).Fit(X, mat.NewDense(2, 1, []float64{0, 1}))
	assert.True(t, lsErrors.As(err, &fitErr))

	X.Set(0, 0, math.Inf(1))
	err = NewClassifier(DefaultParams()).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 0}))
	assert.True(t, lsErrors.As(err, &fitErr))
}

func TestClassifier_FeatureImportance(t *testing.T) {
	clf, _, _ := fitted(t, DefaultParams())

	gain, err := clf.FeatureImportance(ImportanceGain)
	require.NoError(t, err)
	require.Len(t, gain, 2)
	assert.InDelta(t, 1.0, gain[0]+gain[1], 1e-9)
	assert.Greater(t, gain[0], gain[1])

	_, err = clf.FeatureImportance("cover")
	var valueErr *lsErrors.ValueError
	assert.True(t, lsErrors.As(err, &valueErr))
}

func TestClassifier_GobRoundTrip(t *testing.T) {
	clf, X, _ := fitted(t, DefaultParams())

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(clf, &buf))

	var loaded Classifier
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}
