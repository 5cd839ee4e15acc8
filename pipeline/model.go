package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/core/model"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/sklearn/boosting"
)

// TrainedModel is a fitted classifier with the configuration it was trained
// with. It is not modified after training.
type TrainedModel struct {
	Classifier   *boosting.Classifier
	Hyperparams  config.Hyperparams
	RandomSeed   int64
	SMOTE        bool
	FeatureNames []string
}

// PredictOne returns the label (0 or 1) of a single feature vector.
func (m *TrainedModel) PredictOne(features []float64) (int, error) {
	return m.Classifier.PredictOne(features)
}

// PredictLabels returns one label per row of X.
func (m *TrainedModel) PredictLabels(X mat.Matrix) ([]int, error) {
	return m.Classifier.PredictLabels(X)
}

// NumFeatures returns the input width the model was trained on.
func (m *TrainedModel) NumFeatures() int {
	n, _ := m.Classifier.State.GetDimensions()
	return n
}

// Save persists the model with gob.
func (m *TrainedModel) Save(path string) error {
	return model.SaveModel(m, path)
}

// LoadModel reads a model written by TrainedModel.Save.
func LoadModel(path string) (*TrainedModel, error) {
	var m TrainedModel
	if err := model.LoadModel(&m, path); err != nil {
		return nil, err
	}
	if m.Classifier == nil || m.Classifier.State == nil || !m.Classifier.State.IsFitted() {
		return nil, lsErrors.NewNotFittedError(boosting.EstimatorName, "LoadModel")
	}
	return &m, nil
}
