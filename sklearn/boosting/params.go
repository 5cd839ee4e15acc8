package boosting

import (
	"fmt"
	"math"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// EstimatorName identifies the classifier in errors and logs.
const EstimatorName = "GBDTClassifier"

// Params contains the training hyperparameters. Names follow the XGBoost
// estimator surface used in configuration files.
type Params struct {
	// Boosting
	NEstimators  int     `json:"n_estimators"`
	LearningRate float64 `json:"learning_rate"`

	// Tree shape
	MaxDepth       int     `json:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight"` // minimum hessian sum per child
	Gamma          float64 `json:"gamma"`            // minimum gain to split

	// Regularization
	RegLambda float64 `json:"reg_lambda"` // L2 on leaf weights
	RegAlpha  float64 `json:"reg_alpha"`  // L1 on leaf weights

	// Sampling, drawn once per tree
	Subsample       float64 `json:"subsample"`
	ColsampleBytree float64 `json:"colsample_bytree"`

	// Histogram
	MaxBin int `json:"max_bin"`

	RandomState int64 `json:"random_state"`
}

// DefaultParams returns the default hyperparameters.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1.0,
		Gamma:           0,
		RegLambda:       1.0,
		RegAlpha:        0,
		Subsample:       1.0,
		ColsampleBytree: 1.0,
		MaxBin:          255,
	}
}

// Validate rejects values the training algorithm cannot work with.
func (p Params) Validate() error {
	reject := func(param string, value interface{}, rule string) error {
		return lsErrors.NewFitError(EstimatorName, param, fmt.Sprintf("got %v, %s", value, rule))
	}

	switch {
	case p.NEstimators < 1:
		return reject("n_estimators", p.NEstimators, "must be >= 1")
	case p.MaxDepth < 1:
		return reject("max_depth", p.MaxDepth, "must be >= 1")
	case !(p.LearningRate > 0) || p.LearningRate > 1 || math.IsInf(p.LearningRate, 0):
		return reject("learning_rate", p.LearningRate, "must be in (0, 1]")
	case !(p.Subsample > 0) || p.Subsample > 1:
		return reject("subsample", p.Subsample, "must be in (0, 1]")
	case !(p.ColsampleBytree > 0) || p.ColsampleBytree > 1:
		return reject("colsample_bytree", p.ColsampleBytree, "must be in (0, 1]")
	case p.MinChildWeight < 0 || math.IsNaN(p.MinChildWeight):
		return reject("min_child_weight", p.MinChildWeight, "must be >= 0")
	case p.Gamma < 0 || math.IsNaN(p.Gamma):
		return reject("gamma", p.Gamma, "must be >= 0")
	case p.RegLambda < 0 || math.IsNaN(p.RegLambda):
		return reject("reg_lambda", p.RegLambda, "must be >= 0")
	case p.RegAlpha < 0 || math.IsNaN(p.RegAlpha):
		return reject("reg_alpha", p.RegAlpha, "must be >= 0")
	case p.MaxBin < 2 || p.MaxBin > 256:
		return reject("max_bin", p.MaxBin, "must be in [2, 256]")
	}
	return nil
}
