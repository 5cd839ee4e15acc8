package boosting

import (
	"math"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// ObjectiveFunction defines the per-sample loss the trainer minimises.
// prediction is the raw (margin) score.
type ObjectiveFunction interface {
	CalculateGradient(prediction, target float64) float64
	CalculateHessian(prediction, target float64) float64
	CalculateLoss(prediction, target float64) float64
	GetInitScore(targets []float64) float64
	Name() string
}

const probEpsilon = 1e-15

// BinaryLogistic implements the binary cross-entropy on a sigmoid link.
type BinaryLogistic struct{}

var _ ObjectiveFunction = BinaryLogistic{}

func (BinaryLogistic) CalculateGradient(prediction, target float64) float64 {
	return Sigmoid(prediction) - target
}

func (BinaryLogistic) CalculateHessian(prediction, _ float64) float64 {
	p := Sigmoid(prediction)
	return math.Max(p*(1-p), 1e-16)
}

func (BinaryLogistic) CalculateLoss(prediction, target float64) float64 {
	p := clip(Sigmoid(prediction))
	return -(target*math.Log(p) + (1-target)*math.Log(1-p))
}

// GetInitScore returns the log-odds of the positive rate.
func (BinaryLogistic) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	p := clip(sum / float64(len(targets)))
	return math.Log(p / (1 - p))
}

func (BinaryLogistic) Name() string {
	return "binary:logistic"
}

// Sigmoid is the numerically stable logistic function.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clip(p float64) float64 {
	return lsErrors.ClipValue(p, probEpsilon, 1-probEpsilon)
}
