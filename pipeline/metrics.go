package pipeline

import (
	"sort"
	"strings"

	"github.com/sjwhitworth/golearn/evaluation"

	"github.com/YuminosukeSato/leadscore/metrics"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// Metric names used for logging and as search objectives.
const (
	MetricAccuracy        = "accuracy"
	MetricF1Macro         = "f1_macro"
	MetricPrecisionClass1 = "precision_class_1"
	MetricRecallClass1    = "recall_class_1"
	MetricF1Class1        = "f1_class_1"
)

// Metrics is the evaluation record of one pipeline run on the held-out
// partition. All values are in [0, 1].
type Metrics struct {
	Accuracy        float64 `json:"accuracy" yaml:"accuracy"`
	F1Macro         float64 `json:"f1_macro" yaml:"f1_macro"`
	PrecisionClass1 float64 `json:"precision_class_1" yaml:"precision_class_1"`
	RecallClass1    float64 `json:"recall_class_1" yaml:"recall_class_1"`
	F1Class1        float64 `json:"f1_class_1" yaml:"f1_class_1"`
}

// MetricNames returns the accepted metric names in sorted order.
func MetricNames() []string {
	names := []string{MetricAccuracy, MetricF1Macro, MetricPrecisionClass1, MetricRecallClass1, MetricF1Class1}
	sort.Strings(names)
	return names
}

// Get resolves a metric by name.
func (m Metrics) Get(name string) (float64, error) {
	v, ok := m.Map()[name]
	if !ok {
		return 0, lsErrors.NewConfigError("objective", "unknown metric (accepted: "+strings.Join(MetricNames(), ", ")+")", name)
	}
	return v, nil
}

// ValidateMetricName reports whether name is a known metric.
func ValidateMetricName(name string) error {
	_, err := Metrics{}.Get(name)
	return err
}

// Map returns the record as a name -> value mapping.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		MetricAccuracy:        m.Accuracy,
		MetricF1Macro:         m.F1Macro,
		MetricPrecisionClass1: m.PrecisionClass1,
		MetricRecallClass1:    m.RecallClass1,
		MetricF1Class1:        m.F1Class1,
	}
}

func metricsFromConfusion(cm evaluation.ConfusionMatrix) Metrics {
	return Metrics{
		Accuracy:        metrics.Accuracy(cm),
		F1Macro:         metrics.F1Macro(cm),
		PrecisionClass1: metrics.Precision(cm, 1),
		RecallClass1:    metrics.Recall(cm, 1),
		F1Class1:        metrics.F1(cm, 1),
	}
}
