package metrics

import (
	"math"
	"strings"
	"testing"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

func TestBinaryMetrics(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []int
		yPred     []int
		accuracy  float64
		precision float64
		recall    float64
		f1        float64
		f1Macro   float64
	}{
		{
			name:      "Perfect classification",
			yTrue:     []int{0, 0, 1, 1},
			yPred:     []int{0, 0, 1, 1},
			accuracy:  1,
			precision: 1,
			recall:    1,
			f1:        1,
			f1Macro:   1,
		},
		{
			name:      "Typical case",
			yTrue:     []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1},
			yPred:     []int{0, 0, 0, 0, 1, 1, 1, 1, 1, 0},
			accuracy:  0.7,
			precision: 0.6,
			recall:    0.75,
			f1:        2 * 0.6 * 0.75 / 1.35,
			// class 0: p=0.8, r=4/6
			f1Macro: (2*0.8*(4.0/6)/(0.8+4.0/6) + 2*0.6*0.75/1.35) / 2,
		},
		{
			name:      "Minority never predicted",
			yTrue:     []int{0, 0, 0, 1},
			yPred:     []int{0, 0, 0, 0},
			accuracy:  0.75,
			precision: 0,
			recall:    0,
			f1:        0,
			f1Macro:   (2 * 0.75 / 1.75) / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, err := ConfusionMatrix(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatalf("ConfusionMatrix() error = %v", err)
			}
			check := func(metric string, got, want float64) {
				if math.Abs(got-want) > 1e-9 {
					t.Errorf("%s = %v, want %v", metric, got, want)
				}
			}
			check("Accuracy", Accuracy(cm), tt.accuracy)
			check("Precision", Precision(cm, 1), tt.precision)
			check("Recall", Recall(cm, 1), tt.recall)
			check("F1", F1(cm, 1), tt.f1)
			check("F1Macro", F1Macro(cm), tt.f1Macro)
		})
	}
}

func TestUndefinedMetricWarning(t *testing.T) {
	var warnings []error
	lsErrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer lsErrors.SetWarningHandler(nil)

	cm, err := ConfusionMatrix([]int{0, 0, 1}, []int{0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := Precision(cm, 1); got != 0 {
		t.Errorf("Precision = %v, want 0", got)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	var umw *lsErrors.UndefinedMetricWarning
	if !lsErrors.As(warnings[0], &umw) {
		t.Errorf("expected UndefinedMetricWarning, got %T", warnings[0])
	}
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 1, 1, 0}, []int{1, 1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if cm["0"]["0"] != 1 || cm["0"]["1"] != 1 || cm["1"]["0"] != 1 || cm["1"]["1"] != 1 {
		t.Errorf("unexpected matrix %v", cm)
	}

	// classes seen only in predictions still get a row
	cm, err = ConfusionMatrix([]int{0, 0}, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cm["1"]; !ok {
		t.Error("missing row for class 1")
	}

	if _, err := ConfusionMatrix(nil, nil); err == nil {
		t.Error("expected error for empty labels")
	}
	if _, err := ConfusionMatrix([]int{0, 1}, []int{0}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestReport(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 0, 1, 1}, []int{0, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	report := Report(cm)
	if !strings.Contains(report, "Overall accuracy") {
		t.Errorf("report lacks accuracy line:\n%s", report)
	}
}
