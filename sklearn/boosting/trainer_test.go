package boosting

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// separable returns rows whose label is x0 >= 0.5, with a noise column.
func separable(n int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(42, 42))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.NormFloat64())
		if x0 >= 0.5 {
			y[i] = 1
		}
	}
	return X, y
}

func TestTrainer_LossDecreases(t *testing.T) {
	X, y := separable(200)
	params := DefaultParams()
	params.NEstimators = 20
	params.LearningRate = 0.1

	trainer := NewTrainer(params)
	initial := 0.0
	base := BinaryLogistic{}.GetInitScore(y)
	for _, v := range y {
		initial += BinaryLogistic{}.CalculateLoss(base, v)
	}
	initial /= float64(len(y))

	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	if got := len(trainer.trees); got != 20 {
		t.Fatalf("expected 20 trees, got %d", got)
	}
	if final := trainer.calculateLoss(); final >= initial {
		t.Errorf("loss did not decrease: initial %.4f, final %.4f", initial, final)
	}
}

func TestTrainer_SplitsOnInformativeFeature(t *testing.T) {
	X, y := separable(300)
	params := DefaultParams()
	params.NEstimators = 1
	params.MaxDepth = 1

	trainer := NewTrainer(params)
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Training failed: %v", err)
	}

	root := trainer.trees[0].Nodes[0]
	if root.IsLeaf() {
		t.Fatal("root should split")
	}
	if root.SplitFeature != 0 {
		t.Errorf("expected split on feature 0, got %d", root.SplitFeature)
	}
	if math.Abs(root.Threshold-0.5) > 0.05 {
		t.Errorf("threshold %.3f too far from 0.5", root.Threshold)
	}
}

func TestTrainer_MaxDepth(t *testing.T) {
	X, y := separable(200)
	for _, depth := range []int{1, 2, 4} {
		params := DefaultParams()
		params.NEstimators = 3
		params.MaxDepth = depth

		trainer := NewTrainer(params)
		if err := trainer.Fit(X, y); err != nil {
			t.Fatalf("Training failed: %v", err)
		}
		for _, tree := range trainer.trees {
			if tree.Depth > depth {
				t.Errorf("depth %d exceeds max_depth %d", tree.Depth, depth)
			}
			if tree.NumLeaves > 1<<depth {
				t.Errorf("%d leaves exceed 2^%d", tree.NumLeaves, depth)
			}
		}
	}
}

func TestTrainer_GammaPreventsSplits(t *testing.T) {
	X, y := separable(100)
	params := DefaultParams()
	params.NEstimators = 2
	params.Gamma = 1e6

	trainer := NewTrainer(params)
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	for _, tree := range trainer.trees {
		if tree.NumLeaves != 1 {
			t.Errorf("expected a single leaf, got %d", tree.NumLeaves)
		}
	}
}

func TestTrainer_CachedScoresMatchEnsemble(t *testing.T) {
	X, y := separable(120)
	params := DefaultParams()
	params.NEstimators = 5
	params.Subsample = 0.7
	params.ColsampleBytree = 0.5
	params.RandomState = 3

	trainer := NewTrainer(params)
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	model := trainer.GetModel()
	for i := 0; i < 120; i++ {
		want := model.PredictRaw(X.RawRowView(i))
		if math.Abs(trainer.scores[i]-want) > 1e-9 {
			t.Fatalf("row %d: cached %.6f, ensemble %.6f", i, trainer.scores[i], want)
		}
	}
}

func TestBinMapper(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{3, 1, 2, 2, 1, math.NaN()})
	m := NewBinMapper(X, 255)

	if got := m.NumBins(0); got != 3 {
		t.Fatalf("expected 3 bins, got %d", got)
	}
	cases := map[float64]uint8{1: 0, 1.4: 0, 2: 1, 3: 2, 100: 2, math.NaN(): 2}
	for v, want := range cases {
		if got := m.Bin(0, v); got != want {
			t.Errorf("Bin(%v) = %d, want %d", v, got, want)
		}
	}
}

func TestBinMapper_Quantiles(t *testing.T) {
	n := 1000
	X := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
	}
	m := NewBinMapper(X, 10)
	if got := m.NumBins(0); got != 10 {
		t.Fatalf("expected 10 bins, got %d", got)
	}
	counts := make([]int, 10)
	for _, b := range m.Transform(X)[0] {
		counts[b]++
	}
	for b, c := range counts {
		if c < 90 || c > 110 {
			t.Errorf("bin %d holds %d rows", b, c)
		}
	}
}

func TestRegularizationStrategy(t *testing.T) {
	r := NewRegularizationStrategy(Params{RegLambda: 1, RegAlpha: 0.5})
	if got := r.LeafValue(2, 3); math.Abs(got-(-1.5/4)) > 1e-9 {
		t.Errorf("LeafValue = %v", got)
	}
	if got := r.LeafValue(0.3, 3); got != 0 {
		t.Errorf("L1 should zero small gradients, got %v", got)
	}
	if gain := r.SplitGain(-2, 1, 2, 1, 0, 2); gain <= 0 {
		t.Errorf("opposite gradients should give positive gain, got %v", gain)
	}
}

// unstableObjective diverges after the first tree.
type unstableObjective struct{ BinaryLogistic }

func (unstableObjective) GetInitScore([]float64) float64 { return 0 }

func (unstableObjective) CalculateGradient(prediction, target float64) float64 {
	if prediction != 0 {
		return math.NaN()
	}
	return 0.5 - target
}

func TestTrainer_RejectsUnstableGradients(t *testing.T) {
	X, y := separable(50)
	params := DefaultParams()
	params.NEstimators = 5

	trainer := NewTrainer(params)
	trainer.objective = unstableObjective{}
	err := trainer.Fit(X, y)

	var numErr *lsErrors.NumericalInstabilityError
	if !lsErrors.As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 1 {
		t.Errorf("instability should be reported at iteration 1, got %d", numErr.Iteration)
	}
}

func TestRegularizationStrategy_ZeroDenominator(t *testing.T) {
	r := NewRegularizationStrategy(Params{})
	if got := r.LeafValue(1, 0); got != 0 {
		t.Errorf("LeafValue with no hessian = %v", got)
	}
	if gain := r.SplitGain(1, 0, -1, 0, 0, 0); gain != 0 {
		t.Errorf("SplitGain with no hessian = %v", gain)
	}
}

func TestSamplingStrategy(t *testing.T) {
	s := NewSamplingStrategy(Params{Subsample: 0.5, ColsampleBytree: 1.0, RandomState: 1})
	rows := s.SampleInstances(100)
	if len(rows) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i] <= rows[i-1] {
			t.Fatal("sampled rows must be sorted and unique")
		}
	}
	if cols := s.SampleFeatures(15); len(cols) != 15 {
		t.Errorf("expected all 15 features, got %d", len(cols))
	}

	again := NewSamplingStrategy(Params{Subsample: 0.5, ColsampleBytree: 1.0, RandomState: 1})
	if other := again.SampleInstances(100); other[0] != rows[0] || other[49] != rows[49] {
		t.Error("sampling is not reproducible for a fixed seed")
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v", got)
	}
	if got := Sigmoid(-1000); got != 0 || math.IsNaN(got) {
		t.Errorf("Sigmoid(-1000) = %v", got)
	}
	if got := Sigmoid(1000); got != 1 {
		t.Errorf("Sigmoid(1000) = %v", got)
	}
	if got := (BinaryLogistic{}).GetInitScore([]float64{1, 0, 0, 0}); math.Abs(got-math.Log(1.0/3)) > 1e-12 {
		t.Errorf("init score = %v", got)
	}
}
