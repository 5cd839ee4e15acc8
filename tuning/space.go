package tuning

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/leadscore/config"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// Point is one candidate: searched hyperparameter name -> value.
type Point map[string]float64

// Strings formats the point for experiment tracking.
func (p Point) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// Param is one dimension of the search space.
type Param struct {
	Name string
	Low  float64
	High float64
	// Step discretises the range; 0 means continuous (or 1 for Int).
	Step float64
	Int  bool
	// Log samples uniformly in log space.
	Log bool
}

// Space is an ordered set of dimensions.
type Space []Param

// DefaultSpace returns the search space of the sales classifier.
func DefaultSpace() Space {
	return Space{
		{Name: "n_estimators", Low: 100, High: 600, Step: 50, Int: true},
		{Name: "max_depth", Low: 3, High: 12, Int: true},
		{Name: "learning_rate", Low: 0.01, High: 0.3, Log: true},
		{Name: "subsample", Low: 0.6, High: 1.0},
		{Name: "colsample_bytree", Low: 0.6, High: 1.0},
	}
}

// Validate checks that every dimension is well formed and names a known
// hyperparameter.
func (s Space) Validate() error {
	if len(s) == 0 {
		return lsErrors.NewValueError("Space.Validate", "search space is empty")
	}
	known := map[string]bool{}
	for _, name := range config.Names() {
		known[name] = true
	}
	seen := map[string]bool{}
	for _, p := range s {
		switch {
		case !known[p.Name]:
			return lsErrors.NewConfigError("tuning.space."+p.Name, "unknown hyperparameter", p.Name)
		case seen[p.Name]:
			return lsErrors.NewConfigError("tuning.space."+p.Name, "dimension declared twice", p.Name)
		case !(p.Low < p.High):
			return lsErrors.NewConfigError("tuning.space."+p.Name, "low must be below high", p.Low)
		case p.Log && p.Low <= 0:
			return lsErrors.NewConfigError("tuning.space."+p.Name, "log scale requires a positive low bound", p.Low)
		case p.Step < 0:
			return lsErrors.NewConfigError("tuning.space."+p.Name, "step must not be negative", p.Step)
		}
		seen[p.Name] = true
	}
	return nil
}

// Names returns the dimension names in declaration order.
func (s Space) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Sample draws a point uniformly (log-uniformly for Log dimensions).
func (s Space) Sample(rng *rand.Rand) Point {
	pt := make(Point, len(s))
	for _, p := range s {
		pt[p.Name] = p.FromUnit(rng.Float64())
	}
	return pt
}

// Apply overwrites the searched fields of hp with the values of pt. Fields
// not in pt keep their value.
func (s Space) Apply(hp config.Hyperparams, pt Point) (config.Hyperparams, error) {
	names := make([]string, 0, len(pt))
	for name := range pt {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := pt[name]
		switch name {
		case "n_estimators":
			hp.NEstimators = int(math.Round(v))
		case "max_depth":
			hp.MaxDepth = int(math.Round(v))
		case "learning_rate":
			hp.LearningRate = v
		case "subsample":
			hp.Subsample = v
		case "colsample_bytree":
			hp.ColsampleBytree = v
		case "min_child_weight":
			hp.MinChildWeight = v
		case "gamma":
			hp.Gamma = v
		case "reg_lambda":
			hp.RegLambda = v
		case "reg_alpha":
			hp.RegAlpha = v
		default:
			return hp, lsErrors.NewConfigError("tuning.space."+name, "unknown hyperparameter", v)
		}
	}
	return hp, nil
}

// ToUnit maps v onto [0, 1], in log space for Log dimensions.
func (p Param) ToUnit(v float64) float64 {
	lo, hi := p.Low, p.High
	if p.Log {
		lo, hi, v = math.Log(lo), math.Log(hi), math.Log(v)
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

// FromUnit is the inverse of ToUnit, snapped to the grid of the dimension.
func (p Param) FromUnit(u float64) float64 {
	u = clamp(u, 0, 1)
	if step := p.step(); step > 0 {
		n := math.Floor((p.High-p.Low)/step + 1e-9)
		k := math.Min(math.Floor(u*(n+1)), n)
		return p.Low + k*step
	}
	if p.Log {
		lo, hi := math.Log(p.Low), math.Log(p.High)
		return clamp(math.Exp(lo+u*(hi-lo)), p.Low, p.High)
	}
	return p.Low + u*(p.High-p.Low)
}

func (p Param) step() float64 {
	if p.Step == 0 && p.Int {
		return 1
	}
	return p.Step
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
