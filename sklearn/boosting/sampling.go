package boosting

import (
	"math/rand/v2"
	"sort"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// SamplingStrategy draws the rows and columns each tree is grown on.
type SamplingStrategy struct {
	rng             *rand.Rand
	subsample       float64
	colsampleBytree float64
}

// NewSamplingStrategy creates a sampler seeded from params.RandomState.
func NewSamplingStrategy(params Params) *SamplingStrategy {
	seed := uint64(params.RandomState)
	return &SamplingStrategy{
		rng:             rand.New(rand.NewPCG(seed, seed)),
		subsample:       params.Subsample,
		colsampleBytree: params.ColsampleBytree,
	}
}

// SampleFeatures returns the sorted column subset for the next tree.
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	return s.sample(numFeatures, s.colsampleBytree)
}

// SampleInstances returns the sorted row subset for the next tree.
func (s *SamplingStrategy) SampleInstances(numInstances int) []int {
	return s.sample(numInstances, s.subsample)
}

func (s *SamplingStrategy) sample(n int, fraction float64) []int {
	if fraction >= 1.0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}

	// partial Fisher-Yates
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := perm[:k]
	sort.Ints(out)
	return out
}

// RegularizationStrategy applies L1/L2 penalties to leaf weights and gains.
type RegularizationStrategy struct {
	lambdaL1 float64
	lambdaL2 float64
}

// NewRegularizationStrategy creates a strategy from params.
func NewRegularizationStrategy(params Params) *RegularizationStrategy {
	return &RegularizationStrategy{
		lambdaL1: params.RegAlpha,
		lambdaL2: params.RegLambda,
	}
}

// LeafValue returns the optimal weight -T(G) / (H + lambda), where T is the
// L1 soft threshold. A vanishing denominator yields 0.
func (r *RegularizationStrategy) LeafValue(sumGrad, sumHess float64) float64 {
	return lsErrors.SafeDivide(-r.threshold(sumGrad), sumHess+r.lambdaL2)
}

// SplitGain returns the loss reduction of splitting parent into left and right.
func (r *RegularizationStrategy) SplitGain(leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return 0.5 * (r.score(leftGrad, leftHess) + r.score(rightGrad, rightHess) - r.score(parentGrad, parentHess))
}

func (r *RegularizationStrategy) score(sumGrad, sumHess float64) float64 {
	g := r.threshold(sumGrad)
	return lsErrors.SafeDivide(g*g, sumHess+r.lambdaL2)
}

func (r *RegularizationStrategy) threshold(g float64) float64 {
	switch {
	case r.lambdaL1 <= 0:
		return g
	case g > r.lambdaL1:
		return g - r.lambdaL1
	case g < -r.lambdaL1:
		return g + r.lambdaL1
	default:
		return 0
	}
}
