package tuning

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Observation is a completed trial as seen by a sampler.
type Observation struct {
	Point Point
	Score float64
}

// Sampler proposes the next candidate. Implementations need not be safe for
// concurrent use; Search serializes calls.
type Sampler interface {
	Sample(space Space, history []Observation) Point
}

// RandomSampler draws every candidate independently.
type RandomSampler struct {
	rng *rand.Rand
}

// NewRandomSampler creates a seeded random sampler.
func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)))}
}

// Sample implements Sampler.
func (s *RandomSampler) Sample(space Space, _ []Observation) Point {
	return space.Sample(s.rng)
}

// TPESampler is a Tree-structured Parzen Estimator. After StartupTrials random
// draws it splits the history into a good and a bad group at the Gamma
// quantile of the score and returns, among Candidates random draws, the one
// maximising l(x)/g(x), where l and g are Gaussian kernel densities of the
// good and bad groups on the unit-scaled space.
type TPESampler struct {
	StartupTrials int
	Candidates    int
	Gamma         float64
	// MinBandwidth bounds the kernel width on the unit scale.
	MinBandwidth float64

	rng *rand.Rand
}

// NewTPESampler creates a TPE sampler with the usual defaults.
func NewTPESampler(seed int64) *TPESampler {
	return &TPESampler{
		StartupTrials: 10,
		Candidates:    24,
		Gamma:         0.25,
		MinBandwidth:  0.01,
		rng:           rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
}

// Sample implements Sampler.
func (s *TPESampler) Sample(space Space, history []Observation) Point {
	if len(history) < max(s.StartupTrials, 2) {
		return space.Sample(s.rng)
	}

	sorted := append([]Observation(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	nGood := int(math.Ceil(s.Gamma * float64(len(sorted))))
	nGood = max(1, min(nGood, len(sorted)-1))
	good, bad := sorted[:nGood], sorted[nGood:]

	best := space.Sample(s.rng)
	bestScore := s.ratio(space, best, good, bad)
	for i := 1; i < max(s.Candidates, 1); i++ {
		cand := space.Sample(s.rng)
		if score := s.ratio(space, cand, good, bad); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

// ratio returns log l(x) - log g(x).
func (s *TPESampler) ratio(space Space, x Point, good, bad []Observation) float64 {
	var total float64
	for _, p := range space {
		u := p.ToUnit(x[p.Name])
		total += s.logDensity(p, u, good) - s.logDensity(p, u, bad)
	}
	return total
}

// logDensity is the log of an equally weighted Gaussian mixture centred on the
// observations, with Scott's rule bandwidth.
func (s *TPESampler) logDensity(p Param, u float64, obs []Observation) float64 {
	centres := make([]float64, len(obs))
	for i, o := range obs {
		centres[i] = p.ToUnit(o.Point[p.Name])
	}
	sd := 0.25
	if len(centres) > 1 {
		if v := stat.StdDev(centres, nil); v > 0 {
			sd = v
		}
	}
	bw := math.Max(s.MinBandwidth, 1.06*sd*math.Pow(float64(len(centres)), -0.2))

	logs := make([]float64, len(centres))
	for i, c := range centres {
		logs[i] = distuv.Normal{Mu: c, Sigma: bw}.LogProb(u)
	}
	return floats.LogSumExp(logs) - math.Log(float64(len(centres)))
}
