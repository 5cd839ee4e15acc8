package dataset

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// ClassificationOptions parameterizes MakeClassification.
type ClassificationOptions struct {
	Samples          int
	Features         int
	Informative      int
	Redundant        int
	ClustersPerClass int
	// Weights holds the proportion of class 0 and class 1 before label noise.
	Weights  []float64
	FlipY    float64
	ClassSep float64
	Shuffle  bool
	Seed     int64
}

// DefaultClassificationOptions returns the settings of the sample lead dataset:
// 2000 rows, 15 features, 95/5 imbalance.
func DefaultClassificationOptions() ClassificationOptions {
	return ClassificationOptions{
		Samples:          2000,
		Features:         NumFeatures,
		Informative:      5,
		Redundant:        2,
		ClustersPerClass: 2,
		Weights:          []float64{0.95, 0.05},
		FlipY:            0.01,
		ClassSep:         1.0,
		Shuffle:          true,
		Seed:             42,
	}
}

func (o ClassificationOptions) validate() error {
	const op = "MakeClassification"
	switch {
	case o.Samples < 2:
		return lsErrors.NewValueError(op, "at least two samples are required")
	case o.Informative < 1:
		return lsErrors.NewValueError(op, "at least one informative feature is required")
	case o.Redundant < 0:
		return lsErrors.NewValueError(op, "redundant feature count must not be negative")
	case o.Informative+o.Redundant > o.Features:
		return lsErrors.NewValueError(op, "informative plus redundant features exceed the feature count")
	case o.ClustersPerClass < 1:
		return lsErrors.NewValueError(op, "at least one cluster per class is required")
	case o.Informative < 31 && 2*o.ClustersPerClass > 1<<o.Informative:
		return lsErrors.NewValueError(op, "too many clusters for the number of informative features")
	case len(o.Weights) != 2:
		return lsErrors.NewValueError(op, "weights must hold one proportion per class")
	case !(o.Weights[0] >= 0 && o.Weights[1] >= 0):
		return lsErrors.NewValueError(op, "weights must not be negative")
	case o.Weights[0]+o.Weights[1] > 1+1e-9:
		return lsErrors.NewValueError(op, "weights must not sum to more than 1")
	case o.FlipY < 0 || o.FlipY > 1:
		return lsErrors.NewValueError(op, "flip_y must be in [0, 1]")
	}
	return nil
}

// MakeClassification generates a random binary classification problem.
//
// Each class is made of ClustersPerClass normally distributed clusters placed
// on distinct vertices of a hypercube with side 2*ClassSep in the informative
// subspace. Redundant features are random linear combinations of the
// informative ones, the remaining features are pure noise, and a FlipY share
// of labels is reassigned at random.
func MakeClassification(opts ClassificationOptions) (*Dataset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	seed := uint64(opts.Seed)
	rng := rand.New(rand.NewPCG(seed, seed))

	nInf := opts.Informative
	nClusters := 2 * opts.ClustersPerClass

	// rows per cluster, remainder handed out round-robin
	perCluster := make([]int, nClusters)
	total := 0
	for k := range perCluster {
		perCluster[k] = int(float64(opts.Samples) * opts.Weights[k%2] / float64(opts.ClustersPerClass))
		total += perCluster[k]
	}
	for k := 0; total < opts.Samples; k = (k + 1) % nClusters {
		perCluster[k]++
		total++
	}

	centroids := hypercubeVertices(rng, nClusters, nInf, opts.ClassSep)

	x := mat.NewDense(opts.Samples, opts.Features, nil)
	y := make([]int, opts.Samples)

	start := 0
	for k := 0; k < nClusters; k++ {
		n := perCluster[k]
		if n == 0 {
			continue
		}
		cluster := mat.NewDense(n, nInf, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < nInf; j++ {
				cluster.Set(i, j, rng.NormFloat64())
			}
		}
		cov := mat.NewDense(nInf, nInf, nil)
		for i := 0; i < nInf; i++ {
			for j := 0; j < nInf; j++ {
				cov.Set(i, j, 2*rng.Float64()-1)
			}
		}
		var shaped mat.Dense
		shaped.Mul(cluster, cov)
		for i := 0; i < n; i++ {
			for j := 0; j < nInf; j++ {
				x.Set(start+i, j, shaped.At(i, j)+centroids[k][j])
			}
			y[start+i] = k % 2
		}
		start += n
	}

	if opts.Redundant > 0 {
		b := mat.NewDense(nInf, opts.Redundant, nil)
		for i := 0; i < nInf; i++ {
			for j := 0; j < opts.Redundant; j++ {
				b.Set(i, j, 2*rng.Float64()-1)
			}
		}
		var red mat.Dense
		red.Mul(x.Slice(0, opts.Samples, 0, nInf), b)
		for i := 0; i < opts.Samples; i++ {
			for j := 0; j < opts.Redundant; j++ {
				x.Set(i, nInf+j, red.At(i, j))
			}
		}
	}

	for i := 0; i < opts.Samples; i++ {
		for j := nInf + opts.Redundant; j < opts.Features; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}

	if opts.FlipY > 0 {
		for i := range y {
			if rng.Float64() < opts.FlipY {
				y[i] = rng.IntN(2)
			}
		}
	}

	if opts.Shuffle {
		x, y = shuffleRows(rng, x, y)
		x = shuffleColumns(rng, x)
	}

	return New(x, y, DefaultFeatureNames(opts.Features))
}

// hypercubeVertices picks n distinct vertices of a dim-dimensional hypercube
// centred on the origin with side 2*sep.
func hypercubeVertices(rng *rand.Rand, n, dim int, sep float64) [][]float64 {
	seen := make(map[uint64]bool, n)
	out := make([][]float64, 0, n)
	for len(out) < n {
		var code uint64
		v := make([]float64, dim)
		for j := range v {
			if rng.IntN(2) == 1 {
				v[j] = sep
				if j < 64 {
					code |= 1 << uint(j)
				}
			} else {
				v[j] = -sep
			}
		}
		if dim <= 64 && seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, v)
	}
	return out
}

func shuffleRows(rng *rand.Rand, x *mat.Dense, y []int) (*mat.Dense, []int) {
	r, c := x.Dims()
	perm := rng.Perm(r)
	sx := mat.NewDense(r, c, nil)
	sy := make([]int, r)
	for i, p := range perm {
		sx.SetRow(i, x.RawRowView(p))
		sy[i] = y[p]
	}
	return sx, sy
}

func shuffleColumns(rng *rand.Rand, x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	perm := rng.Perm(c)
	out := mat.NewDense(r, c, nil)
	for j, p := range perm {
		out.SetCol(j, mat.Col(nil, p, x))
	}
	return out
}
