package boosting

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/core/parallel"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

// parallelHistogramRows is the node size above which feature histograms are
// built concurrently.
const parallelHistogramRows = 4096

// Trainer implements histogram-based gradient boosting for binary targets.
type Trainer struct {
	params Params

	X      *mat.Dense
	y      []float64
	bins   *BinMapper
	binned [][]uint8

	gradients []float64
	hessians  []float64
	// raw margin of every training row, updated after each tree
	scores []float64

	trees     []Tree
	initScore float64
	iteration int

	objective ObjectiveFunction
	sampler   *SamplingStrategy
	reg       *RegularizationStrategy

	gainImportance  []float64
	splitImportance []float64

	logger log.Logger
}

// NewTrainer creates a trainer. params must already be validated.
func NewTrainer(params Params) *Trainer {
	return &Trainer{
		params:    params,
		objective: BinaryLogistic{},
		sampler:   NewSamplingStrategy(params),
		reg:       NewRegularizationStrategy(params),
		logger:    log.GetLoggerWithName("boosting.trainer"),
	}
}

// splitInfo describes the best split found for a node.
type splitInfo struct {
	Feature   int
	Bin       int
	Gain      float64
	LeftGrad  float64
	LeftHess  float64
	RightGrad float64
	RightHess float64
	found     bool
}

// Fit grows params.NEstimators trees on X (n×d) and binary targets y.
func (t *Trainer) Fit(X *mat.Dense, y []float64) error {
	rows, cols := X.Dims()
	t.X = X
	t.y = y
	t.bins = NewBinMapper(X, t.params.MaxBin)
	t.binned = t.bins.Transform(X)

	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.scores = make([]float64, rows)
	t.gainImportance = make([]float64, cols)
	t.splitImportance = make([]float64, cols)

	t.initScore = t.objective.GetInitScore(y)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}

	for iter := 0; iter < t.params.NEstimators; iter++ {
		t.iteration = iter
		if err := t.calculateGradients(); err != nil {
			return err
		}

		rowIdx := t.sampler.SampleInstances(rows)
		features := t.sampler.SampleFeatures(cols)

		tree := t.buildTree(rowIdx, features)
		t.trees = append(t.trees, tree)
		t.updateScores(&tree)

		loss := t.calculateLoss()
		if err := lsErrors.CheckScalar("training loss", loss, iter); err != nil {
			return err
		}
		if iter%10 == 0 {
			t.logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LossKey, loss,
				"leaves", tree.NumLeaves)
		}
	}
	return nil
}

func (t *Trainer) calculateGradients() error {
	for i, s := range t.scores {
		t.gradients[i] = t.objective.CalculateGradient(s, t.y[i])
		t.hessians[i] = t.objective.CalculateHessian(s, t.y[i])
	}
	if err := lsErrors.CheckNumericalStability("gradients", t.gradients, t.iteration); err != nil {
		return err
	}
	return lsErrors.CheckNumericalStability("hessians", t.hessians, t.iteration)
}

func (t *Trainer) updateScores(tree *Tree) {
	for i := range t.scores {
		t.scores[i] += tree.Predict(t.X.RawRowView(i))
	}
}

func (t *Trainer) calculateLoss() float64 {
	loss := 0.0
	for i, s := range t.scores {
		loss += t.objective.CalculateLoss(s, t.y[i])
	}
	return loss / float64(len(t.scores))
}

// buildTree grows one tree depth-first on the sampled rows and features.
func (t *Trainer) buildTree(rowIdx, features []int) Tree {
	tree := Tree{
		TreeIndex:     t.iteration,
		ShrinkageRate: t.params.LearningRate,
	}
	t.buildNode(&tree, rowIdx, features, 0)

	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			tree.NumLeaves++
		}
	}
	return tree
}

// buildNode appends the subtree for idx to tree and returns its node index.
func (t *Trainer) buildNode(tree *Tree, idx, features []int, depth int) int {
	nodeIdx := len(tree.Nodes)

	sumGrad, sumHess := 0.0, 0.0
	for _, i := range idx {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}

	tree.Nodes = append(tree.Nodes, Node{
		NodeID:     nodeIdx,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  t.reg.LeafValue(sumGrad, sumHess),
		LeafCount:  len(idx),
		Cover:      sumHess,
	})
	if depth > tree.Depth {
		tree.Depth = depth
	}

	if depth >= t.params.MaxDepth || len(idx) < 2 {
		return nodeIdx
	}

	best := t.findBestSplit(idx, features, sumGrad, sumHess)
	if !best.found || best.Gain <= 0 {
		return nodeIdx
	}

	col := t.binned[best.Feature]
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if int(col[i]) <= best.Bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	t.gainImportance[best.Feature] += best.Gain
	t.splitImportance[best.Feature]++

	leftChild := t.buildNode(tree, left, features, depth+1)
	rightChild := t.buildNode(tree, right, features, depth+1)

	node := &tree.Nodes[nodeIdx]
	node.SplitFeature = best.Feature
	node.Threshold = t.bins.Thresholds[best.Feature][best.Bin]
	node.Gain = best.Gain
	node.LeftChild = leftChild
	node.RightChild = rightChild
	return nodeIdx
}

// findBestSplit scans the histogram of every sampled feature. Ties keep the
// lower feature index so results do not depend on scheduling.
func (t *Trainer) findBestSplit(idx, features []int, sumGrad, sumHess float64) splitInfo {
	perFeature := make([]splitInfo, len(features))

	scan := func(start, end int) {
		hist := make([]HistogramBin, 256)
		for k := start; k < end; k++ {
			f := features[k]
			nBins := t.bins.NumBins(f)
			if nBins < 2 {
				continue
			}
			h := hist[:nBins]
			buildHistogram(h, t.binned[f], idx, t.gradients, t.hessians)
			perFeature[k] = t.scanHistogram(f, h, sumGrad, sumHess)
		}
	}

	if len(idx) >= parallelHistogramRows {
		parallel.Parallelize(len(features), 0, scan)
	} else {
		scan(0, len(features))
	}

	var best splitInfo
	for _, s := range perFeature {
		if s.found && (!best.found || s.Gain > best.Gain) {
			best = s
		}
	}
	return best
}

func (t *Trainer) scanHistogram(feature int, hist []HistogramBin, sumGrad, sumHess float64) splitInfo {
	best := splitInfo{Feature: feature}
	leftGrad, leftHess := 0.0, 0.0
	leftCount, total := 0, 0
	for _, h := range hist {
		total += h.Count
	}

	// the last bin cannot be a left side
	for b := 0; b < len(hist)-1; b++ {
		leftGrad += hist[b].SumGrad
		leftHess += hist[b].SumHess
		leftCount += hist[b].Count
		if hist[b].Count == 0 || leftCount == total {
			continue
		}

		rightGrad := sumGrad - leftGrad
		rightHess := sumHess - leftHess
		if leftHess < t.params.MinChildWeight || rightHess < t.params.MinChildWeight {
			continue
		}

		gain := t.reg.SplitGain(leftGrad, leftHess, rightGrad, rightHess, sumGrad, sumHess) - t.params.Gamma
		if !best.found || gain > best.Gain {
			best = splitInfo{
				Feature:   feature,
				Bin:       b,
				Gain:      gain,
				LeftGrad:  leftGrad,
				LeftHess:  leftHess,
				RightGrad: rightGrad,
				RightHess: rightHess,
				found:     true,
			}
		}
	}
	return best
}

// GetModel returns the trained ensemble.
func (t *Trainer) GetModel() *Model {
	_, cols := t.X.Dims()
	return &Model{
		Trees:           t.trees,
		InitScore:       t.initScore,
		NumFeatures:     cols,
		Objective:       t.objective.Name(),
		Params:          t.params,
		GainImportance:  append([]float64(nil), t.gainImportance...),
		SplitImportance: append([]float64(nil), t.splitImportance...),
	}
}
