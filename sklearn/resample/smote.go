// Package resample は不均衡データのための再標本化手法を提供する
package resample

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/leadscore/core/model"
	"github.com/YuminosukeSato/leadscore/core/parallel"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

// DefaultK は近傍数の既定値
const DefaultK = 5

// SMOTE は少数クラスの合成サンプルを生成してクラス数を揃えるオーバーサンプラー
//
// 各合成サンプルは、少数クラスの標本 x とその k 近傍の1つ z を選び、
// x + u*(z - x) (u ~ U[0,1)) として作られる。
// 全クラスが最多クラスと同数になるまで生成する。
type SMOTE struct {
	// K は近傍数。少数クラスの件数-1 を超える場合は自動的に縮める
	K int
	// Seed は乱数のシード。同じ入力とシードからは同じ出力が得られる
	Seed int64
}

var _ model.Resampler = (*SMOTE)(nil)

// NewSMOTE は既定の近傍数でSMOTEを作成する
func NewSMOTE(seed int64) *SMOTE {
	return &SMOTE{K: DefaultK, Seed: seed}
}

// FitResample は元の行の後ろに合成行を追加した新しい行列とラベルを返す
func (s *SMOTE) FitResample(X mat.Matrix, y []int) (*mat.Dense, []int, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "SMOTE.FitResample")
	}
	if rows != len(y) {
		return nil, nil, lsErrors.NewShapeError(-1, rows, len(y), "label count does not match row count")
	}
	if s.K < 1 {
		return nil, nil, lsErrors.NewValueError("SMOTE.FitResample", "k must be at least 1")
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	target := 0
	for c, idx := range byClass {
		classes = append(classes, c)
		if len(idx) > target {
			target = len(idx)
		}
	}
	sort.Ints(classes)

	nNew := 0
	for _, c := range classes {
		nNew += target - len(byClass[c])
	}

	out := mat.NewDense(rows+nNew, cols, nil)
	out.Slice(0, rows, 0, cols).(*mat.Dense).Copy(X)
	labels := make([]int, rows, rows+nNew)
	copy(labels, y)

	if nNew == 0 {
		return out, labels, nil
	}

	seed := uint64(s.Seed)
	rng := rand.New(rand.NewPCG(seed, seed))
	logger := log.GetLoggerWithName("resample")

	next := rows
	synthetic := make([]float64, cols)
	for _, c := range classes {
		idx := byClass[c]
		need := target - len(idx)
		if need == 0 {
			continue
		}

		points := make([][]float64, len(idx))
		for k, i := range idx {
			points[k] = mat.Row(nil, i, X)
		}
		k := s.K
		if k > len(points)-1 {
			k = len(points) - 1
		}
		if k < s.K {
			logger.Warn("Too few minority samples for the requested neighbour count",
				"class", c, log.SamplesKey, len(points), "k", k)
		}
		neighbours := nearestNeighbours(points, k)

		for n := 0; n < need; n++ {
			a := rng.IntN(len(points))
			if k == 0 {
				// 1件しかない場合は複製する
				out.SetRow(next, points[a])
			} else {
				b := neighbours[a][rng.IntN(k)]
				gap := rng.Float64()
				copy(synthetic, points[a])
				floats.AddScaled(synthetic, gap, floats.SubTo(make([]float64, cols), points[b], points[a]))
				out.SetRow(next, synthetic)
			}
			labels = append(labels, c)
			next++
		}

		logger.Debug("Minority class oversampled",
			log.OperationKey, log.OperationResample, "class", c,
			"original", len(points), "synthetic", need)
	}

	return out, labels, nil
}

// nearestNeighbours は各点のユークリッド距離で近い順 k 個のインデックスを返す（自身を除く）
func nearestNeighbours(points [][]float64, k int) [][]int {
	result := make([][]int, len(points))
	if k == 0 {
		return result
	}

	parallel.ParallelizeWithThreshold(len(points), 256, 0, func(start, end int) {
		type cand struct {
			idx  int
			dist float64
		}
		cands := make([]cand, 0, len(points)-1)
		for i := start; i < end; i++ {
			cands = cands[:0]
			for j := range points {
				if j == i {
					continue
				}
				cands = append(cands, cand{j, floats.Distance(points[i], points[j], 2)})
			}
			sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
			nn := make([]int, k)
			for m := 0; m < k; m++ {
				nn[m] = cands[m].idx
			}
			result[i] = nn
		}
	})
	return result
}
