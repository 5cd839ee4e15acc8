// Package model_selection はデータ分割のユーティリティを提供する
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// SplitResult は訓練/テスト分割の結果
type SplitResult struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []int
	YTest  []int

	// 元データにおける行インデックス
	TrainIndices []int
	TestIndices  []int
}

// ShuffleIndices はシードで再現可能な訓練/テストのインデックスを返す
//
// テスト件数は ceil(testSize * n)、訓練件数は残り全て。
// 同じ n, testSize, seed からは常に同じ分割が得られる。
func ShuffleIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, lsErrors.NewValueError("TrainTestSplit", "test_size must be in (0, 1)")
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, lsErrors.NewShapeError(-1, 2, n, "too few rows to split into train and test partitions")
	}

	s := uint64(seed)
	r := rand.New(rand.NewPCG(s, s))
	perm := r.Perm(n)

	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// TrainTestSplit は X, y をシャッフルして訓練/テストに分割する
//
// 層化は行わない。入力は変更しない。
func TrainTestSplit(X mat.Matrix, y []int, testSize float64, seed int64) (*SplitResult, error) {
	r, _ := X.Dims()
	if r != len(y) {
		return nil, lsErrors.NewShapeError(-1, r, len(y), "label count does not match row count")
	}

	train, test, err := ShuffleIndices(r, testSize, seed)
	if err != nil {
		return nil, err
	}

	xTrain, yTrain := Take(X, y, train)
	xTest, yTest := Take(X, y, test)
	return &SplitResult{
		XTrain:       xTrain,
		XTest:        xTest,
		YTrain:       yTrain,
		YTest:        yTest,
		TrainIndices: train,
		TestIndices:  test,
	}, nil
}

// Take は指定インデックスの行をコピーして返す
func Take(X mat.Matrix, y []int, idx []int) (*mat.Dense, []int) {
	_, c := X.Dims()
	xOut := mat.NewDense(len(idx), c, nil)
	yOut := make([]int, len(idx))
	row := make([]float64, c)
	for k, i := range idx {
		mat.Row(row, i, X)
		xOut.SetRow(k, row)
		yOut[k] = y[i]
	}
	return xOut, yOut
}
