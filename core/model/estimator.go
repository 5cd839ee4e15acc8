package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる（yはn×1のラベル列）
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は二値分類モデルのインターフェース
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は陽性クラス(1)の確率をn×1の行列で返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// PredictOne は1サンプルのラベル(0または1)を返す
	PredictOne(features []float64) (int, error)

	// Classes は学習時に観測したクラスを返す
	Classes() []int
}

// Resampler はクラス不均衡を補正するために訓練データを再標本化するインターフェース
type Resampler interface {
	// FitResample は再標本化後の特徴量行列とラベルを返す。入力は変更しない。
	FitResample(X mat.Matrix, y []int) (*mat.Dense, []int, error)
}
