// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"math"
	"sort"
	"strconv"

	"github.com/sjwhitworth/golearn/evaluation"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// ConfusionMatrix は正解ラベル -> 予測ラベル -> 件数 の混同行列を作成する
//
// クラス名はラベルの10進表記（"0", "1"）。正解と予測に現れた全クラスの
// 行と列を0で初期化するため、golearnの集計関数をそのまま使える。
func ConfusionMatrix(yTrue, yPred []int) (evaluation.ConfusionMatrix, error) {
	if len(yTrue) == 0 {
		return nil, lsErrors.NewValueError("ConfusionMatrix", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return nil, lsErrors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}

	classes := Labels(yTrue, yPred)
	cm := make(evaluation.ConfusionMatrix, len(classes))
	for _, ref := range classes {
		row := make(map[string]int, len(classes))
		for _, pred := range classes {
			row[ClassName(pred)] = 0
		}
		cm[ClassName(ref)] = row
	}
	for i := range yTrue {
		cm[ClassName(yTrue[i])][ClassName(yPred[i])]++
	}
	return cm, nil
}

// ClassName はラベルを混同行列のクラス名に変換する
func ClassName(label int) string {
	return strconv.Itoa(label)
}

// Labels は正解と予測に現れたラベルを昇順で返す
func Labels(yTrue, yPred []int) []int {
	seen := map[int]bool{}
	for _, v := range yTrue {
		seen[v] = true
	}
	for _, v := range yPred {
		seen[v] = true
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Accuracy は正解率を返す
func Accuracy(cm evaluation.ConfusionMatrix) float64 {
	return defined("accuracy", "empty confusion matrix", evaluation.GetAccuracy(cm))
}

// Precision は指定クラスの適合率を返す。予測が1件もない場合は0（警告あり）
func Precision(cm evaluation.ConfusionMatrix, label int) float64 {
	return defined("precision", "no predicted samples for class "+ClassName(label),
		evaluation.GetPrecision(ClassName(label), cm))
}

// Recall は指定クラスの再現率を返す。正解が1件もない場合は0（警告あり）
func Recall(cm evaluation.ConfusionMatrix, label int) float64 {
	return defined("recall", "no true samples for class "+ClassName(label),
		evaluation.GetRecall(ClassName(label), cm))
}

// F1 は指定クラスのF1スコアを返す。適合率と再現率がともに0または未定義の場合は0
func F1(cm evaluation.ConfusionMatrix, label int) float64 {
	p := Precision(cm, label)
	r := Recall(cm, label)
	if p+r == 0 {
		return 0
	}
	return defined("f1", "precision and recall are both zero for class "+ClassName(label),
		evaluation.GetF1Score(ClassName(label), cm))
}

// F1Macro はクラスごとのF1スコアの単純平均を返す
func F1Macro(cm evaluation.ConfusionMatrix) float64 {
	if len(cm) == 0 {
		return 0
	}
	sum := 0.0
	for class := range cm {
		label, err := strconv.Atoi(class)
		if err != nil {
			continue
		}
		sum += F1(cm, label)
	}
	return sum / float64(len(cm))
}

// Report はクラスごとの適合率・再現率・F1と全体の正解率を文字列で返す
func Report(cm evaluation.ConfusionMatrix) string {
	return evaluation.ShowConfusionMatrix(cm) + "\n" + evaluation.GetSummary(cm)
}

// defined は0/0で未定義となった指標を0に置き換え、UndefinedMetricWarningを発行する
func defined(metric, condition string, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		lsErrors.Warn(lsErrors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return v
}
