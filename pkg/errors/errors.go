// Package errors はleadscore全体のエラーハンドリングと警告システムを提供します。
// 設定・データ・学習・推論の各境界で発生する失敗を構造化されたエラー型で表現し、
// cockroachdb/errors によるスタックトレースと zerolog による構造化ログ出力を備えます。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("leadscore-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
// UndefinedMetricWarningなどの警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、適合率(precision)を計算する際に、陽性クラスの予測が一つもなかった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	パイプライン境界のエラー型
//
// ===========================================================================

// ConfigError は設定値が欠落している、または不正な場合のエラーです。
// 設定の読み込み時、およびパイプライン呼び出しの入口で発生します。
type ConfigError struct {
	Key    string
	Reason string
	Value  interface{}
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("leadscore: invalid configuration '%s': %s (got: %v)", e.Key, e.Reason, e.Value)
	}
	return fmt.Sprintf("leadscore: invalid configuration '%s': %s", e.Key, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError は新しいConfigErrorを作成し、スタックトレースを付与します。
func NewConfigError(key, reason string, value interface{}) error {
	return errors.WithStack(&ConfigError{Key: key, Reason: reason, Value: value})
}

// ShapeError はデータセットのスキーマ（列構成・行幅・ラベル値）が不整合な場合のエラーです。
type ShapeError struct {
	Row      int // 問題のある行（-1は行に依存しない場合）
	Expected int
	Got      int
	Reason   string
}

func (e *ShapeError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("leadscore: dataset shape mismatch at row %d: %s (expected %d, got %d)", e.Row, e.Reason, e.Expected, e.Got)
	}
	return fmt.Sprintf("leadscore: dataset shape mismatch: %s (expected %d, got %d)", e.Reason, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("row", e.Row).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "ShapeError")
}

// NewShapeError は新しいShapeErrorを作成し、スタックトレースを付与します。
func NewShapeError(row, expected, got int, reason string) error {
	return errors.WithStack(&ShapeError{Row: row, Expected: expected, Got: got, Reason: reason})
}

// FitError は学習器がハイパーパラメータや学習データを受け付けなかった場合のエラーです。
// 学習中のパニックや数値的不安定性もこのエラーに包まれて呼び出し元に返されます。
type FitError struct {
	Estimator string
	Param     string
	Reason    string
	Err       error
}

func (e *FitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "leadscore: %s: fit failed", e.Estimator)
	if e.Param != "" {
		fmt.Fprintf(&b, ": parameter '%s'", e.Param)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("estimator", e.Estimator).
		Str("param", e.Param).
		Str("reason", e.Reason).
		Str("type", "FitError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewFitError はハイパーパラメータが拒否された場合のFitErrorを作成します。
func NewFitError(estimator, param, reason string) error {
	return errors.WithStack(&FitError{Estimator: estimator, Param: param, Reason: reason})
}

// WrapFitError は学習中に発生したエラーをFitErrorで包みます。
// errがnilの場合はnilを返します。既にFitErrorの場合はそのまま返します。
func WrapFitError(estimator string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FitError
	if errors.As(err, &fe) {
		return err
	}
	return errors.WithStack(&FitError{Estimator: estimator, Err: err})
}

// RequestValidationError は推論リクエストの入力が不正な場合のエラーです。
// モデルが呼び出される前に検出されます。
type RequestValidationError struct {
	Fields []string // 不足または不正なフィールド名
	Reason string
	Err    error
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("leadscore: invalid request: %s: %s", strings.Join(e.Fields, ", "), e.Reason)
	}
	return fmt.Sprintf("leadscore: invalid request: %s", e.Reason)
}

func (e *RequestValidationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RequestValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("fields", e.Fields).
		Str("reason", e.Reason).
		Str("type", "RequestValidationError")
}

// NewRequestValidationError は新しいRequestValidationErrorを作成し、スタックトレースを付与します。
func NewRequestValidationError(fields []string, reason string, err error) error {
	return errors.WithStack(&RequestValidationError{Fields: fields, Reason: reason, Err: err})
}

// ===========================================================================
//
//	推定器のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("leadscore: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("leadscore: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis)).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "features"
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("leadscore: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 学習中の損失や勾配にNaN、Infが現れた場合に発生します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "logloss"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
}

func (e *NumericalInstabilityError) Error() string {
	vals := make([]string, 0, len(e.Values))
	for i, v := range e.Values {
		if i >= 5 {
			vals = append(vals, "...")
			break
		}
		vals = append(vals, fmt.Sprintf("%.6g", v))
	}
	return fmt.Sprintf("leadscore: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(vals, ", "))
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNoSuccessfulTrial は探索で成功した試行が一つもなかった場合のエラーです。
	ErrNoSuccessfulTrial = New("no successful trial")
)
