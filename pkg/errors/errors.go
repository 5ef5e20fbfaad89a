// Package errors はパイプライン全体のエラーハンドリングを提供します。
// 各ステージ（前処理・学習・評価・説明）の失敗を型付きエラーとして表現し、
// cockroachdb/errors によるスタックトレースを付与します。
package errors

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	パイプラインのエラー型
//
// ===========================================================================

// DataError は入力データに問題がある場合のエラーです。
// 存在しない列、辞書にないカテゴリ値、数値に変換できないセルなど。
type DataError struct {
	Op     string
	Column string
	Reason string
}

func (e *DataError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("pkuir: %s: column %q: %s", e.Op, e.Column, e.Reason)
	}
	return fmt.Sprintf("pkuir: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DataError")
}

// NewDataError は新しいDataErrorを作成し、スタックトレースを付与します。
func NewDataError(op, column, reason string) error {
	return errors.WithStack(&DataError{Op: op, Column: column, Reason: reason})
}

// NewDataErrorf はフォーマット文字列から理由を組み立てるNewDataErrorです。
func NewDataErrorf(op, column, format string, args ...interface{}) error {
	return errors.WithStack(&DataError{Op: op, Column: column, Reason: fmt.Sprintf(format, args...)})
}

// ConfigError は設定ファイルのキーが欠落している、または型が不正な場合のエラーです。
// Key はドット区切りのパス（例: "train.kfold_splits"）です。
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pkuir: config key %q: %s", e.Key, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).
		Str("reason", e.Reason).
		Str("type", "ConfigError")
}

// NewConfigError は新しいConfigErrorを作成し、スタックトレースを付与します。
func NewConfigError(key, reason string) error {
	return errors.WithStack(&ConfigError{Key: key, Reason: reason})
}

// TrainingError はブースティングの学習に失敗した場合のエラーです。
// Fold は交差検証のフォールド番号（フォールド外なら -1）です。
type TrainingError struct {
	Op   string
	Fold int
	Err  error
}

func (e *TrainingError) Error() string {
	var sb strings.Builder
	sb.WriteString("pkuir: ")
	sb.WriteString(e.Op)
	if e.Fold >= 0 {
		fmt.Fprintf(&sb, " (fold %d)", e.Fold)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("fold", e.Fold).
		AnErr("cause", e.Err).
		Str("type", "TrainingError")
}

// NewTrainingError は新しいTrainingErrorを作成し、スタックトレースを付与します。
func NewTrainingError(op string, fold int, err error) error {
	return errors.WithStack(&TrainingError{Op: op, Fold: fold, Err: err})
}

// EvaluationError は評価指標が定義できない場合のエラーです。
// 例えば、ラベルが単一クラスしか含まない場合のAUCなど。
type EvaluationError struct {
	Metric string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("pkuir: %s is undefined: %s", e.Metric, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("metric", e.Metric).
		Str("reason", e.Reason).
		Str("type", "EvaluationError")
}

// NewEvaluationError は新しいEvaluationErrorを作成し、スタックトレースを付与します。
func NewEvaluationError(metric, reason string) error {
	return errors.WithStack(&EvaluationError{Metric: metric, Reason: reason})
}

// UnsupportedCohortError はラベルが二値でないためコホート分割ができない場合のエラーです。
type UnsupportedCohortError struct {
	Labels []float64
}

func (e *UnsupportedCohortError) Error() string {
	return fmt.Sprintf("pkuir: cohort split needs exactly the labels {0, 1}, got %v", e.Labels)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedCohortError) MarshalZerologObject(event *zerolog.Event) {
	event.Floats64("labels", e.Labels).
		Str("type", "UnsupportedCohortError")
}

// NewUnsupportedCohortError は新しいUnsupportedCohortErrorを作成し、スタックトレースを付与します。
func NewUnsupportedCohortError(labels []float64) error {
	return errors.WithStack(&UnsupportedCohortError{Labels: labels})
}

// ===========================================================================
//
//	モデル共通のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で推論を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("pkuir: %s: this model is not fitted yet. Train it before using %s()", e.ModelName, e.Method)
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
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("pkuir: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError は引数の値が不適切な場合のエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("pkuir: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	パニック回復
//
// ===========================================================================

// PanicError は回復したパニックから作られたエラーです。
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pkuir: panic in %s: %v", e.Operation, e.PanicValue)
}

// Recover はdeferで使い、パニックをPanicErrorに変換して *err に設定します。
//
//	func Run() (err error) {
//	    defer errors.Recover(&err, "Run")
//	    ...
//	}
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := &PanicError{Operation: operation, PanicValue: r, StackTrace: string(debug.Stack())}
		if *err != nil {
			*err = errors.Wrapf(*err, "panic in %s: %v", operation, r)
			return
		}
		*err = panicErr
	}
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

	// ErrNotFitted はモデルが未学習の場合のエラーです。
	ErrNotFitted = New("model is not fitted")
)
