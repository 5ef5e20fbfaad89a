package core

import "gonum.org/v1/gonum/mat"

// Predictor は確率を出力する二値分類モデルのインターフェース
type Predictor interface {
	// PredictProba は各行の陽性クラス確率を返す
	PredictProba(X mat.Matrix) (*mat.VecDense, error)
}

// MarginPredictor はリンク関数適用前のスコア（マージン）も返せるモデル
type MarginPredictor interface {
	Predictor

	// PredictMargin は各行の生スコアを返す
	PredictMargin(X mat.Matrix) (*mat.VecDense, error)
}
