package pipeline

import (
	"github.com/DeepenData/pkuir/core"
	"github.com/DeepenData/pkuir/metrics"
	"gonum.org/v1/gonum/mat"
)

// Evaluation scores a booster on one labelled partition.
type Evaluation struct {
	Rows     int
	AUC      float64
	LogLoss  float64
	Accuracy float64 // at probability threshold 0.5
}

// Prediction is the model output for one source row.
type Prediction struct {
	Row         int // row number in the source table
	Label       float64
	Probability float64
}

// Evaluate returns the ROC AUC of model on (X, y). A single-class y yields an
// EvaluationError.
func Evaluate(model core.Predictor, X mat.Matrix, y *mat.VecDense) (float64, error) {
	ev, _, err := evaluate(model, X, y)
	if err != nil {
		return 0, err
	}
	return ev.AUC, nil
}

func evaluate(model core.Predictor, X mat.Matrix, y *mat.VecDense) (*Evaluation, *mat.VecDense, error) {
	proba, err := model.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	auc, err := metrics.AUC(y, proba)
	if err != nil {
		return nil, nil, err
	}
	loss, err := metrics.BinaryLogLoss(y, proba)
	if err != nil {
		return nil, nil, err
	}
	acc, err := metrics.Accuracy(y, metrics.Threshold(proba, 0.5))
	if err != nil {
		return nil, nil, err
	}
	return &Evaluation{Rows: y.Len(), AUC: auc, LogLoss: loss, Accuracy: acc}, proba, nil
}

func predictions(rows []int, y, proba *mat.VecDense) []Prediction {
	out := make([]Prediction, len(rows))
	for i, r := range rows {
		out[i] = Prediction{Row: r, Label: y.AtVec(i), Probability: proba.AtVec(i)}
	}
	return out
}
