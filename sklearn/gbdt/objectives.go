package gbdt

import (
	"math"

	"github.com/DeepenData/pkuir/pkg/errors"
)

// Objective names accepted by Params.Objective.
const (
	ObjectiveLogistic     = "binary:logistic"
	ObjectiveLogitRaw     = "binary:logitraw"
	ObjectiveSquaredError = "reg:squarederror"
)

// minHessian keeps leaf weights finite once predictions saturate.
const minHessian = 1e-16

// objective defines the loss being boosted.
type objective interface {
	// Gradient returns the first and second derivative of the loss at margin.
	Gradient(margin, label float64) (grad, hess float64)

	// Transform maps a margin to the output space of PredictProba.
	Transform(margin float64) float64

	// BaseMargin converts base_score to margin space.
	BaseMargin(baseScore float64) float64

	// DefaultMetric is used when eval_metric is not set.
	DefaultMetric() string

	// Binary reports whether labels must be 0/1.
	Binary() bool
}

func newObjective(name string) (objective, error) {
	switch name {
	case ObjectiveLogistic:
		return logisticObjective{}, nil
	case ObjectiveLogitRaw:
		return logitRawObjective{}, nil
	case ObjectiveSquaredError:
		return squaredErrorObjective{}, nil
	default:
		return nil, errors.NewValueError("objective", "unsupported objective: "+name)
	}
}

type logisticObjective struct{}

func (logisticObjective) Gradient(margin, label float64) (float64, float64) {
	p := sigmoid(margin)
	return p - label, math.Max(p*(1-p), minHessian)
}

func (logisticObjective) Transform(margin float64) float64 { return sigmoid(margin) }

func (logisticObjective) BaseMargin(baseScore float64) float64 { return logit(baseScore) }

func (logisticObjective) DefaultMetric() string { return MetricLogLoss }

func (logisticObjective) Binary() bool { return true }

// logitRawObjective trains like binary:logistic but predicts margins.
type logitRawObjective struct{ logisticObjective }

func (logitRawObjective) Transform(margin float64) float64 { return margin }

type squaredErrorObjective struct{}

func (squaredErrorObjective) Gradient(margin, label float64) (float64, float64) {
	return margin - label, 1
}

func (squaredErrorObjective) Transform(margin float64) float64 { return margin }

func (squaredErrorObjective) BaseMargin(baseScore float64) float64 { return baseScore }

func (squaredErrorObjective) DefaultMetric() string { return MetricRMSE }

func (squaredErrorObjective) Binary() bool { return false }

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
