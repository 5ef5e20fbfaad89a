package gbdt

import (
	"github.com/DeepenData/pkuir/metrics"
	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Evaluation metric names accepted by Params.EvalMetric.
const (
	MetricLogLoss = "logloss"
	MetricAUC     = "auc"
	MetricError   = "error"
	MetricRMSE    = "rmse"
)

// evalMetric scores transformed predictions against labels.
type evalMetric struct {
	name     string
	maximize bool
	eval     func(labels, preds *mat.VecDense) (float64, error)
}

func newMetric(name string) (evalMetric, error) {
	switch name {
	case MetricLogLoss:
		return evalMetric{name: name, eval: metrics.BinaryLogLoss}, nil
	case MetricAUC:
		return evalMetric{name: name, maximize: true, eval: metrics.AUC}, nil
	case MetricError:
		return evalMetric{name: name, eval: func(labels, preds *mat.VecDense) (float64, error) {
			return metrics.ClassificationError(labels, metrics.Threshold(preds, 0.5))
		}}, nil
	case MetricRMSE:
		return evalMetric{name: name, eval: metrics.RMSE}, nil
	default:
		return evalMetric{}, errors.NewValueError("eval_metric", "unsupported metric: "+name)
	}
}

// Maximize reports whether a larger value of the named metric is better.
func Maximize(metric string) bool {
	m, err := newMetric(metric)
	return err == nil && m.maximize
}
