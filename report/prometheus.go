package report

import (
	"strconv"
	"time"

	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pkuir"

// MetricsRegistry collects the headline numbers of a run as Prometheus gauges.
// elapsed is the wall time of the run; zero omits the duration gauge.
func MetricsRegistry(res *pipeline.Result, elapsed time.Duration) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	auc := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "auc",
		Help:      "ROC AUC of the kept booster.",
	}, []string{"split"})
	auc.WithLabelValues("test").Set(res.AUC)
	auc.WithLabelValues("train").Set(res.TrainAUC)
	collectors := []prometheus.Collector{auc}

	if res.Test != nil {
		logloss := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "test_logloss",
			Help:      "Binary log loss on the test split.",
		})
		logloss.Set(res.Test.LogLoss)
		accuracy := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "test_accuracy",
			Help:      "Accuracy on the test split at threshold 0.5.",
		})
		accuracy.Set(res.Test.Accuracy)
		collectors = append(collectors, logloss, accuracy)
	}

	if res.CV != nil {
		folds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cv_fold_score",
			Help:      "Best validation score of each cross-validation fold.",
		}, []string{"fold", "metric"})
		for _, f := range res.CV.Folds {
			folds.WithLabelValues(strconv.Itoa(f.Fold), f.Metric).Set(f.BestScore)
		}
		collectors = append(collectors, folds)
	}

	if res.Booster != nil {
		trees := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "trees",
			Help:      "Number of trees in the kept booster.",
		})
		trees.Set(float64(res.Booster.NumTrees()))
		collectors = append(collectors, trees)
	}

	if res.Features != nil {
		features := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "features",
			Help:      "Rows of the merged feature table, one per input feature.",
		})
		features.Set(float64(res.Features.Len()))
		collectors = append(collectors, features)
	}

	if elapsed > 0 {
		duration := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run.",
		})
		duration.Set(elapsed.Seconds())
		finished := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		})
		finished.SetToCurrentTime()
		collectors = append(collectors, duration, finished)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register run metrics")
		}
	}
	return reg, nil
}

// WriteMetrics writes the run gauges to path in the text exposition format
// read by node_exporter's textfile collector. The file is replaced atomically.
func WriteMetrics(res *pipeline.Result, elapsed time.Duration, path string) error {
	reg, err := MetricsRegistry(res, elapsed)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
