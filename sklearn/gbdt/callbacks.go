package gbdt

import (
	"time"

	"github.com/DeepenData/pkuir/pkg/log"
)

// CallbackEnv is passed to callbacks after every boosting round.
type CallbackEnv struct {
	Iteration int
	NumTrees  int
	BeginTime time.Time

	// EvalResults maps "<set>-<metric>" to the score of this round.
	EvalResults map[string]float64

	// StopTraining may be set by a callback to end boosting after this round.
	StopTraining bool
}

// Callback is invoked after every boosting round. A non-nil error aborts training.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs the evaluation results every period rounds at debug level.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.Iteration%period != 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration, log.TreesKey, env.NumTrees}
		for name, value := range env.EvalResults {
			fields = append(fields, name, value)
		}
		logger.Debug("boosting round", fields...)
		return nil
	}
}

// RecordEvaluation copies every round's results into history.
func RecordEvaluation(history map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		for name, value := range env.EvalResults {
			history[name] = append(history[name], value)
		}
		return nil
	}
}

// TimeLimit stops training once d has elapsed since the first round started.
func TimeLimit(d time.Duration) Callback {
	return func(env *CallbackEnv) error {
		if time.Since(env.BeginTime) >= d {
			env.StopTraining = true
		}
		return nil
	}
}
