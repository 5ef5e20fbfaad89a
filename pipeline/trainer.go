package pipeline

import (
	"context"
	"time"

	"github.com/DeepenData/pkuir/pkg/config"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Trainer fits one booster per stratified fold and keeps one of them.
type Trainer struct {
	Params              gbdt.Params
	NSplits             int
	Seed                uint64
	NumBoostRound       int
	EarlyStoppingRounds int

	// FoldSelection picks the kept booster: "last" keeps the final fold,
	// "best" the fold with the best validation score.
	FoldSelection string

	// Parallel trains folds concurrently. Results match the sequential run.
	Parallel bool

	// TimeLimit caps the boosting time of each fold. Zero disables it.
	TimeLimit time.Duration

	FeatureNames []string

	logger log.Logger
}

// NewTrainer creates a Trainer with the experiment defaults.
func NewTrainer(params gbdt.Params, nSplits int, seed uint64) *Trainer {
	return &Trainer{
		Params:              params,
		NSplits:             nSplits,
		Seed:                seed,
		NumBoostRound:       DefaultNumBoostRound,
		EarlyStoppingRounds: DefaultEarlyStoppingRounds,
		FoldSelection:       config.FoldSelectionLast,
		logger:              log.GetLoggerWithName("pipeline.trainer"),
	}
}

// WithLogger replaces the logger.
func (t *Trainer) WithLogger(l log.Logger) *Trainer {
	t.logger = l
	return t
}

type foldOutcome struct {
	booster *gbdt.Booster
	result  gbdt.FoldResult
}

// Train runs stratified k-fold boosting on (X, y). Every fold is trained with
// evals [train, val] and early stopping on val. It returns the selected booster
// and the per-fold summary.
//
// A fold that cannot be trained (for example a single-class training part)
// fails the whole call with a TrainingError carrying the fold number.
func (t *Trainer) Train(ctx context.Context, X *mat.Dense, y *mat.VecDense) (*gbdt.Booster, *gbdt.CVResult, error) {
	const op = "Trainer.Train"
	logger := t.logger
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline.trainer")
	}

	if t.FoldSelection != config.FoldSelectionLast && t.FoldSelection != config.FoldSelectionBest {
		return nil, nil, errors.NewConfigError("train.fold_selection", `must be "last" or "best", got "`+t.FoldSelection+`"`)
	}

	data, err := gbdt.NewDMatrix(X, y, t.FeatureNames)
	if err != nil {
		return nil, nil, errors.NewTrainingError(op, -1, err)
	}
	folds, err := gbdt.NewStratifiedKFold(t.NSplits, true, t.Seed).Split(y)
	if err != nil {
		return nil, nil, errors.NewTrainingError(op, -1, err)
	}

	logger.Info("cross-validated training started",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, data.NumRow(),
		log.FeaturesKey, data.NumCol(),
		log.FoldsKey, len(folds),
		log.HyperParamsKey, t.Params.String(),
	)

	outcomes := make([]foldOutcome, len(folds))
	if t.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for k := range folds {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				out, err := t.trainFold(k, data, folds[k], logger)
				if err != nil {
					return err
				}
				outcomes[k] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		for k := range folds {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			out, err := t.trainFold(k, data, folds[k], logger)
			if err != nil {
				return nil, nil, err
			}
			outcomes[k] = out
		}
	}

	cv := &gbdt.CVResult{Metric: t.Params.EvalMetric}
	if cv.Metric == "" {
		cv.Metric = outcomes[0].result.Metric
	}
	for _, out := range outcomes {
		cv.Folds = append(cv.Folds, out.result)
	}

	selected := len(outcomes) - 1
	if t.FoldSelection == config.FoldSelectionBest {
		selected = cv.BestFold()
	} else if len(outcomes) > 1 {
		logger.Warn("keeping the last fold's booster, earlier folds are discarded",
			log.FoldSelectionKey, t.FoldSelection,
			log.FoldKey, selected,
		)
	}

	logger.Info("cross-validated training finished",
		log.PhaseKey, log.PhaseTraining,
		log.FoldSelectionKey, t.FoldSelection,
		log.FoldKey, selected,
		log.MetricKey, cv.Metric,
		"cv.mean_score", cv.MeanScore(),
		"cv.std_score", cv.StdScore(),
	)
	return outcomes[selected].booster, cv, nil
}

func (t *Trainer) trainFold(k int, data *gbdt.DMatrix, fold gbdt.CVFold, logger log.Logger) (_ foldOutcome, err error) {
	const op = "Trainer.Train"
	defer errors.Recover(&err, op)
	start := time.Now()

	dtrain := data.Slice(fold.TrainIndices)
	dval := data.Slice(fold.TestIndices)

	var callbacks []gbdt.Callback
	if t.TimeLimit > 0 {
		callbacks = append(callbacks, gbdt.TimeLimit(t.TimeLimit))
	}
	booster, err := gbdt.Train(t.Params, dtrain, t.NumBoostRound,
		[]gbdt.EvalSet{{Name: "train", Data: dtrain}, {Name: "val", Data: dval}},
		t.EarlyStoppingRounds, callbacks...)
	if err != nil {
		return foldOutcome{}, errors.NewTrainingError(op, k, err)
	}
	if booster.NumTrees() == 0 {
		return foldOutcome{}, errors.NewTrainingError(op, k, errors.New("booster has no trees"))
	}

	metric := t.Params.EvalMetric
	if metric == "" {
		for name := range booster.EvalHistory["val"] {
			metric = name
		}
	}
	res := gbdt.FoldResult{
		Fold:          k,
		TrainRows:     dtrain.NumRow(),
		ValidRows:     dval.NumRow(),
		NumTrees:      booster.NumTrees(),
		BestIteration: booster.BestIteration,
		Metric:        metric,
		BestScore:     booster.BestScore,
		FitSeconds:    time.Since(start).Seconds(),
	}

	logger.Info("fold finished",
		log.FoldKey, k,
		log.TreesKey, res.NumTrees,
		log.BestIterationKey, res.BestIteration,
		log.MetricKey, res.Metric,
		log.ScoreKey, res.BestScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return foldOutcome{booster: booster, result: res}, nil
}
