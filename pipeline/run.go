package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/DeepenData/pkuir/explain"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/preprocessing"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"github.com/google/uuid"
)

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Booster *gbdt.Booster

	// Features is the merged importance/SHAP table of the test split.
	Features    *explain.FeatureTable
	Explanation *explain.Explanation

	AUC      float64 // test split
	TrainAUC float64
	Test     *Evaluation
	Train    *Evaluation

	// CV is nil when the booster was not trained in this run.
	CV *gbdt.CVResult

	// Predictions holds one entry per test row.
	Predictions []Prediction

	Split *preprocessing.Split
}

// Run loads cfg.DataPath and runs the whole experiment: preprocessing,
// cross-validated training, evaluation and explanation of the test split.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	table, err := preprocessing.ReadCSV(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return RunTable(ctx, cfg, table)
}

// RunTable is Run on an already loaded table.
func RunTable(ctx context.Context, cfg Config, table *preprocessing.Table) (*Result, error) {
	r, err := newRunner(cfg)
	if err != nil {
		return nil, err
	}
	split, err := r.preprocess(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := cfg.BoosterParams()
	if err != nil {
		return nil, err
	}
	trainer := NewTrainer(params, cfg.KFoldSplits, split.Seed).WithLogger(r.logger)
	trainer.NumBoostRound = cfg.NumBoostRound
	trainer.EarlyStoppingRounds = cfg.EarlyStoppingRounds
	trainer.FoldSelection = cfg.FoldSelection
	trainer.Parallel = cfg.ParallelFolds
	trainer.TimeLimit = cfg.FoldTimeLimit
	trainer.FeatureNames = split.FeatureNames

	booster, cv, err := trainer.Train(ctx, split.XTrain, split.YTrain)
	if err != nil {
		return nil, err
	}

	res, err := r.finish(ctx, booster, split)
	if err != nil {
		return nil, err
	}
	res.CV = cv
	return res, nil
}

// Explain rebuilds the split of cfg from cfg.DataPath and evaluates and
// explains an already trained booster on it.
func Explain(ctx context.Context, cfg Config, booster *gbdt.Booster) (*Result, error) {
	table, err := preprocessing.ReadCSV(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return ExplainTable(ctx, cfg, booster, table)
}

// ExplainTable is Explain on an already loaded table. The booster must have
// been trained on the same feature columns.
func ExplainTable(ctx context.Context, cfg Config, booster *gbdt.Booster, table *preprocessing.Table) (*Result, error) {
	r, err := newRunner(cfg)
	if err != nil {
		return nil, err
	}
	split, err := r.preprocess(ctx, table)
	if err != nil {
		return nil, err
	}
	if booster == nil {
		return nil, errors.NewNotFittedError("gbdt.Booster", "Explain")
	}
	if len(booster.FeatureNames) > 0 && !slices.Equal(booster.FeatureNames, split.FeatureNames) {
		return nil, errors.NewDataErrorf("ExplainTable", "",
			"model features %v do not match table features %v", booster.FeatureNames, split.FeatureNames)
	}
	return r.finish(ctx, booster, split)
}

type runner struct {
	cfg    Config
	runID  string
	logger log.Logger
}

func newRunner(cfg Config) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &runner{
		cfg:    cfg,
		runID:  runID,
		logger: log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID),
	}, nil
}

func (r *runner) preprocess(ctx context.Context, table *preprocessing.Table) (*preprocessing.Split, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := preprocessing.NewPreprocessor(r.cfg.Target, r.cfg.TestSize, r.cfg.RemovedFeatures, r.cfg.Seed).
		WithLogger(r.logger)
	return p.Process(table)
}

func (r *runner) finish(ctx context.Context, booster *gbdt.Booster, split *preprocessing.Split) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	test, proba, err := evaluate(booster, split.XTest, split.YTest)
	if err != nil {
		return nil, err
	}
	train, _, err := evaluate(booster, split.XTrain, split.YTrain)
	if err != nil {
		return nil, err
	}
	r.logger.Info("booster evaluated",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseTesting,
		log.SamplesKey, test.Rows,
		log.AUCKey, test.AUC,
		log.LossKey, test.LogLoss,
		"metrics.accuracy", test.Accuracy,
		"metrics.train_auc", train.AUC,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exp, err := explain.NewExplainer().WithLogger(r.logger).Explain(booster, split.XTest, split.YTest)
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:       r.runID,
		Booster:     booster,
		Features:    explain.Merge(exp.Importance, exp.Healthy, exp.Abnormal),
		Explanation: exp,
		AUC:         test.AUC,
		TrainAUC:    train.AUC,
		Test:        test,
		Train:       train,
		Predictions: predictions(split.TestIndex, split.YTest, proba),
		Split:       split,
	}, nil
}
