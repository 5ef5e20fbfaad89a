package pipeline

import (
	"time"

	"github.com/DeepenData/pkuir/pkg/config"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/preprocessing"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
)

// Experiment defaults.
const (
	DefaultDataPath            = "data/data.csv"
	DefaultTestSize            = 0.3
	DefaultKFoldSplits         = 5
	DefaultNumBoostRound       = 1000
	DefaultEarlyStoppingRounds = 10
)

// DefaultParams returns the booster parameters of the experiment. Keys set in
// Config.Params override them one by one.
func DefaultParams() map[string]any {
	return map[string]any{
		"eta":              0.30,
		"objective":        gbdt.ObjectiveLogistic,
		"eval_metric":      gbdt.MetricLogLoss,
		"max_depth":        10,
		"scale_pos_weight": 5,
	}
}

// Config holds everything a run needs. The zero value is not usable; start
// from DefaultConfig or FromFile.
type Config struct {
	// DataPath is the CSV file read by Run.
	DataPath string

	// Target is the label column.
	Target string

	RemovedFeatures []string

	// Seed drives the train/test split and the folds. nil draws one from the
	// clock and logs it.
	Seed *uint64

	TestSize    float64
	KFoldSplits int

	// FoldSelection is config.FoldSelectionLast or config.FoldSelectionBest.
	FoldSelection string
	ParallelFolds bool

	// Params overrides DefaultParams.
	Params map[string]any

	NumBoostRound       int
	EarlyStoppingRounds int

	// FoldTimeLimit stops boosting a fold once it has run this long. Zero
	// means no limit.
	FoldTimeLimit time.Duration

	// RunID tags every log record of the run. Empty generates a UUID.
	RunID string
}

// DefaultConfig returns the experiment defaults without a seed.
func DefaultConfig() Config {
	return Config{
		DataPath:            DefaultDataPath,
		Target:              preprocessing.DefaultTarget,
		TestSize:            DefaultTestSize,
		KFoldSplits:         DefaultKFoldSplits,
		FoldSelection:       config.FoldSelectionLast,
		NumBoostRound:       DefaultNumBoostRound,
		EarlyStoppingRounds: DefaultEarlyStoppingRounds,
	}
}

// FromFile builds a Config from a parameters file.
func FromFile(f *config.Config) Config {
	cfg := DefaultConfig()
	seed := f.Seed
	cfg.Seed = &seed
	cfg.RemovedFeatures = f.RemovedFeatures
	cfg.TestSize = f.TestSize
	cfg.KFoldSplits = f.KFoldSplits
	cfg.FoldSelection = f.FoldSelection
	cfg.ParallelFolds = f.ParallelFolds
	cfg.Params = f.XGBoost
	return cfg
}

// Validate checks the run-level settings. Booster parameters are checked by
// BoosterParams.
func (c Config) Validate() error {
	switch {
	case c.Target == "":
		return errors.NewConfigError("target", "must not be empty")
	case !(c.TestSize > 0 && c.TestSize < 1):
		return errors.NewConfigError("train.testset_split", "must be in (0, 1)")
	case c.KFoldSplits < 2:
		return errors.NewConfigError("train.kfold_splits", "must be at least 2")
	case c.FoldSelection != config.FoldSelectionLast && c.FoldSelection != config.FoldSelectionBest:
		return errors.NewConfigError("train.fold_selection", `must be "last" or "best"`)
	case c.NumBoostRound < 1:
		return errors.NewConfigError("num_boost_round", "must be at least 1")
	case c.EarlyStoppingRounds < 0:
		return errors.NewConfigError("early_stopping_rounds", "must not be negative")
	case c.FoldTimeLimit < 0:
		return errors.NewConfigError("fold_time_limit", "must not be negative")
	}
	return nil
}

// BoosterParams merges Params over DefaultParams and parses the result.
func (c Config) BoosterParams() (gbdt.Params, error) {
	raw := DefaultParams()
	for k, v := range c.Params {
		raw[k] = v
	}
	p, err := gbdt.ParseParams(raw)
	if err != nil {
		return gbdt.Params{}, err
	}
	if err := p.Validate(); err != nil {
		return gbdt.Params{}, err
	}
	return p, nil
}
