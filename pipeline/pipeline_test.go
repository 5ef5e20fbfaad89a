package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DeepenData/pkuir/pkg/config"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/preprocessing"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// captureLogs routes the process-wide logger into a TestLogger for the
// duration of the test.
func captureLogs(t *testing.T) *log.TestLogger {
	t.Helper()
	provider, _ := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(log.LevelInfo)) })
	return provider.Logger()
}

// separableTable has n rows, the first positives labelled Si. "signal" puts
// the classes in disjoint ranges, "noise" is unrelated to the label.
func separableTable(t *testing.T, n, positives int) *preprocessing.Table {
	t.Helper()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		label, signal := "No", float64(i%7)/10
		if i < positives {
			label, signal = "Si", 10+signal
		}
		rows[i] = []string{fmt.Sprint(i), fmt.Sprint(signal), fmt.Sprint(i % 5), label}
	}
	table, err := preprocessing.NewTable([]string{"id", "signal", "noise", preprocessing.DefaultTarget}, rows)
	require.NoError(t, err)
	return table
}

func testConfig(seed uint64) Config {
	cfg := DefaultConfig()
	cfg.Seed = &seed
	cfg.RemovedFeatures = []string{"id"}
	cfg.NumBoostRound = 100
	return cfg
}

func TestRunTablePerfectSeparation(t *testing.T) {
	logger := captureLogs(t)
	cfg := testConfig(42)
	cfg.RunID = "run-test"

	res, err := RunTable(context.Background(), cfg, separableTable(t, 100, 20))
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.AUC)
	assert.Equal(t, 1.0, res.TrainAUC)
	assert.GreaterOrEqual(t, res.AUC, 0.0)
	assert.Equal(t, "run-test", res.RunID)

	assert.Len(t, res.Predictions, 30)
	assert.Len(t, res.CV.Folds, DefaultKFoldSplits)
	assert.Equal(t, gbdt.MetricLogLoss, res.CV.Metric)

	assert.Equal(t, []string{"signal", "noise"}, res.Features.Features(), "one row per input feature")
	assert.Equal(t, []string{"signal", "noise"}, res.Split.FeatureNames)
	noise, ok := res.Features.Lookup("noise")
	require.True(t, ok)
	assert.Zero(t, noise.Gain, "perfect separation never splits on noise")
	seen := map[string]bool{}
	for _, row := range res.Features.Rows {
		assert.False(t, seen[row.Feature], "duplicate feature %s", row.Feature)
		seen[row.Feature] = true
	}

	assert.True(t, logger.ContainsField(log.RunIDKey, "run-test"))
	assert.True(t, logger.ContainsMessage("keeping the last fold's booster, earlier folds are discarded"))
	assert.True(t, logger.ContainsMessage("booster evaluated"))
}

func TestRunTableDeterministic(t *testing.T) {
	captureLogs(t)
	table := separableTable(t, 80, 20)

	a, err := RunTable(context.Background(), testConfig(7), table)
	require.NoError(t, err)
	b, err := RunTable(context.Background(), testConfig(7), table)
	require.NoError(t, err)

	assert.Equal(t, a.Split.TestIndex, b.Split.TestIndex)
	assert.Equal(t, a.Booster.NumTrees(), b.Booster.NumTrees())
	assert.Equal(t, a.Predictions, b.Predictions)
	assert.Equal(t, a.Features, b.Features)
	assert.NotEqual(t, a.RunID, b.RunID, "generated run ids differ")
}

func TestParallelFoldsMatchSequential(t *testing.T) {
	captureLogs(t)
	table := separableTable(t, 90, 25)

	seq, err := RunTable(context.Background(), testConfig(3), table)
	require.NoError(t, err)

	cfg := testConfig(3)
	cfg.ParallelFolds = true
	par, err := RunTable(context.Background(), cfg, table)
	require.NoError(t, err)

	assert.Equal(t, seq.CV.Scores(), par.CV.Scores())
	assert.Equal(t, seq.Predictions, par.Predictions)
}

func TestRunTableCancelled(t *testing.T) {
	captureLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunTable(ctx, testConfig(1), separableTable(t, 50, 10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTableErrors(t *testing.T) {
	captureLogs(t)

	t.Run("unknown removed feature", func(t *testing.T) {
		cfg := testConfig(1)
		cfg.RemovedFeatures = []string{"peso"}
		_, err := RunTable(context.Background(), cfg, separableTable(t, 50, 10))
		var dataErr *errors.DataError
		require.True(t, errors.As(err, &dataErr), "got %v", err)
		assert.Equal(t, "peso", dataErr.Column)
	})

	t.Run("bad booster params", func(t *testing.T) {
		cfg := testConfig(1)
		cfg.Params = map[string]any{"max_depth": "deep"}
		_, err := RunTable(context.Background(), cfg, separableTable(t, 50, 10))
		var trainErr *errors.TrainingError
		assert.True(t, errors.As(err, &trainErr), "got %v", err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(1)
		cfg.FoldSelection = "first"
		_, err := RunTable(context.Background(), cfg, separableTable(t, 50, 10))
		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "train.fold_selection", cfgErr.Key)
	})

	t.Run("missing data file", func(t *testing.T) {
		cfg := testConfig(1)
		cfg.DataPath = t.TempDir() + "/missing.csv"
		_, err := Run(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestExplainTableReusesBooster(t *testing.T) {
	captureLogs(t)
	table := separableTable(t, 100, 20)
	cfg := testConfig(42)

	trained, err := RunTable(context.Background(), cfg, table)
	require.NoError(t, err)

	res, err := ExplainTable(context.Background(), cfg, trained.Booster, table)
	require.NoError(t, err)
	assert.Equal(t, trained.AUC, res.AUC)
	assert.Equal(t, trained.Features, res.Features)
	assert.Nil(t, res.CV)

	other := testConfig(42)
	other.RemovedFeatures = []string{"noise"}
	_, err = ExplainTable(context.Background(), other, trained.Booster, table)
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr), "got %v", err)
}

// foldData returns n rows with one informative column and the given labels.
func foldData(labels []float64) (*mat.Dense, *mat.VecDense) {
	n := len(labels)
	X := mat.NewDense(n, 1, nil)
	for i, l := range labels {
		X.Set(i, 0, l*10+float64(i%3))
	}
	return X, mat.NewVecDense(n, labels)
}

func logisticParams(t *testing.T) gbdt.Params {
	t.Helper()
	p, err := gbdt.ParseParams(DefaultParams())
	require.NoError(t, err)
	return p
}

func TestTrainerSingleClassFold(t *testing.T) {
	// one positive among ten rows: the fold validating on it trains on negatives only
	labels := []float64{0, 0, 0, 0, 1, 0, 0, 0, 0, 0}
	X, y := foldData(labels)

	logger, _ := log.NewTestLogger(log.LevelInfo)
	trainer := NewTrainer(logisticParams(t), 5, 1).WithLogger(logger)
	trainer.NumBoostRound = 20

	_, _, err := trainer.Train(context.Background(), X, y)
	require.Error(t, err)

	var trainErr *errors.TrainingError
	require.True(t, errors.As(err, &trainErr), "got %v", err)
	assert.Equal(t, "Trainer.Train", trainErr.Op)
	assert.Equal(t, 4, trainErr.Fold)
}

func TestTrainerFoldSelection(t *testing.T) {
	labels := make([]float64, 60)
	for i := range labels {
		if i%3 == 0 {
			labels[i] = 1
		}
	}
	X, y := foldData(labels)
	// blur the classes so folds score differently
	for i := 0; i < 60; i += 7 {
		X.Set(i, 0, 5)
	}

	t.Run("last", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelInfo)
		trainer := NewTrainer(logisticParams(t), 4, 9).WithLogger(logger)
		trainer.NumBoostRound = 30

		booster, cv, err := trainer.Train(context.Background(), X, y)
		require.NoError(t, err)
		require.Len(t, cv.Folds, 4)
		assert.Equal(t, cv.Folds[3].BestScore, booster.BestScore)
		assert.True(t, logger.ContainsMessage("keeping the last fold's booster, earlier folds are discarded"))
	})

	t.Run("best", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelInfo)
		trainer := NewTrainer(logisticParams(t), 4, 9).WithLogger(logger)
		trainer.NumBoostRound = 30
		trainer.FoldSelection = config.FoldSelectionBest

		booster, cv, err := trainer.Train(context.Background(), X, y)
		require.NoError(t, err)
		for _, s := range cv.Scores() {
			assert.LessOrEqual(t, booster.BestScore, s, "logloss is minimised")
		}
		assert.False(t, logger.ContainsMessage("keeping the last fold's booster, earlier folds are discarded"))
	})
}

func TestTrainerKeepsEveryBoostedTree(t *testing.T) {
	// overlapping classes plus an id-like column: deep trees memorise the
	// training rows and the validation loss turns up
	n := 90
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		label := 0.0
		if i%3 == 0 {
			label = 1
		}
		y.SetVec(i, label)
		X.Set(i, 0, label*1.5+float64((i*37)%11)/5)
		X.Set(i, 1, float64((i*7919)%97))
	}

	tests := []struct {
		name     string
		saveBest bool
	}{
		{"default keeps every round", false},
		{"save_best truncates", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := DefaultParams()
			raw["save_best"] = tt.saveBest
			params, err := gbdt.ParseParams(raw)
			require.NoError(t, err)

			logger, _ := log.NewTestLogger(log.LevelInfo)
			trainer := NewTrainer(params, 3, 11).WithLogger(logger)
			booster, cv, err := trainer.Train(context.Background(), X, y)
			require.NoError(t, err)

			boosted := len(booster.EvalHistory["val"][gbdt.MetricLogLoss])
			require.Less(t, boosted, DefaultNumBoostRound, "early stopping fired")
			last := cv.Folds[len(cv.Folds)-1]
			assert.Equal(t, booster.BestIteration, last.BestIteration)
			if tt.saveBest {
				assert.Equal(t, booster.BestIteration+1, booster.NumTrees())
			} else {
				assert.Equal(t, boosted, booster.NumTrees())
				assert.Equal(t, booster.BestIteration+1+DefaultEarlyStoppingRounds, booster.NumTrees())
			}
		})
	}
}

func TestTrainerTimeLimit(t *testing.T) {
	labels := make([]float64, 60)
	for i := range labels {
		if i%2 == 0 {
			labels[i] = 1
		}
	}
	X, y := foldData(labels)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	trainer := NewTrainer(logisticParams(t), 3, 1).WithLogger(logger)
	trainer.EarlyStoppingRounds = 0
	trainer.TimeLimit = time.Nanosecond

	_, cv, err := trainer.Train(context.Background(), X, y)
	require.NoError(t, err)
	for _, f := range cv.Folds {
		assert.Equal(t, 1, f.NumTrees, "fold %d stops after its first round", f.Fold)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		key    string
	}{
		{"empty target", func(c *Config) { c.Target = "" }, "target"},
		{"test size", func(c *Config) { c.TestSize = 1 }, "train.testset_split"},
		{"folds", func(c *Config) { c.KFoldSplits = 1 }, "train.kfold_splits"},
		{"rounds", func(c *Config) { c.NumBoostRound = 0 }, "num_boost_round"},
		{"patience", func(c *Config) { c.EarlyStoppingRounds = -1 }, "early_stopping_rounds"},
		{"fold time limit", func(c *Config) { c.FoldTimeLimit = -time.Second }, "fold_time_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestEvaluateSingleClass(t *testing.T) {
	labels := make([]float64, 40)
	for i := 1; i < len(labels); i += 2 {
		labels[i] = 1
	}
	X, y := foldData(labels)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	trainer := NewTrainer(logisticParams(t), 2, 1).WithLogger(logger)
	trainer.NumBoostRound = 10
	booster, _, err := trainer.Train(context.Background(), X, y)
	require.NoError(t, err)

	auc, err := Evaluate(booster, X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, auc)

	_, err = Evaluate(booster, X.Slice(0, 1, 0, 1), mat.NewVecDense(1, []float64{0}))
	var evalErr *errors.EvaluationError
	assert.True(t, errors.As(err, &evalErr), "got %v", err)
}
