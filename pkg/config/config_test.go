package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
feature_engineering:
  removed_features: [id, fecha]
train:
  seed: 42
  kfold_splits: 5
  testset_split: 0.3
  fold_selection: best
  parallel_folds: true
xgboost:
  eta: 0.1
  max_depth: 4
  objective: binary:logistic
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "fecha"}, cfg.RemovedFeatures)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 5, cfg.KFoldSplits)
	assert.Equal(t, 0.3, cfg.TestSize)
	assert.Equal(t, FoldSelectionBest, cfg.FoldSelection)
	assert.True(t, cfg.ParallelFolds)
	assert.Equal(t, 0.1, cfg.XGBoost["eta"])
	assert.Equal(t, 4, cfg.XGBoost["max_depth"])
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
feature_engineering:
  removed_features: []
train:
  seed: 0
  kfold_splits: 2
  testset_split: 0.5
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.RemovedFeatures)
	assert.Equal(t, FoldSelectionLast, cfg.FoldSelection)
	assert.False(t, cfg.ParallelFolds)
	assert.Nil(t, cfg.XGBoost)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{
			name: "empty document",
			yaml: "",
			key:  "feature_engineering.removed_features",
		},
		{
			name: "missing removed features",
			yaml: "feature_engineering: {}\ntrain: {seed: 1, kfold_splits: 5, testset_split: 0.3}\n",
			key:  "feature_engineering.removed_features",
		},
		{
			name: "missing train section",
			yaml: "feature_engineering: {removed_features: []}\n",
			key:  "train",
		},
		{
			name: "missing seed",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {kfold_splits: 5, testset_split: 0.3}\n",
			key:  "train.seed",
		},
		{
			name: "missing kfold splits",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: 1, testset_split: 0.3}\n",
			key:  "train.kfold_splits",
		},
		{
			name: "missing testset split",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: 1, kfold_splits: 5}\n",
			key:  "train.testset_split",
		},
		{
			name: "one fold",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: 1, kfold_splits: 1, testset_split: 0.3}\n",
			key:  "train.kfold_splits",
		},
		{
			name: "test split out of range",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: 1, kfold_splits: 5, testset_split: 1.5}\n",
			key:  "train.testset_split",
		},
		{
			name: "unknown fold selection",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: 1, kfold_splits: 5, testset_split: 0.3, fold_selection: first}\n",
			key:  "train.fold_selection",
		},
		{
			name: "wrong type",
			yaml: "feature_engineering: {removed_features: []}\ntrain: {seed: abc, kfold_splits: 5, testset_split: 0.3}\n",
			key:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.KFoldSplits)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
