// Package config loads the experiment parameters file (params.yml).
package config

import (
	"os"

	"github.com/DeepenData/pkuir/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the parameters file.
const DefaultPath = "params.yml"

// Fold selection policies.
const (
	FoldSelectionLast = "last"
	FoldSelectionBest = "best"
)

// File mirrors the YAML layout. Pointer fields distinguish absent keys from
// zero values.
type File struct {
	FeatureEngineering *FeatureEngineering `yaml:"feature_engineering"`
	Train              *Train              `yaml:"train"`
	XGBoost            map[string]any      `yaml:"xgboost"`
}

// FeatureEngineering section.
type FeatureEngineering struct {
	RemovedFeatures *[]string `yaml:"removed_features"`
}

// Train section.
type Train struct {
	Seed          *uint64  `yaml:"seed"`
	KFoldSplits   *int     `yaml:"kfold_splits"`
	TestsetSplit  *float64 `yaml:"testset_split"`
	FoldSelection string   `yaml:"fold_selection"`
	ParallelFolds bool     `yaml:"parallel_folds"`
}

// Config is the validated parameter set.
type Config struct {
	RemovedFeatures []string
	Seed            uint64
	KFoldSplits     int
	TestSize        float64
	FoldSelection   string
	ParallelFolds   bool

	// XGBoost overrides the default booster parameters key by key.
	XGBoost map[string]any
}

// Load reads and validates the parameters file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Parse validates a parameters document. A missing required key yields a
// ConfigError naming its dotted path.
func Parse(data []byte) (*Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewConfigError("", "invalid yaml: "+err.Error())
	}
	return f.Resolve()
}

// Resolve checks required keys and value ranges.
func (f *File) Resolve() (*Config, error) {
	if f.FeatureEngineering == nil || f.FeatureEngineering.RemovedFeatures == nil {
		return nil, errors.NewConfigError("feature_engineering.removed_features", "missing required key")
	}
	if f.Train == nil {
		return nil, errors.NewConfigError("train", "missing required section")
	}
	t := f.Train
	switch {
	case t.Seed == nil:
		return nil, errors.NewConfigError("train.seed", "missing required key")
	case t.KFoldSplits == nil:
		return nil, errors.NewConfigError("train.kfold_splits", "missing required key")
	case t.TestsetSplit == nil:
		return nil, errors.NewConfigError("train.testset_split", "missing required key")
	}

	if *t.KFoldSplits < 2 {
		return nil, errors.NewConfigError("train.kfold_splits", "must be at least 2")
	}
	if !(*t.TestsetSplit > 0 && *t.TestsetSplit < 1) {
		return nil, errors.NewConfigError("train.testset_split", "must be in (0, 1)")
	}

	selection := t.FoldSelection
	if selection == "" {
		selection = FoldSelectionLast
	}
	if selection != FoldSelectionLast && selection != FoldSelectionBest {
		return nil, errors.NewConfigError("train.fold_selection", `must be "last" or "best", got "`+selection+`"`)
	}

	return &Config{
		RemovedFeatures: append([]string(nil), *f.FeatureEngineering.RemovedFeatures...),
		Seed:            *t.Seed,
		KFoldSplits:     *t.KFoldSplits,
		TestSize:        *t.TestsetSplit,
		FoldSelection:   selection,
		ParallelFolds:   t.ParallelFolds,
		XGBoost:         f.XGBoost,
	}, nil
}
