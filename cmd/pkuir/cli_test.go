package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testParams = `
feature_engineering:
  removed_features: [id]
train:
  seed: 42
  kfold_splits: 3
  testset_split: 0.3
`

// workspace writes a params file and a separable CSV into a temp dir.
func workspace(t *testing.T) (dir, params, data string) {
	t.Helper()
	dir = t.TempDir()
	params = filepath.Join(dir, "params.yml")
	data = filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(params, []byte(testParams), 0o644))

	var sb strings.Builder
	sb.WriteString("id,Género,Phe,HOMA-IR alterado\n")
	for i := 0; i < 60; i++ {
		sex, phe, label := "M", 100+i%9, "No"
		if i%2 == 0 {
			sex = "F"
		}
		if i < 15 {
			phe, label = 900+i, "Si"
		}
		fmt.Fprintf(&sb, "%d,%s,%d,%s\n", i, sex, phe, label)
	}
	require.NoError(t, os.WriteFile(data, []byte(sb.String()), 0o644))
	return dir, params, data
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(log.LevelInfo)) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestTrainAndExplain(t *testing.T) {
	dir, params, data := workspace(t)
	modelPath := filepath.Join(dir, "model.gob")
	plotPath := filepath.Join(dir, "importance.png")
	predPath := filepath.Join(dir, "predictions.csv")
	historyPath := filepath.Join(dir, "runs.db")
	metricsPath := filepath.Join(dir, "pkuir.prom")

	out, logs, err := execute(t, "train",
		"--config", params, "--data", data,
		"--model-out", modelPath, "--plot", plotPath, "--predictions", predPath,
		"--history", historyPath, "--metrics-file", metricsPath, "--rounds", "50")
	require.NoError(t, err)

	assert.Contains(t, out, "test AUC   1.0000")
	assert.Contains(t, out, "Phe")
	assert.Contains(t, logs, `"run.id"`)
	assert.Contains(t, logs, "model saved")
	for _, p := range []string{modelPath, plotPath, predPath, metricsPath} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	preds, err := os.ReadFile(predPath)
	require.NoError(t, err)
	assert.Equal(t, 1+18, strings.Count(string(preds), "\n"), "header plus one line per test row")

	out2, _, err := execute(t, "explain", "--config", params, "--data", data, "--model", modelPath,
		"--format", "markdown-raw")
	require.NoError(t, err)
	assert.Contains(t, out2, "| test AUC | 1.0000 |")
	assert.Contains(t, out2, "| Phe |")

	hist, _, err := execute(t, "history", "--db", historyPath)
	require.NoError(t, err)
	assert.Contains(t, hist, "1.0000")
	assert.Contains(t, hist, "3 last")
}

func TestTrainErrors(t *testing.T) {
	dir, params, data := workspace(t)

	t.Run("missing config key", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yml")
		require.NoError(t, os.WriteFile(bad, []byte("train: {seed: 1}\n"), 0o644))
		_, _, err := execute(t, "train", "--config", bad, "--data", data)
		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "feature_engineering.removed_features", cfgErr.Key)
	})

	t.Run("unknown target", func(t *testing.T) {
		_, _, err := execute(t, "train", "--config", params, "--data", data, "--target", "HOMA")
		var dataErr *errors.DataError
		assert.True(t, errors.As(err, &dataErr), "got %v", err)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, _, err := execute(t, "train", "--config", params, "--data", data, "--log-level", "loud")
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, "train", "--config", params, "--data", data, "--format", "html")
		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "format", cfgErr.Key)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, _, err := execute(t, "history", "--db", filepath.Join(dir, "empty.db"), "--run", "nope")
		var dataErr *errors.DataError
		assert.True(t, errors.As(err, &dataErr), "got %v", err)
	})

	t.Run("explain needs a model", func(t *testing.T) {
		_, _, err := execute(t, "explain", "--config", params, "--data", data)
		assert.Error(t, err)
	})
}
