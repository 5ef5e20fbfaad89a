package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeepenData/pkuir/explain"
	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureTable() *explain.FeatureTable {
	return &explain.FeatureTable{Rows: []explain.FeatureRow{
		{Feature: "Phe", SHAPHealthy: 0.41, SHAPAbnormal: 1.2, Weight: 12, Coverage: 8.5, Gain: 3.25},
		{Feature: "edad", SHAPHealthy: 0.1, SHAPAbnormal: 0.05, Weight: 3, Coverage: 2, Gain: 0.5},
	}}
}

func TestRows(t *testing.T) {
	rows := Rows(featureTable())
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Phe", "0.4100", "1.2000", "12", "8.5000", "3.2500"}, rows[0])
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(featureTable())
	for _, h := range Headers {
		assert.Contains(t, out, h)
	}
	assert.Contains(t, out, "Phe")
	assert.Contains(t, out, "3.2500")
	assert.Less(t, strings.Index(out, "Phe"), strings.Index(out, "edad"), "table order is kept")
}

func TestRenderSummary(t *testing.T) {
	res := &pipeline.Result{
		RunID:    "abc",
		AUC:      0.875,
		TrainAUC: 0.99,
		Test:     &pipeline.Evaluation{LogLoss: 0.3, Accuracy: 0.8},
		CV:       &gbdt.CVResult{Metric: gbdt.MetricLogLoss, Folds: []gbdt.FoldResult{{BestScore: 0.2}, {BestScore: 0.4}}},
		Features: featureTable(),
	}
	out := RenderSummary(res)
	assert.Contains(t, out, "Run abc")
	assert.Contains(t, out, "test AUC   0.8750")
	assert.Contains(t, out, "over 2 folds")
	assert.Contains(t, out, "Phe")
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(featureTable(), 0, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "png signature")

	assert.Error(t, WritePNG(&explain.FeatureTable{}, 0, &buf))
}

func TestPlotImportance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "importance.png")
	require.NoError(t, PlotImportance(featureTable(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
