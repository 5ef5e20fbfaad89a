package report

import (
	"strings"
	"testing"

	"github.com/DeepenData/pkuir/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown(t *testing.T) {
	res := &pipeline.Result{RunID: "abc", AUC: 0.875, TrainAUC: 1, Features: featureTable()}
	md := Markdown(res)

	assert.True(t, strings.HasPrefix(md, "# Run abc\n"))
	assert.Contains(t, md, "| test AUC | 0.8750 |")
	assert.Contains(t, md, "| Feature | SHAP healthy | SHAP abnormal | Weight | Coverage | Gain |")
	assert.Contains(t, md, "|---|---:|---:|---:|---:|---:|")
	assert.Contains(t, md, "| Phe | 0.4100 | 1.2000 | 12 | 8.5000 | 3.2500 |")
	assert.NotContains(t, md, "logloss", "no test evaluation, no logloss row")
}

func TestRenderMarkdown(t *testing.T) {
	res := &pipeline.Result{RunID: "abc", AUC: 0.875, Features: featureTable()}
	out, err := RenderMarkdown(res, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Run abc")
	assert.Contains(t, out, "Phe")
	assert.Contains(t, out, "0.8750")

	_, err = RenderMarkdown(res, "no-such-style.json")
	assert.Error(t, err)
}
