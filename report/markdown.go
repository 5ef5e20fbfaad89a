package report

import (
	"fmt"
	"strings"

	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/charmbracelet/glamour"
)

// Markdown returns the run summary as a GitHub flavored markdown document.
func Markdown(res *pipeline.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", res.RunID)
	sb.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&sb, "| test AUC | %.4f |\n", res.AUC)
	fmt.Fprintf(&sb, "| train AUC | %.4f |\n", res.TrainAUC)
	if res.Test != nil {
		fmt.Fprintf(&sb, "| test logloss | %.4f |\n", res.Test.LogLoss)
		fmt.Fprintf(&sb, "| test accuracy | %.4f |\n", res.Test.Accuracy)
	}
	if res.CV != nil {
		fmt.Fprintf(&sb, "| cv %s | %.4f ± %.4f (%d folds) |\n", res.CV.Metric, res.CV.MeanScore(), res.CV.StdScore(), len(res.CV.Folds))
	}
	if res.Booster != nil {
		fmt.Fprintf(&sb, "| trees | %d |\n", res.Booster.NumTrees())
	}

	sb.WriteString("\n## Features\n\n")
	sb.WriteString("| " + strings.Join(Headers, " | ") + " |\n")
	sb.WriteString("|---" + strings.Repeat("|---:", len(Headers)-1) + "|\n")
	for _, row := range Rows(res.Features) {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return sb.String()
}

// RenderMarkdown renders Markdown(res) for a terminal. style is a glamour
// style name such as "auto", "dark", "light" or "notty".
func RenderMarkdown(res *pipeline.Result, style string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s markdown renderer", style)
	}
	out, err := r.Render(Markdown(res))
	if err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return out, nil
}
