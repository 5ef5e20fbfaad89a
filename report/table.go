// Package report renders run results for terminals and image files.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DeepenData/pkuir/explain"
	"github.com/DeepenData/pkuir/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Column headers of the feature table.
var Headers = []string{"Feature", "SHAP healthy", "SHAP abnormal", "Weight", "Coverage", "Gain"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7a89"))
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

// Rows formats the feature table as strings, one slice per feature.
func Rows(ft *explain.FeatureTable) [][]string {
	rows := make([][]string, 0, ft.Len())
	for _, r := range ft.Rows {
		rows = append(rows, []string{
			r.Feature,
			formatFloat(r.SHAPHealthy),
			formatFloat(r.SHAPAbnormal),
			strconv.FormatFloat(r.Weight, 'f', -1, 64),
			formatFloat(r.Coverage),
			formatFloat(r.Gain),
		})
	}
	return rows
}

// RenderTable draws the feature table with a border. Numeric columns are
// right aligned.
func RenderTable(ft *explain.FeatureTable) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(Headers...).
		Rows(Rows(ft)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
	return t.String()
}

// RenderSummary draws the headline numbers of a run followed by its feature
// table.
func RenderSummary(res *pipeline.Result) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Run " + res.RunID))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "test AUC   %.4f\n", res.AUC)
	fmt.Fprintf(&sb, "train AUC  %.4f\n", res.TrainAUC)
	if res.Test != nil {
		fmt.Fprintf(&sb, "logloss    %.4f\n", res.Test.LogLoss)
		fmt.Fprintf(&sb, "accuracy   %.4f\n", res.Test.Accuracy)
	}
	if res.CV != nil {
		fmt.Fprintf(&sb, "cv %-7s %.4f ± %.4f over %d folds\n", res.CV.Metric, res.CV.MeanScore(), res.CV.StdScore(), len(res.CV.Folds))
	}
	if res.Booster != nil {
		fmt.Fprintf(&sb, "trees      %d\n", res.Booster.NumTrees())
	}
	sb.WriteString("\n")
	sb.WriteString(RenderTable(res.Features))
	sb.WriteString("\n")
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
