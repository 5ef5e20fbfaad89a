package report

import (
	"io"
	"os"

	"github.com/DeepenData/pkuir/explain"
	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// DefaultPlotFeatures is the number of features drawn by PlotImportance.
const DefaultPlotFeatures = 15

// ImportancePlot builds a grouped bar chart of the mean |SHAP| per cohort for
// the first n features of the table (n <= 0 draws all of them).
func ImportancePlot(ft *explain.FeatureTable, n int) (*plot.Plot, error) {
	if ft == nil || ft.Len() == 0 {
		return nil, errors.NewValueError("ImportancePlot", "feature table is empty")
	}
	rows := ft.Rows
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}

	healthy := make(plotter.Values, len(rows))
	abnormal := make(plotter.Values, len(rows))
	names := make([]string, len(rows))
	for i, r := range rows {
		healthy[i] = r.SHAPHealthy
		abnormal[i] = r.SHAPAbnormal
		names[i] = r.Feature
	}

	p := plot.New()
	p.Title.Text = "Mean |SHAP| by cohort"
	p.Y.Label.Text = "mean |SHAP| (log-odds)"

	w := vg.Points(10)
	barsH, err := plotter.NewBarChart(healthy, w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build healthy bars")
	}
	barsH.LineStyle.Width = vg.Length(0)
	barsH.Color = plotutil.Color(0)
	barsH.Offset = -w / 2

	barsA, err := plotter.NewBarChart(abnormal, w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build abnormal bars")
	}
	barsA.LineStyle.Width = vg.Length(0)
	barsA.Color = plotutil.Color(1)
	barsA.Offset = w / 2

	p.Add(barsH, barsA)
	p.Legend.Add(explain.CohortHealthy, barsH)
	p.Legend.Add(explain.CohortAbnormal, barsA)
	p.Legend.Top = true
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1
	return p, nil
}

// WritePNG renders the importance plot of ft as PNG into w.
func WritePNG(ft *explain.FeatureTable, n int, w io.Writer) error {
	p, err := ImportancePlot(ft, n)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.Wrap(err, "failed to render plot")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write plot")
	}
	return nil
}

// PlotImportance saves the importance plot of the top DefaultPlotFeatures
// features to path as PNG.
func PlotImportance(ft *explain.FeatureTable, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	return WritePNG(ft, DefaultPlotFeatures, f)
}
