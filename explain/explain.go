// Package explain turns a trained booster into a ranked feature table combining
// intrinsic tree importance with cohort-wise SHAP attributions.
package explain

import (
	"sort"
	"time"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Cohort names used in the feature table.
const (
	CohortHealthy  = "healthy"
	CohortAbnormal = "abnormal"
)

// ImportanceRow holds the intrinsic scores of one feature.
type ImportanceRow struct {
	Feature  string
	Weight   float64
	Coverage float64
	Gain     float64
}

// Importance returns the intrinsic scores of every feature used by at least one
// split, sorted by gain descending (ties by feature name).
func Importance(b *gbdt.Booster) []ImportanceRow {
	weight := b.Score(gbdt.ImportanceWeight)
	cover := b.Score(gbdt.ImportanceCover)
	gain := b.Score(gbdt.ImportanceGain)

	rows := make([]ImportanceRow, 0, len(weight))
	for name, w := range weight {
		rows = append(rows, ImportanceRow{Feature: name, Weight: w, Coverage: cover[name], Gain: gain[name]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Gain != rows[j].Gain {
			return rows[i].Gain > rows[j].Gain
		}
		return rows[i].Feature < rows[j].Feature
	})
	return rows
}

// SHAPTable holds the per-row SHAP values of one cohort.
type SHAPTable struct {
	Cohort       string
	Label        float64
	FeatureNames []string
	Values       *mat.Dense // nil when the cohort is empty
	Rows         []int      // row of each entry in the explained matrix
}

// MeanAbs returns the mean absolute SHAP value of every feature.
func (t *SHAPTable) MeanAbs() map[string]float64 {
	out := make(map[string]float64, len(t.FeatureNames))
	if t.Values == nil {
		return out
	}
	n, _ := t.Values.Dims()
	col := make([]float64, n)
	for j, name := range t.FeatureNames {
		mat.Col(col, j, t.Values)
		out[name] = floats.Norm(col, 1) / float64(n)
	}
	return out
}

// Explanation is the result of Explainer.Explain.
type Explanation struct {
	Importance    []ImportanceRow
	Healthy       *SHAPTable
	Abnormal      *SHAPTable
	ExpectedValue float64
}

// Explainer computes importance tables and cohort SHAP values.
type Explainer struct {
	logger log.Logger
}

// NewExplainer creates an Explainer logging through the named package logger.
func NewExplainer() *Explainer {
	return &Explainer{logger: log.GetLoggerWithName("explain")}
}

// WithLogger replaces the logger.
func (e *Explainer) WithLogger(l log.Logger) *Explainer {
	e.logger = l
	return e
}

// Explain computes intrinsic importance and SHAP values of X, splitting rows
// into the healthy (y=0) and abnormal (y=1) cohorts.
//
// Labels outside {0, 1}, or a label vector with only one of them, yield an
// UnsupportedCohortError.
func (e *Explainer) Explain(b *gbdt.Booster, X mat.Matrix, y *mat.VecDense) (*Explanation, error) {
	const op = "Explainer.Explain"
	start := time.Now()

	if X == nil || y == nil {
		return nil, errors.NewValueError(op, "nil input")
	}
	rows, _ := X.Dims()
	if y.Len() != rows {
		return nil, errors.NewDimensionError(op, rows, y.Len(), 0)
	}
	if err := checkCohorts(y); err != nil {
		return nil, err
	}

	ts, err := gbdt.NewTreeSHAP(b)
	if err != nil {
		return nil, err
	}
	sv, err := ts.Explain(X)
	if err != nil {
		return nil, err
	}

	exp := &Explanation{
		Importance:    Importance(b),
		Healthy:       cohort(sv, y, 0, CohortHealthy),
		Abnormal:      cohort(sv, y, 1, CohortAbnormal),
		ExpectedValue: sv.ExpectedValue,
	}

	if e.logger != nil {
		e.logger.Info("explanation computed",
			log.OperationKey, log.OperationExplain,
			log.PhaseKey, log.PhaseExplaining,
			log.SamplesKey, rows,
			"cohort.healthy", len(exp.Healthy.Rows),
			"cohort.abnormal", len(exp.Abnormal.Rows),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return exp, nil
}

func checkCohorts(y *mat.VecDense) error {
	seen := map[float64]bool{}
	for i := 0; i < y.Len(); i++ {
		seen[y.AtVec(i)] = true
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	if len(labels) != 2 || !seen[0] || !seen[1] {
		return errors.NewUnsupportedCohortError(labels)
	}
	return nil
}

func cohort(sv *gbdt.SHAPValues, y *mat.VecDense, label float64, name string) *SHAPTable {
	var rows []int
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) == label {
			rows = append(rows, i)
		}
	}
	t := &SHAPTable{Cohort: name, Label: label, FeatureNames: sv.FeatureNames, Rows: rows}
	if len(rows) == 0 {
		return t
	}
	_, cols := sv.Values.Dims()
	t.Values = mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		t.Values.SetRow(i, sv.Values.RawRowView(r))
	}
	return t
}
