package gbdt

import (
	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DMatrix bundles a feature matrix with its labels.
type DMatrix struct {
	X            *mat.Dense
	Label        *mat.VecDense
	FeatureNames []string
}

// EvalSet is a named dataset evaluated after every boosting round.
type EvalSet struct {
	Name string
	Data *DMatrix
}

// NewDMatrix validates shapes and wraps X and y. featureNames may be nil.
func NewDMatrix(X mat.Matrix, y *mat.VecDense, featureNames []string) (*DMatrix, error) {
	if X == nil || y == nil {
		return nil, errors.NewValueError("NewDMatrix", "nil input")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if y.Len() != rows {
		return nil, errors.NewDimensionError("NewDMatrix", rows, y.Len(), 0)
	}
	if featureNames != nil && len(featureNames) != cols {
		return nil, errors.NewDimensionError("NewDMatrix", cols, len(featureNames), 1)
	}
	return &DMatrix{X: mat.DenseCopyOf(X), Label: mat.VecDenseCopyOf(y), FeatureNames: featureNames}, nil
}

// NumRow returns the number of rows.
func (d *DMatrix) NumRow() int {
	r, _ := d.X.Dims()
	return r
}

// NumCol returns the number of features.
func (d *DMatrix) NumCol() int {
	_, c := d.X.Dims()
	return c
}

// Slice returns the rows at indices, in order.
func (d *DMatrix) Slice(indices []int) *DMatrix {
	if len(indices) == 0 {
		return &DMatrix{X: &mat.Dense{}, Label: &mat.VecDense{}, FeatureNames: d.FeatureNames}
	}
	X := mat.NewDense(len(indices), d.NumCol(), nil)
	y := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		X.SetRow(i, d.X.RawRowView(idx))
		y.SetVec(i, d.Label.AtVec(idx))
	}
	return &DMatrix{X: X, Label: y, FeatureNames: d.FeatureNames}
}

// labelCounts returns the number of rows per label value.
func (d *DMatrix) labelCounts() map[float64]int {
	counts := make(map[float64]int)
	for i := 0; i < d.Label.Len(); i++ {
		counts[d.Label.AtVec(i)]++
	}
	return counts
}
