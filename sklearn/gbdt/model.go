package gbdt

import (
	"math"
	"strconv"

	"github.com/DeepenData/pkuir/core"
	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ core.MarginPredictor = (*Booster)(nil)

// Node is a single node of a regression tree.
type Node struct {
	LeftChild  int // -1 for leaves
	RightChild int // -1 for leaves

	// Split information (internal nodes)
	SplitFeature int
	Threshold    float64
	DefaultLeft  bool    // direction of NaN values
	Gain         float64 // loss reduction of the split

	// LeafValue is the leaf output, learning rate included.
	LeafValue float64

	// Cover is the sum of hessians of the training rows reaching this node.
	Cover float64
}

// IsLeaf returns true if the node has no children.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one member of the ensemble.
type Tree struct {
	Nodes []Node
}

// next returns the child that a row with the given feature values is routed to.
func (t *Tree) next(node *Node, row []float64) int {
	v := row[node.SplitFeature]
	if math.IsNaN(v) {
		if node.DefaultLeft {
			return node.LeftChild
		}
		return node.RightChild
	}
	if v < node.Threshold {
		return node.LeftChild
	}
	return node.RightChild
}

// Predict returns the leaf value reached by row.
func (t *Tree) Predict(row []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue
		}
		id = t.next(node, row)
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.LeftChild), walk(n.RightChild))
	}
	return walk(0)
}

// Booster is a trained ensemble. It is read-only after Train returns and is
// gob-serialisable through core/model.
type Booster struct {
	Trees        []Tree
	BaseScore    float64 // probability-space base score
	Objective    string
	FeatureNames []string
	NumFeatures  int
	Params       Params

	// BestIteration is the zero-based round with the best monitored score, or -1
	// when training ran without early stopping.
	BestIteration int
	BestScore     float64

	// EvalHistory maps eval set name -> metric name -> score per round.
	EvalHistory map[string]map[string][]float64
}

// NumTrees returns the number of trees in the ensemble.
func (b *Booster) NumTrees() int {
	return len(b.Trees)
}

// BaseMargin returns the base score converted to margin space.
func (b *Booster) BaseMargin() float64 {
	obj, err := newObjective(b.Objective)
	if err != nil {
		return b.BaseScore
	}
	return obj.BaseMargin(b.BaseScore)
}

// PredictMargin returns the raw ensemble output of every row of X.
func (b *Booster) PredictMargin(X mat.Matrix) (*mat.VecDense, error) {
	if err := b.checkInput("PredictMargin", X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	base := b.BaseMargin()
	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, b.predictRowMargin(row, base))
	}
	return out, nil
}

// PredictProba returns the objective's transformed output of every row of X:
// the probability of class 1 for binary:logistic.
func (b *Booster) PredictProba(X mat.Matrix) (*mat.VecDense, error) {
	margin, err := b.PredictMargin(X)
	if err != nil {
		return nil, err
	}
	obj, err := newObjective(b.Objective)
	if err != nil {
		return nil, errors.Wrap(err, "PredictProba")
	}
	for i := 0; i < margin.Len(); i++ {
		margin.SetVec(i, obj.Transform(margin.AtVec(i)))
	}
	return margin, nil
}

func (b *Booster) predictRowMargin(row []float64, base float64) float64 {
	sum := base
	for i := range b.Trees {
		sum += b.Trees[i].Predict(row)
	}
	return sum
}

func (b *Booster) checkInput(op string, X mat.Matrix) error {
	if b == nil || len(b.Trees) == 0 {
		return errors.NewNotFittedError("gbdt.Booster", op)
	}
	if X == nil {
		return errors.NewValueError(op, "nil matrix")
	}
	_, cols := X.Dims()
	if cols != b.NumFeatures {
		return errors.NewDimensionError(op, b.NumFeatures, cols, 1)
	}
	return nil
}

// FeatureName returns the name of feature i, or "f<i>" when the booster was
// trained without names.
func (b *Booster) FeatureName(i int) string {
	if i < len(b.FeatureNames) && b.FeatureNames[i] != "" {
		return b.FeatureNames[i]
	}
	return "f" + strconv.Itoa(i)
}
