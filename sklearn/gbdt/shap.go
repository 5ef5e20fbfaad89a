package gbdt

import (
	"github.com/DeepenData/pkuir/core/parallel"
	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// shapParallelThreshold is the row count above which rows are explained concurrently.
const shapParallelThreshold = 64

// SHAPValues holds per-row feature attributions in margin space.
type SHAPValues struct {
	Values        *mat.Dense // rows x features
	ExpectedValue float64
	FeatureNames  []string
}

// TreeSHAP computes exact path-dependent SHAP values for a Booster.
//
// For every row, sum(Values[row]) + ExpectedValue equals the booster's margin.
type TreeSHAP struct {
	booster  *Booster
	expected float64
}

// NewTreeSHAP prepares the explainer. It fails if the booster is not fitted.
func NewTreeSHAP(b *Booster) (*TreeSHAP, error) {
	if b == nil || len(b.Trees) == 0 {
		return nil, errors.NewNotFittedError("gbdt.Booster", "TreeSHAP")
	}

	ts := &TreeSHAP{booster: b, expected: b.BaseMargin()}
	for i := range b.Trees {
		ts.expected += coverMean(&b.Trees[i], 0)
	}
	return ts, nil
}

// ExpectedValue returns the cover-weighted mean margin of the ensemble.
func (ts *TreeSHAP) ExpectedValue() float64 {
	return ts.expected
}

// Explain returns SHAP values for every row of X.
func (ts *TreeSHAP) Explain(X mat.Matrix) (*SHAPValues, error) {
	if err := ts.booster.checkInput("TreeSHAP.Explain", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	values := mat.NewDense(rows, cols, nil)

	parallel.ParallelizeWithThreshold(rows, shapParallelThreshold, func(start, end int) {
		row := make([]float64, cols)
		phi := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for j := range phi {
				phi[j] = 0
			}
			for t := range ts.booster.Trees {
				ts.explainTree(&ts.booster.Trees[t], row, phi)
			}
			values.SetRow(i, phi)
		}
	})

	names := make([]string, cols)
	for j := range names {
		names[j] = ts.booster.FeatureName(j)
	}
	return &SHAPValues{Values: values, ExpectedValue: ts.expected, FeatureNames: names}, nil
}

// coverMean returns the cover-weighted mean leaf value below node id.
func coverMean(t *Tree, id int) float64 {
	n := &t.Nodes[id]
	if n.IsLeaf() {
		return n.LeafValue
	}
	l := coverMean(t, n.LeftChild)
	r := coverMean(t, n.RightChild)
	lc, rc := t.Nodes[n.LeftChild].Cover, t.Nodes[n.RightChild].Cover
	if lc+rc == 0 {
		return (l + r) / 2
	}
	return (l*lc + r*rc) / (lc + rc)
}

// pathElement is one feature on the current decision path.
type pathElement struct {
	feature      int
	zeroFraction float64 // share of background rows following this path
	oneFraction  float64 // 1 if the explained row follows it, else 0
	weight       float64 // permutation weight
}

func (ts *TreeSHAP) explainTree(t *Tree, row, phi []float64) {
	ts.recurse(t, 0, row, phi, nil, 0, 1, 1, -1)
}

// recurse follows Algorithm 2 of Lundberg et al., "Consistent Individualized
// Feature Attribution for Tree Ensembles". parent holds the first uniqueDepth
// elements of the caller's path; each call works on its own copy.
func (ts *TreeSHAP) recurse(t *Tree, id int, row, phi []float64, parent []pathElement,
	uniqueDepth int, zeroFraction, oneFraction float64, feature int) {

	m := make([]pathElement, uniqueDepth+1)
	copy(m, parent[:uniqueDepth])
	extendPath(m, uniqueDepth, zeroFraction, oneFraction, feature)

	n := &t.Nodes[id]
	if n.IsLeaf() {
		for i := 1; i <= uniqueDepth; i++ {
			w := unwoundPathSum(m, uniqueDepth, i)
			el := m[i]
			phi[el.feature] += w * (el.oneFraction - el.zeroFraction) * n.LeafValue
		}
		return
	}

	hot := t.next(n, row)
	cold := n.RightChild
	if hot == n.RightChild {
		cold = n.LeftChild
	}
	hotZero, coldZero := 0.0, 0.0
	if n.Cover > 0 {
		hotZero = t.Nodes[hot].Cover / n.Cover
		coldZero = t.Nodes[cold].Cover / n.Cover
	}

	// A feature already on the path is removed and its fractions carried over.
	incomingZero, incomingOne := 1.0, 1.0
	k := 0
	for ; k <= uniqueDepth; k++ {
		if m[k].feature == n.SplitFeature {
			break
		}
	}
	if k <= uniqueDepth {
		incomingZero = m[k].zeroFraction
		incomingOne = m[k].oneFraction
		unwindPath(m, uniqueDepth, k)
		uniqueDepth--
	}

	ts.recurse(t, hot, row, phi, m[:uniqueDepth+1], uniqueDepth+1,
		hotZero*incomingZero, incomingOne, n.SplitFeature)
	ts.recurse(t, cold, row, phi, m[:uniqueDepth+1], uniqueDepth+1,
		coldZero*incomingZero, 0, n.SplitFeature)
}

func extendPath(m []pathElement, uniqueDepth int, zeroFraction, oneFraction float64, feature int) {
	m[uniqueDepth] = pathElement{feature: feature, zeroFraction: zeroFraction, oneFraction: oneFraction}
	if uniqueDepth == 0 {
		m[uniqueDepth].weight = 1
	}
	d := float64(uniqueDepth + 1)
	for i := uniqueDepth - 1; i >= 0; i-- {
		m[i+1].weight += oneFraction * m[i].weight * float64(i+1) / d
		m[i].weight = zeroFraction * m[i].weight * float64(uniqueDepth-i) / d
	}
}

func unwindPath(m []pathElement, uniqueDepth, index int) {
	one := m[index].oneFraction
	zero := m[index].zeroFraction
	next := m[uniqueDepth].weight
	d := float64(uniqueDepth + 1)

	for i := uniqueDepth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := m[i].weight
			m[i].weight = next * d / (float64(i+1) * one)
			next = tmp - m[i].weight*zero*float64(uniqueDepth-i)/d
		} else {
			m[i].weight = m[i].weight * d / (zero * float64(uniqueDepth-i))
		}
	}
	for i := index; i < uniqueDepth; i++ {
		m[i].feature = m[i+1].feature
		m[i].zeroFraction = m[i+1].zeroFraction
		m[i].oneFraction = m[i+1].oneFraction
	}
}

func unwoundPathSum(m []pathElement, uniqueDepth, index int) float64 {
	one := m[index].oneFraction
	zero := m[index].zeroFraction
	next := m[uniqueDepth].weight
	d := float64(uniqueDepth + 1)

	var total float64
	for i := uniqueDepth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next * d / (float64(i+1) * one)
			total += tmp
			next = m[i].weight - tmp*zero*float64(uniqueDepth-i)/d
		} else if zero != 0 {
			total += m[i].weight / zero / (float64(uniqueDepth-i) / d)
		}
	}
	return total
}
