package gbdt

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/DeepenData/pkuir/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CVFold holds the row indices of one cross-validation fold.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// StratifiedKFold splits rows into NSplits folds preserving the class ratio of y
// in every validation part.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// Split returns NSplits folds whose validation parts partition [0, y.Len()).
// Indices inside each part are ascending.
func (skf *StratifiedKFold) Split(y *mat.VecDense) ([]CVFold, error) {
	if skf.NSplits < 2 {
		return nil, errors.NewValueError("StratifiedKFold.Split", "n_splits must be at least 2")
	}
	if y == nil || y.Len() < skf.NSplits {
		n := 0
		if y != nil {
			n = y.Len()
		}
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("cannot have n_splits=%d greater than the number of samples=%d", skf.NSplits, n))
	}
	nSamples := y.Len()

	// Group indices by class, classes in ascending order.
	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.AtVec(i)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
		for _, label := range labels {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	// Deal each class across folds. The fold receiving the next leftover row
	// carries over between classes so fold sizes differ by at most one.
	assign := make([]int, nSamples)
	next := 0
	for _, label := range labels {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		pos := 0
		for k := 0; k < skf.NSplits; k++ {
			for j := 0; j < foldSize; j++ {
				assign[indices[pos]] = k
				pos++
			}
		}
		for j := 0; j < remainder; j++ {
			assign[indices[pos]] = next
			pos++
			next = (next + 1) % skf.NSplits
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for i := 0; i < nSamples; i++ {
		for k := range folds {
			if assign[i] == k {
				folds[k].TestIndices = append(folds[k].TestIndices, i)
			} else {
				folds[k].TrainIndices = append(folds[k].TrainIndices, i)
			}
		}
	}
	return folds, nil
}

// FoldResult summarises the booster trained on one fold.
type FoldResult struct {
	Fold          int
	TrainRows     int
	ValidRows     int
	NumTrees      int
	BestIteration int
	Metric        string
	BestScore     float64 // monitored validation score
	FitSeconds    float64
}

// CVResult collects the per-fold results of a cross-validated training run.
type CVResult struct {
	Folds  []FoldResult
	Metric string
}

// Scores returns the validation score of every fold.
func (cv *CVResult) Scores() []float64 {
	scores := make([]float64, len(cv.Folds))
	for i, f := range cv.Folds {
		scores[i] = f.BestScore
	}
	return scores
}

// MeanScore returns the mean validation score.
func (cv *CVResult) MeanScore() float64 {
	if len(cv.Folds) == 0 {
		return 0
	}
	return stat.Mean(cv.Scores(), nil)
}

// StdScore returns the sample standard deviation of the validation scores.
func (cv *CVResult) StdScore() float64 {
	if len(cv.Folds) <= 1 {
		return 0
	}
	return stat.StdDev(cv.Scores(), nil)
}

// BestFold returns the index of the fold with the best validation score.
func (cv *CVResult) BestFold() int {
	best := -1
	maximize := Maximize(cv.Metric)
	for i, f := range cv.Folds {
		if best < 0 ||
			(maximize && f.BestScore > cv.Folds[best].BestScore) ||
			(!maximize && f.BestScore < cv.Folds[best].BestScore) {
			best = i
		}
	}
	return best
}
