package gbdt

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// rtEps is the smallest loss reduction accepted as a split.
const rtEps = 1e-6

// Train boosts up to numBoostRound trees on dtrain.
//
// After every round each eval set is scored with the configured eval_metric and
// recorded in Booster.EvalHistory. When earlyStoppingRounds > 0 the last eval set is
// monitored; training stops once it has not improved for that many rounds. The
// booster keeps every boosted tree and records the best round in BestIteration and
// BestScore; with Params.SaveBest it is truncated to the best round instead.
func Train(params Params, dtrain *DMatrix, numBoostRound int, evals []EvalSet, earlyStoppingRounds int, callbacks ...Callback) (*Booster, error) {
	const op = "Train"

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dtrain == nil || dtrain.NumRow() == 0 {
		return nil, errors.NewTrainingError(op, -1, errors.WithStack(errors.ErrEmptyData))
	}
	if numBoostRound < 1 {
		return nil, errors.NewTrainingError(op, -1, errors.Newf("num_boost_round must be >= 1, got %d", numBoostRound))
	}
	if earlyStoppingRounds > 0 && len(evals) == 0 {
		return nil, errors.NewTrainingError(op, -1, errors.New("early stopping requires at least one eval set"))
	}
	for _, ev := range evals {
		if ev.Data == nil || ev.Data.NumRow() == 0 {
			return nil, errors.NewTrainingError(op, -1, errors.Newf("eval set %q is empty", ev.Name))
		}
		if ev.Data.NumCol() != dtrain.NumCol() {
			return nil, errors.NewTrainingError(op, -1,
				errors.NewDimensionError(op, dtrain.NumCol(), ev.Data.NumCol(), 1))
		}
	}

	obj, err := newObjective(params.Objective)
	if err != nil {
		return nil, errors.NewTrainingError(op, -1, err)
	}
	if obj.Binary() {
		if err := checkBinaryLabels(dtrain); err != nil {
			return nil, errors.NewTrainingError(op, -1, err)
		}
	}
	metric, err := newMetric(params.metricName())
	if err != nil {
		return nil, errors.NewTrainingError(op, -1, err)
	}

	logger := log.GetLoggerWithName("gbdt.trainer")
	if logger.Enabled(context.Background(), log.LevelDebug) {
		callbacks = append([]Callback{LogEvaluation(logger, 10)}, callbacks...)
	}

	nRows, nCols := dtrain.X.Dims()
	base := obj.BaseMargin(params.BaseScore)
	booster := &Booster{
		BaseScore:     params.BaseScore,
		Objective:     params.Objective,
		FeatureNames:  dtrain.FeatureNames,
		NumFeatures:   nCols,
		Params:        params,
		BestIteration: -1,
		BestScore:     math.NaN(),
		EvalHistory:   make(map[string]map[string][]float64, len(evals)),
	}

	trainMargin := filled(nRows, base)
	evalMargins := make([][]float64, len(evals))
	for i, ev := range evals {
		evalMargins[i] = filled(ev.Data.NumRow(), base)
		booster.EvalHistory[ev.Name] = map[string][]float64{}
	}

	rng := rand.New(rand.NewPCG(params.Seed, params.Seed))
	es := NewEarlyStopping(earlyStoppingRounds, metric.name)
	grad := make([]float64, nRows)
	hess := make([]float64, nRows)
	begin := time.Now()

	for iter := 0; iter < numBoostRound; iter++ {
		for i := 0; i < nRows; i++ {
			label := dtrain.Label.AtVec(i)
			g, h := obj.Gradient(trainMargin[i], label)
			w := 1.0
			if obj.Binary() && label == 1 {
				w = params.ScalePosWeight
			}
			grad[i], hess[i] = g*w, h*w
		}

		b := &treeBuilder{
			X:        dtrain.X,
			grad:     grad,
			hess:     hess,
			params:   params,
			features: sampleColumns(rng, nCols, params.ColsampleTree),
		}
		tree := b.build(sampleRows(rng, nRows, params.Subsample))
		booster.Trees = append(booster.Trees, tree)

		addTree(&tree, dtrain.X, trainMargin)

		env := &CallbackEnv{
			Iteration:   iter,
			NumTrees:    len(booster.Trees),
			BeginTime:   begin,
			EvalResults: make(map[string]float64, len(evals)),
		}
		var monitored float64
		for i, ev := range evals {
			addTree(&tree, ev.Data.X, evalMargins[i])
			score, err := evaluate(metric, obj, ev.Data, evalMargins[i])
			if err != nil {
				return nil, errors.NewTrainingError(op, -1, errors.Wrapf(err, "evaluating %q at round %d", ev.Name, iter))
			}
			booster.EvalHistory[ev.Name][metric.name] = append(booster.EvalHistory[ev.Name][metric.name], score)
			env.EvalResults[ev.Name+"-"+metric.name] = score
			monitored = score
		}

		for _, cb := range callbacks {
			if err := cb(env); err != nil {
				return nil, errors.NewTrainingError(op, -1, errors.Wrapf(err, "callback at round %d", iter))
			}
		}

		if len(evals) > 0 {
			booster.BestScore = monitored
		}
		es.Update(iter, monitored)
		if es.ShouldStop() || env.StopTraining {
			break
		}
	}

	boosted := len(booster.Trees)
	if es.Enabled && es.BestIteration >= 0 {
		booster.BestIteration = es.BestIteration
		booster.BestScore = es.BestScore
		if params.SaveBest {
			booster.Trees = booster.Trees[:es.BestIteration+1]
		}
	}

	logger.Debug("boosting finished",
		log.IterationKey, boosted,
		log.TreesKey, len(booster.Trees),
		log.BestIterationKey, booster.BestIteration,
		log.MetricKey, metric.name,
		log.ScoreKey, booster.BestScore,
		log.DurationMsKey, time.Since(begin).Milliseconds(),
	)
	return booster, nil
}

func checkBinaryLabels(d *DMatrix) error {
	counts := d.labelCounts()
	for label := range counts {
		if label != 0 && label != 1 {
			return errors.Newf("binary objective needs 0/1 labels, found %v", label)
		}
	}
	if len(counts) < 2 {
		return errors.New("training labels contain a single class")
	}
	return nil
}

func evaluate(m evalMetric, obj objective, d *DMatrix, margin []float64) (float64, error) {
	preds := mat.NewVecDense(len(margin), nil)
	for i, v := range margin {
		preds.SetVec(i, obj.Transform(v))
	}
	return m.eval(d.Label, preds)
}

func addTree(t *Tree, X *mat.Dense, margin []float64) {
	for i := range margin {
		margin[i] += t.Predict(X.RawRowView(i))
	}
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// sampleRows keeps each row with probability ratio; at least one row is kept.
func sampleRows(rng *rand.Rand, n int, ratio float64) []int {
	rows := make([]int, 0, n)
	if ratio >= 1 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
		return rows
	}
	for i := 0; i < n; i++ {
		if rng.Float64() < ratio {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.IntN(n))
	}
	return rows
}

// sampleColumns draws max(1, ratio*n) features without replacement, in ascending order.
func sampleColumns(rng *rand.Rand, n int, ratio float64) []int {
	k := n
	if ratio < 1 {
		k = max(1, int(math.Floor(ratio*float64(n))))
	}
	var cols []int
	if k == n {
		cols = make([]int, n)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols = rng.Perm(n)[:k]
	sort.Ints(cols)
	return cols
}

// treeBuilder grows one tree with the exact greedy algorithm.
type treeBuilder struct {
	X        *mat.Dense
	grad     []float64
	hess     []float64
	params   Params
	features []int
	nodes    []Node
}

type splitCandidate struct {
	ok          bool
	feature     int
	threshold   float64
	defaultLeft bool
	gain        float64
}

func (b *treeBuilder) build(rows []int) Tree {
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var G, H float64
	for _, r := range rows {
		G += b.grad[r]
		H += b.hess[r]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{LeftChild: -1, RightChild: -1, Cover: H})

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		b.nodes[id].LeafValue = b.leafWeight(G, H)
		return id
	}

	best := b.findSplit(rows, G, H)
	if !best.ok || best.gain <= rtEps || best.gain < b.params.Gamma {
		b.nodes[id].LeafValue = b.leafWeight(G, H)
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		v := b.X.At(r, best.feature)
		if (math.IsNaN(v) && best.defaultLeft) || v < best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	rgt := b.grow(right, depth+1)

	n := &b.nodes[id]
	n.LeftChild = l
	n.RightChild = rgt
	n.SplitFeature = best.feature
	n.Threshold = best.threshold
	n.DefaultLeft = best.defaultLeft
	n.Gain = best.gain
	return id
}

// leafWeight is the regularised Newton step scaled by eta; nodes below
// min_child_weight output 0.
func (b *treeBuilder) leafWeight(G, H float64) float64 {
	if H < b.params.MinChildWeight || H+b.params.Lambda == 0 {
		return 0
	}
	return -G / (H + b.params.Lambda) * b.params.Eta
}

func (b *treeBuilder) score(G, H float64) float64 {
	if H+b.params.Lambda == 0 {
		return 0
	}
	return G * G / (H + b.params.Lambda)
}

func (b *treeBuilder) findSplit(rows []int, G, H float64) splitCandidate {
	type entry struct {
		value float64
		row   int
	}

	best := splitCandidate{gain: math.Inf(-1)}
	parent := b.score(G, H)
	minChild := b.params.MinChildWeight
	entries := make([]entry, 0, len(rows))

	for _, f := range b.features {
		entries = entries[:0]
		var gMiss, hMiss float64
		for _, r := range rows {
			v := b.X.At(r, f)
			if math.IsNaN(v) {
				gMiss += b.grad[r]
				hMiss += b.hess[r]
				continue
			}
			entries = append(entries, entry{value: v, row: r})
		}
		if len(entries) < 2 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

		var gl, hl float64
		for i := 0; i < len(entries)-1; i++ {
			gl += b.grad[entries[i].row]
			hl += b.hess[entries[i].row]
			lo, hi := entries[i].value, entries[i+1].value
			if lo == hi {
				continue
			}

			// Missing values right, then left.
			for _, missLeft := range [2]bool{false, true} {
				gL, hL := gl, hl
				if missLeft {
					gL += gMiss
					hL += hMiss
				}
				gR, hR := G-gL, H-hL
				if hL < minChild || hR < minChild {
					continue
				}
				gain := b.score(gL, hL) + b.score(gR, hR) - parent
				if gain > best.gain {
					threshold := lo + (hi-lo)/2
					if !(lo < threshold) {
						threshold = hi
					}
					best = splitCandidate{
						ok:          true,
						feature:     f,
						threshold:   threshold,
						defaultLeft: missLeft,
						gain:        gain,
					}
				}
			}
		}
	}
	return best
}
