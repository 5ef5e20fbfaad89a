package gbdt

import "math"

// EarlyStopping tracks the monitored score and decides when boosting should stop.
type EarlyStopping struct {
	Rounds          int     // rounds without improvement before stopping
	BestScore       float64 // best score so far
	BestIteration   int     // zero-based round of BestScore
	RoundsNoImprove int     // rounds since the last improvement
	Metric          string
	Minimize        bool
	Enabled         bool
}

// NewEarlyStopping creates a handler. rounds <= 0 disables it.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false, BestIteration: -1}
	}

	minimize := !Maximize(metric)
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}

	return &EarlyStopping{
		Rounds:        rounds,
		BestScore:     bestScore,
		BestIteration: -1,
		Metric:        metric,
		Minimize:      minimize,
		Enabled:       true,
	}
}

// Update records the score of iteration.
func (es *EarlyStopping) Update(iteration int, score float64) {
	if !es.Enabled {
		return
	}

	var improved bool
	if es.Minimize {
		improved = score < es.BestScore
	} else {
		improved = score > es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
}

// ShouldStop returns whether the patience is exhausted.
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.RoundsNoImprove >= es.Rounds
}
