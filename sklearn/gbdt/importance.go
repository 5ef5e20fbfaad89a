package gbdt

// ImportanceType selects the statistic returned by Booster.Score.
type ImportanceType string

const (
	// ImportanceWeight is the number of splits using the feature.
	ImportanceWeight ImportanceType = "weight"
	// ImportanceGain is the mean loss reduction of the feature's splits.
	ImportanceGain ImportanceType = "gain"
	// ImportanceCover is the mean cover of the feature's splits.
	ImportanceCover ImportanceType = "cover"
	// ImportanceTotalGain is the summed loss reduction of the feature's splits.
	ImportanceTotalGain ImportanceType = "total_gain"
	// ImportanceTotalCover is the summed cover of the feature's splits.
	ImportanceTotalCover ImportanceType = "total_cover"
)

// Score returns the importance of every feature used in at least one split,
// keyed by feature name. Features never used are absent from the map.
func (b *Booster) Score(kind ImportanceType) map[string]float64 {
	splits := make(map[int]float64)
	gain := make(map[int]float64)
	cover := make(map[int]float64)

	for t := range b.Trees {
		for _, n := range b.Trees[t].Nodes {
			if n.IsLeaf() {
				continue
			}
			splits[n.SplitFeature]++
			gain[n.SplitFeature] += n.Gain
			cover[n.SplitFeature] += n.Cover
		}
	}

	out := make(map[string]float64, len(splits))
	for f, count := range splits {
		var v float64
		switch kind {
		case ImportanceGain:
			v = gain[f] / count
		case ImportanceCover:
			v = cover[f] / count
		case ImportanceTotalGain:
			v = gain[f]
		case ImportanceTotalCover:
			v = cover[f]
		default:
			v = count
		}
		out[b.FeatureName(f)] = v
	}
	return out
}
