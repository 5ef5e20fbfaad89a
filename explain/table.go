package explain

import "sort"

// FeatureRow is one line of the merged feature table.
type FeatureRow struct {
	Feature      string
	SHAPHealthy  float64
	SHAPAbnormal float64
	Weight       float64
	Coverage     float64
	Gain         float64
}

// FeatureTable ranks features by gain, descending.
type FeatureTable struct {
	Rows []FeatureRow
}

// Merge joins the intrinsic importance onto the cohort mean |SHAP| values by
// feature name. The table has one row per column of the explained matrix;
// values a feature lacks are 0. Importance of a feature outside the explained
// matrix is ignored. Without cohort tables the importance rows define the
// features. Rows are sorted by gain descending, then by feature name.
func Merge(importance []ImportanceRow, healthy, abnormal *SHAPTable) *FeatureTable {
	byName := map[string]*FeatureRow{}
	var order []string
	add := func(name string) {
		if _, ok := byName[name]; !ok {
			byName[name] = &FeatureRow{Feature: name}
			order = append(order, name)
		}
	}

	for _, t := range []*SHAPTable{healthy, abnormal} {
		if t != nil {
			for _, name := range t.FeatureNames {
				add(name)
			}
		}
	}
	if len(order) == 0 {
		for _, imp := range importance {
			add(imp.Feature)
		}
	}

	if healthy != nil {
		for name, v := range healthy.MeanAbs() {
			byName[name].SHAPHealthy = v
		}
	}
	if abnormal != nil {
		for name, v := range abnormal.MeanAbs() {
			byName[name].SHAPAbnormal = v
		}
	}
	for _, imp := range importance {
		if r, ok := byName[imp.Feature]; ok {
			r.Weight = imp.Weight
			r.Coverage = imp.Coverage
			r.Gain = imp.Gain
		}
	}

	table := &FeatureTable{Rows: make([]FeatureRow, 0, len(order))}
	for _, name := range order {
		table.Rows = append(table.Rows, *byName[name])
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.Gain != b.Gain {
			return a.Gain > b.Gain
		}
		return a.Feature < b.Feature
	})
	return table
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// Features returns the feature names in table order.
func (t *FeatureTable) Features() []string {
	names := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		names[i] = r.Feature
	}
	return names
}

// Lookup returns the row of feature, if present.
func (t *FeatureTable) Lookup(feature string) (FeatureRow, bool) {
	for _, r := range t.Rows {
		if r.Feature == feature {
			return r, true
		}
	}
	return FeatureRow{}, false
}
