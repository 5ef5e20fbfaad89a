package preprocessing

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clinicalCSV = `Género,edad,ATPII/AHA/IDF,aleator,Phe,HOMA-IR alterado
M,12,no,Control,50.5,No
F,14,si,PKU 1,600,Si
F,11,no,PKU 2,NA,No
M,15,no,Control,45,No
F,13,si,PKU 1,720,Si
M,10,no,PKU 2,380,No
`

func seedPtr(s uint64) *uint64 { return &s }

// syntheticTable returns n rows with two numeric features and the first
// positives rows labelled Si.
func syntheticTable(t *testing.T, n, positives int) *Table {
	t.Helper()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		label := "No"
		if i < positives {
			label = "Si"
		}
		rows[i] = []string{fmt.Sprint(i), fmt.Sprint(float64(i) / 10), label}
	}
	table, err := NewTable([]string{"x1", "x2", DefaultTarget}, rows)
	require.NoError(t, err)
	return table
}

func newTestPreprocessor(testSize float64, removed []string, seed uint64) *Preprocessor {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return NewPreprocessor(DefaultTarget, testSize, removed, seedPtr(seed)).WithLogger(logger)
}

func TestProcessScenario(t *testing.T) {
	table := syntheticTable(t, 100, 20)

	split, err := newTestPreprocessor(0.3, nil, 42).Process(table)
	require.NoError(t, err)

	rTest, cTest := split.XTest.Dims()
	rTrain, _ := split.XTrain.Dims()
	assert.Equal(t, 30, rTest)
	assert.Equal(t, 70, rTrain)
	assert.Equal(t, 2, cTest)
	assert.Equal(t, []string{"x1", "x2"}, split.FeatureNames)

	var positives float64
	for i := 0; i < split.YTest.Len(); i++ {
		positives += split.YTest.AtVec(i)
	}
	assert.InDelta(t, 6, positives, 1, "test class ratio within one row of 80/20")
}

func TestProcessPartition(t *testing.T) {
	for _, tc := range []struct {
		n, positives int
		testSize     float64
	}{
		{100, 20, 0.3},
		{57, 11, 0.25},
		{31, 9, 0.5},
		{10, 3, 0.2},
	} {
		for seed := uint64(0); seed < 5; seed++ {
			t.Run(fmt.Sprintf("n=%d/test=%v/seed=%d", tc.n, tc.testSize, seed), func(t *testing.T) {
				split, err := newTestPreprocessor(tc.testSize, nil, seed).Process(syntheticTable(t, tc.n, tc.positives))
				require.NoError(t, err)

				assert.Equal(t, tc.n, len(split.TrainIndex)+len(split.TestIndex))
				seen := map[int]bool{}
				for _, idx := range append(append([]int{}, split.TrainIndex...), split.TestIndex...) {
					assert.False(t, seen[idx], "row %d in both partitions", idx)
					seen[idx] = true
				}
				assert.Len(t, seen, tc.n)

				// rows stay aligned with their labels: x1 is the row number
				for i, idx := range split.TestIndex {
					assert.Equal(t, float64(idx), split.XTest.At(i, 0))
					assert.Equal(t, boolLabel(idx < tc.positives), split.YTest.AtVec(i))
				}

				// stratification within single-row rounding
				ratio := float64(tc.positives) / float64(tc.n)
				for _, part := range []struct {
					name string
					idx  []int
				}{{"train", split.TrainIndex}, {"test", split.TestIndex}} {
					var pos int
					for _, idx := range part.idx {
						if idx < tc.positives {
							pos++
						}
					}
					want := ratio * float64(len(part.idx))
					assert.LessOrEqual(t, math.Abs(float64(pos)-want), 1.0, part.name)
				}
			})
		}
	}
}

func boolLabel(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func TestProcessDeterministic(t *testing.T) {
	table := syntheticTable(t, 60, 15)

	a, err := newTestPreprocessor(0.3, nil, 7).Process(table)
	require.NoError(t, err)
	b, err := newTestPreprocessor(0.3, nil, 7).Process(table)
	require.NoError(t, err)
	assert.Equal(t, a.TestIndex, b.TestIndex)
	assert.Equal(t, a.XTrain.RawMatrix().Data, b.XTrain.RawMatrix().Data)

	c, err := newTestPreprocessor(0.3, nil, 8).Process(table)
	require.NoError(t, err)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestProcessSeedless(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	p := NewPreprocessor(DefaultTarget, 0.3, nil, nil).WithLogger(logger)

	split, err := p.Process(syntheticTable(t, 40, 10))
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("no seed configured"))
	assert.True(t, logger.ContainsField(log.RandomSeedKey, float64(split.Seed)))
}

func TestProcessEncodesClinicalColumns(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(clinicalCSV))
	require.NoError(t, err)

	split, err := newTestPreprocessor(0.5, []string{"edad"}, 1).Process(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Género", "ATPII/AHA/IDF", "aleator", "Phe"}, split.FeatureNames)

	// reassemble rows by source index to check the codes
	codes := map[int][]float64{}
	for i, idx := range split.TrainIndex {
		codes[idx] = split.XTrain.RawRowView(i)
	}
	for i, idx := range split.TestIndex {
		codes[idx] = split.XTest.RawRowView(i)
	}
	assert.Equal(t, []float64{0, 0, 0, 50.5}, codes[0])
	assert.Equal(t, []float64{1, 1, 1, 600}, codes[1])
	assert.Equal(t, 2.0, codes[2][2])
	assert.True(t, math.IsNaN(codes[2][3]), "NA becomes NaN")
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		target  string
		removed []string
		size    float64
		column  string
	}{
		{
			name:    "unknown removed feature",
			csv:     clinicalCSV,
			removed: []string{"peso"},
			size:    0.5,
			column:  "peso",
		},
		{
			name:   "missing target",
			csv:    clinicalCSV,
			target: "HOMA",
			size:   0.5,
			column: "HOMA",
		},
		{
			name:   "unknown category",
			csv:    strings.Replace(clinicalCSV, "PKU 2,NA", "PKU 3,NA", 1),
			size:   0.5,
			column: "aleator",
		},
		{
			name:   "unknown target label",
			csv:    strings.Replace(clinicalCSV, "380,No", "380,Maybe", 1),
			size:   0.5,
			column: DefaultTarget,
		},
		{
			name:   "non numeric feature",
			csv:    strings.Replace(clinicalCSV, "50.5", "high", 1),
			size:   0.5,
			column: "Phe",
		},
		{
			name: "test size out of range",
			csv:  clinicalCSV,
			size: 1.0,
		},
		{
			name: "test size leaves no test row per class",
			csv:  clinicalCSV,
			size: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)

			p := newTestPreprocessor(tt.size, tt.removed, 1)
			if tt.target != "" {
				p.Target = tt.target
			}
			_, err = p.Process(table)
			require.Error(t, err)

			var dataErr *errors.DataError
			require.True(t, errors.As(err, &dataErr), "want DataError, got %v", err)
			if tt.column != "" {
				assert.Equal(t, tt.column, dataErr.Column)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	t.Run("bom and spaces", func(t *testing.T) {
		table, err := ParseCSV(strings.NewReader("\ufeffa, b\n1, 2\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns())
		v, err := table.Float64s("b")
		require.NoError(t, err)
		assert.Equal(t, []float64{2}, v)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		var dataErr *errors.DataError
		assert.True(t, errors.As(err, &dataErr))
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("a,b\n1\n"))
		var dataErr *errors.DataError
		assert.True(t, errors.As(err, &dataErr))
	})

	t.Run("duplicate column", func(t *testing.T) {
		_, err := NewTable([]string{"a", "a"}, nil)
		assert.Error(t, err)
	})
}

func TestCategoryMapLabels(t *testing.T) {
	assert.Equal(t, []string{"Control", "PKU 1", "PKU 2"}, ArmMap.Labels())
	assert.Equal(t, []string{"No", "Si"}, TargetMap(DefaultTarget).Labels())

	v, err := SexMap.Encode(" ", 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}
