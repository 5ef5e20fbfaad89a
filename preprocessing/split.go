package preprocessing

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/DeepenData/pkuir/pkg/errors"
)

// TrainTestSplit はラベルで層化した訓練/テストの行インデックスを返す
//
// テスト件数は ceil(testSize·n)。各クラスへの割り当ては最大剰余法で決め、
// 各クラスのテスト件数は比例配分から1行以内に収まる。クラス内の行は
// seed で初期化した PCG で並べ替える。返すインデックスは昇順。
//
// パラメータ:
//   - y: ラベル（各クラス2行以上必要）
//   - testSize: テストの割合 (0, 1)
//   - seed: 乱数シード
//
// 戻り値:
//   - train, test: 互いに素で全行を覆うインデックス
//   - error: testSize が範囲外、または層化できない場合 DataError
func TrainTestSplit(y []float64, testSize float64, seed uint64) (train, test []int, err error) {
	const op = "TrainTestSplit"
	n := len(y)
	if n == 0 {
		return nil, nil, errors.NewDataError(op, "", "no rows to split")
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewDataErrorf(op, "", "test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize*float64(n) - 1e-9))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewDataErrorf(op, "",
			"test size %v on %d rows leaves train=%d test=%d", testSize, n, nTrain, nTest)
	}

	classes := make(map[float64][]int)
	for i, label := range y {
		if math.IsNaN(label) {
			return nil, nil, errors.NewDataErrorf(op, "", "row %d has a missing label", i+1)
		}
		classes[label] = append(classes[label], i)
	}
	labels := make([]float64, 0, len(classes))
	for label, rows := range classes {
		if len(rows) < 2 {
			return nil, nil, errors.NewDataError(op, "",
				fmt.Sprintf("class %v has only %d row, stratified split needs at least 2", label, len(rows)))
		}
		labels = append(labels, label)
	}
	sort.Float64s(labels)
	if nTest < len(labels) || nTrain < len(labels) {
		return nil, nil, errors.NewDataErrorf(op, "",
			"train=%d and test=%d must each hold all %d classes", nTrain, nTest, len(labels))
	}

	counts := make([]int, len(labels))
	for i, label := range labels {
		counts[i] = len(classes[label])
	}
	alloc := allocate(counts, nTest)

	r := rand.New(rand.NewPCG(seed, seed))
	for i, label := range labels {
		rows := classes[label]
		r.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		test = append(test, rows[:alloc[i]]...)
		train = append(train, rows[alloc[i]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// allocate distributes total over classes proportionally to counts using the
// largest remainder method. Ties go to the larger class, then the lower index.
// Callers guarantee len(counts) <= total <= sum(counts)-len(counts).
func allocate(counts []int, total int) []int {
	n := 0
	for _, c := range counts {
		n += c
	}

	alloc := make([]int, len(counts))
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(total) * float64(c) / float64(n)
		alloc[i] = int(math.Floor(exact + 1e-9))
		assigned += alloc[i]
		rems[i] = rem{idx: i, frac: exact - float64(alloc[i])}
	}
	// every class keeps at least one test row
	for i := range alloc {
		if alloc[i] == 0 {
			alloc[i] = 1
			assigned++
		}
	}
	for assigned > total {
		largest := 0
		for i := range alloc {
			if alloc[i] > alloc[largest] {
				largest = i
			}
		}
		alloc[largest]--
		assigned--
	}
	sort.SliceStable(rems, func(a, b int) bool {
		if rems[a].frac != rems[b].frac {
			return rems[a].frac > rems[b].frac
		}
		return counts[rems[a].idx] > counts[rems[b].idx]
	})
	for k := 0; assigned < total; k = (k + 1) % len(rems) {
		i := rems[k].idx
		if alloc[i] < counts[i]-1 {
			alloc[i]++
			assigned++
		}
	}
	return alloc
}
