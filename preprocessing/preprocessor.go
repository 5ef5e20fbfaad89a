package preprocessing

import (
	"time"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Split は層化分割後の特徴量行列とラベル
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense

	// TrainIndex, TestIndex は元テーブルの行番号（0始まり、昇順）
	TrainIndex, TestIndex []int

	// FeatureNames は XTrain/XTest の列名
	FeatureNames []string

	// Seed は実際に使用した乱数シード
	Seed uint64
}

// Preprocessor はテーブルを学習用の行列に変換する
//
// 処理の流れ:
//  1. 目的変数を TargetMap でエンコード
//  2. RemovedFeatures を除外
//  3. CategoryMaps の列をエンコードし、それ以外を数値として読み込む
//  4. 目的変数で層化して訓練/テストに分割
type Preprocessor struct {
	// Target は目的変数の列名
	Target string

	// TestSize はテストに回す割合 (0, 1)
	TestSize float64

	// RemovedFeatures は除外する特徴量の列名
	RemovedFeatures []string

	// Seed が nil の場合は時刻からシードを生成し、ログに残す
	Seed *uint64

	// CategoryMaps は名義変数のエンコーディング。nil なら DefaultCategoryMaps。
	// テーブルに存在しない列のマップは無視される。
	CategoryMaps []CategoryMap

	logger log.Logger
}

// NewPreprocessor は既定のエンコーディングでPreprocessorを作成する
//
// 使用例:
//
//	seed := uint64(42)
//	p := preprocessing.NewPreprocessor(preprocessing.DefaultTarget, 0.3, []string{"id"}, &seed)
//	split, err := p.Process(table)
func NewPreprocessor(target string, testSize float64, removed []string, seed *uint64) *Preprocessor {
	return &Preprocessor{
		Target:          target,
		TestSize:        testSize,
		RemovedFeatures: removed,
		Seed:            seed,
		CategoryMaps:    DefaultCategoryMaps(),
		logger:          log.GetLoggerWithName("preprocessing"),
	}
}

// WithLogger はロガーを差し替える
func (p *Preprocessor) WithLogger(l log.Logger) *Preprocessor {
	p.logger = l
	return p
}

// Process はテーブルをエンコードして層化分割する
//
// 戻り値:
//   - *Split: 分割結果
//   - error: 列の欠落、未知のカテゴリ、数値でないセル、分割不能な場合 DataError
func (p *Preprocessor) Process(t *Table) (*Split, error) {
	const op = "Preprocessor.Process"
	logger := p.logger
	if logger == nil {
		logger = log.GetLoggerWithName("preprocessing")
	}

	if t == nil || t.NumRows() == 0 {
		return nil, errors.NewDataError(op, "", "table has no rows")
	}
	if !t.HasColumn(p.Target) {
		return nil, errors.NewDataError(op, p.Target, "target column not found")
	}

	removed := make(map[string]bool, len(p.RemovedFeatures))
	for _, name := range p.RemovedFeatures {
		if name == p.Target || !t.HasColumn(name) {
			return nil, errors.NewDataError(op, name, "removed feature not found in table")
		}
		removed[name] = true
	}

	targetValues, err := t.Column(p.Target)
	if err != nil {
		return nil, err
	}
	y := make([]float64, len(targetValues))
	targetMap := TargetMap(p.Target)
	for i, v := range targetValues {
		if IsNA(v) {
			return nil, errors.NewDataErrorf(op, p.Target, "row %d: missing target", i+1)
		}
		if y[i], err = targetMap.Encode(v, i+1); err != nil {
			return nil, err
		}
	}

	maps := p.CategoryMaps
	if maps == nil {
		maps = DefaultCategoryMaps()
	}
	byColumn := make(map[string]CategoryMap, len(maps))
	for _, m := range maps {
		byColumn[m.Column] = m
	}

	var features []string
	var columns [][]float64
	for _, name := range t.Columns() {
		if name == p.Target || removed[name] {
			continue
		}
		var values []float64
		if m, ok := byColumn[name]; ok {
			raw, err := t.Column(name)
			if err != nil {
				return nil, err
			}
			values, err = m.EncodeColumn(raw)
			if err != nil {
				return nil, err
			}
		} else {
			values, err = t.Float64s(name)
			if err != nil {
				return nil, err
			}
		}
		features = append(features, name)
		columns = append(columns, values)
	}
	if len(features) == 0 {
		return nil, errors.NewDataError(op, "", "no feature columns left after removal")
	}

	var seed uint64
	if p.Seed != nil {
		seed = *p.Seed
	} else {
		seed = uint64(time.Now().UnixNano())
		logger.Info("no seed configured, drew one from the clock", log.RandomSeedKey, seed)
	}

	trainIdx, testIdx, err := TrainTestSplit(y, p.TestSize, seed)
	if err != nil {
		return nil, err
	}

	split := &Split{
		TrainIndex:   trainIdx,
		TestIndex:    testIdx,
		FeatureNames: features,
		Seed:         seed,
	}
	split.XTrain, split.YTrain = gather(columns, y, trainIdx)
	split.XTest, split.YTest = gather(columns, y, testIdx)

	logger.Info("dataset split",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, t.NumRows(),
		log.FeaturesKey, len(features),
		"split.train", len(trainIdx),
		"split.test", len(testIdx),
		log.PositiveRateKey, positiveRate(split.YTest),
		log.RandomSeedKey, seed,
	)
	return split, nil
}

func gather(columns [][]float64, y []float64, rows []int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(len(rows), len(columns), nil)
	labels := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		for j, col := range columns {
			X.Set(i, j, col[r])
		}
		labels.SetVec(i, y[r])
	}
	return X, labels
}

func positiveRate(y *mat.VecDense) float64 {
	if y.Len() == 0 {
		return 0
	}
	return mat.Sum(y) / float64(y.Len())
}
