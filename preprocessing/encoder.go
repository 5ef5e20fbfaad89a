package preprocessing

import (
	"math"
	"sort"

	"github.com/DeepenData/pkuir/pkg/errors"
)

// CategoryMap は名義変数のラベルを整数コードへ写す閉じた列挙
//
// 辞書にない値は黙って欠損にせず DataError として拒否する。
type CategoryMap struct {
	// Column は対象の列名
	Column string

	// Codes はラベル → コードの対応
	Codes map[string]float64
}

// 臨床データセットの固定エンコーディング
var (
	// SexMap は性別（M/F）のエンコーディング
	SexMap = CategoryMap{Column: "Género", Codes: map[string]float64{"M": 0, "F": 1}}

	// CriteriaMap はメタボリックシンドローム診断基準フラグのエンコーディング
	CriteriaMap = CategoryMap{Column: "ATPII/AHA/IDF", Codes: map[string]float64{"no": 0, "si": 1}}

	// ArmMap は試験群のエンコーディング
	ArmMap = CategoryMap{Column: "aleator", Codes: map[string]float64{"Control": 0, "PKU 1": 1, "PKU 2": 2}}
)

// DefaultTarget は目的変数の既定の列名
const DefaultTarget = "HOMA-IR alterado"

// TargetMap は目的変数（No/Si）のエンコーディングを返す
func TargetMap(column string) CategoryMap {
	return CategoryMap{Column: column, Codes: map[string]float64{"No": 0, "Si": 1}}
}

// DefaultCategoryMaps は特徴量の固定エンコーディング一覧を返す
func DefaultCategoryMaps() []CategoryMap {
	return []CategoryMap{SexMap, CriteriaMap, ArmMap}
}

// Encode は1つの値をコードに変換する。欠損値は NaN になる。
//
// パラメータ:
//   - value: セルの値
//   - row: エラーメッセージ用の行番号（1始まり）
//
// 戻り値:
//   - float64: コード
//   - error: 辞書にない値の場合 DataError
func (m CategoryMap) Encode(value string, row int) (float64, error) {
	if IsNA(value) {
		return math.NaN(), nil
	}
	code, ok := m.Codes[value]
	if !ok {
		return 0, errors.NewDataErrorf("CategoryMap.Encode", m.Column,
			"row %d: unknown category %q (known: %v)", row, value, m.Labels())
	}
	return code, nil
}

// EncodeColumn は列全体をエンコードする
func (m CategoryMap) EncodeColumn(values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		code, err := m.Encode(v, i+1)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// Labels はコード順に並べたラベル一覧を返す
func (m CategoryMap) Labels() []string {
	labels := make([]string, 0, len(m.Codes))
	for l := range m.Codes {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		ci, cj := m.Codes[labels[i]], m.Codes[labels[j]]
		if ci != cj {
			return ci < cj
		}
		return labels[i] < labels[j]
	})
	return labels
}
