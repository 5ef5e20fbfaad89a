package preprocessing

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/DeepenData/pkuir/pkg/errors"
)

// naValues は欠損値として扱う文字列（pandas の既定値に準拠）
var naValues = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"#N/A": {},
}

// IsNA は値が欠損値を表すかどうかを返す
func IsNA(value string) bool {
	_, ok := naValues[strings.TrimSpace(value)]
	return ok
}

// Table はCSVから読み込んだ列名付きの文字列テーブル
//
// 列は名前で参照する。読み込み後は変更されない。
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewTable は列名と行からTableを作成する
//
// パラメータ:
//   - columns: 列名（重複不可）
//   - rows: 各行のセル（列数と一致する必要がある）
//
// 戻り値:
//   - *Table: 新しいテーブル
//   - error: 列名の重複や行の長さが不一致の場合 DataError
func NewTable(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.NewDataError("NewTable", "", "table has no columns")
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if _, dup := index[c]; dup {
			return nil, errors.NewDataError("NewTable", c, "duplicate column")
		}
		index[c] = i
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.TrimSpace(c)
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, errors.NewDataErrorf("NewTable", "", "row %d has %d fields, want %d", i+1, len(r), len(cols))
		}
	}
	return &Table{columns: cols, index: index, rows: rows}, nil
}

// ReadCSV はファイルからヘッダー付きCSVを読み込む
//
// 使用例:
//
//	table, err := preprocessing.ReadCSV("data/data.csv")
//	if err != nil {
//	    return err
//	}
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ParseCSV はリーダーからヘッダー付きCSVを読み込む
// 空の入力や列数の揃わない行は DataError になる。
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataErrorf("ParseCSV", "", "malformed csv: %v", err)
	}
	if len(records) == 0 {
		return nil, errors.NewDataError("ParseCSV", "", "empty input, header row required")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return NewTable(header, records[1:])
}

// Columns は列名のコピーを返す
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumRows は行数を返す
func (t *Table) NumRows() int {
	return len(t.rows)
}

// HasColumn は列が存在するかどうかを返す
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column は列の値（前後の空白を除去済み）を返す
func (t *Table) Column(name string) ([]string, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, errors.NewDataError("Table.Column", name, "no such column")
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = strings.TrimSpace(r[j])
	}
	return out, nil
}

// Float64s は列を数値として読み込む。欠損値は NaN になる。
func (t *Table) Float64s(name string) ([]float64, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if IsNA(v) {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.NewDataErrorf("Table.Float64s", name, "row %d: %q is not numeric", i+1, v)
		}
		out[i] = f
	}
	return out, nil
}
