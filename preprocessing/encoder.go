package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/farmincome/core/model"
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// UnknownCode は未知・欠損カテゴリに割り当てるコード
const UnknownCode = -1.0

// LabelEncoder は低カーディナリティのカテゴリ列（性別、婚姻状況など）を
// 整数コードに置き換える。コードは学習データのカテゴリを辞書順に並べた位置。
type LabelEncoder struct {
	model.BaseEstimator

	// Classes は列ごとのカテゴリ一覧（ソート済み）
	Classes map[string][]string

	codes map[string]map[string]float64
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit は cols のうちテーブルに存在する列のカテゴリを学習する
func (e *LabelEncoder) Fit(t *dataset.Table, cols []string) (err error) {
	defer scigoErrors.Recover(&err, "LabelEncoder.Fit")
	e.Classes = make(map[string][]string)
	e.codes = make(map[string]map[string]float64)
	for _, col := range cols {
		keys, ok := t.Keys(col)
		if !ok {
			continue
		}
		classes := uniqueSorted(keys)
		e.Classes[col] = classes
		e.codes[col] = indexOf(classes)
	}
	e.SetFitted()
	return nil
}

// Transform は学習済みの列を数値コードに置き換える。未知・欠損は -1。
func (e *LabelEncoder) Transform(t *dataset.Table) (err error) {
	defer scigoErrors.Recover(&err, "LabelEncoder.Transform")
	if err := e.CheckFitted("LabelEncoder", "Transform"); err != nil {
		return err
	}
	for col, codes := range e.codes {
		keys, ok := t.Keys(col)
		if !ok {
			continue
		}
		if err := t.SetFloats(col, mapCodes(keys, codes)); err != nil {
			return err
		}
	}
	return nil
}

// OrdinalEncoder は順序カテゴリ（Poor < Average < Good）を固定の対応表で数値化する。
// 対応表にない値は -1。
type OrdinalEncoder struct {
	Mapping map[string]float64
}

// NewOrdinalEncoder は対応表 mapping を使う OrdinalEncoder を作成する
func NewOrdinalEncoder(mapping map[string]float64) *OrdinalEncoder {
	return &OrdinalEncoder{Mapping: mapping}
}

// Transform は cols のうち存在する列を置き換える
func (e *OrdinalEncoder) Transform(t *dataset.Table, cols []string) error {
	for _, col := range cols {
		keys, ok := t.Keys(col)
		if !ok {
			continue
		}
		if err := t.SetFloats(col, mapCodes(keys, e.Mapping)); err != nil {
			return err
		}
	}
	return nil
}

// OneHotEncoder はカテゴリ列を 0/1 の指示列に展開する。
// 出力列名は "<列名>_<正規化したカテゴリ>"。学習時に見なかったカテゴリは全て 0 の行になる。
type OneHotEncoder struct {
	model.BaseEstimator

	// Columns は学習した入力列（学習順）
	Columns []string

	// Categories は列ごとのカテゴリ一覧（ソート済み）
	Categories map[string][]string

	// MissingIndicator が true の場合、欠損値用に "<列名>_nan" を追加する
	MissingIndicator bool

	logger log.Logger
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	encoder := preprocessing.NewOneHotEncoder(false)
//	err := encoder.Fit(train, cols)
//	err = encoder.Transform(train)
//	err = encoder.Transform(test)
func NewOneHotEncoder(missingIndicator bool) *OneHotEncoder {
	return &OneHotEncoder{
		MissingIndicator: missingIndicator,
		logger:           log.GetLoggerWithName("preprocessing.onehot"),
	}
}

// Fit は学習データからカテゴリ情報を学習する
func (e *OneHotEncoder) Fit(t *dataset.Table, cols []string) (err error) {
	defer scigoErrors.Recover(&err, "OneHotEncoder.Fit")
	e.Columns = nil
	e.Categories = make(map[string][]string)
	for _, col := range cols {
		keys, ok := t.Keys(col)
		if !ok {
			continue
		}
		e.Columns = append(e.Columns, col)
		e.Categories[col] = uniqueSorted(keys)
	}
	e.SetFitted()
	return nil
}

// Transform は学習済みの列を指示列に展開し、元の列を削除する。
// 入力テーブルに列がない場合は全て 0 の指示列を追加する。
func (e *OneHotEncoder) Transform(t *dataset.Table) (err error) {
	defer scigoErrors.Recover(&err, "OneHotEncoder.Transform")
	if err := e.CheckFitted("OneHotEncoder", "Transform"); err != nil {
		return err
	}

	n := t.NRows()
	for _, col := range e.Columns {
		keys, present := t.Keys(col)
		names := e.outputNames(col)

		outputs := make(map[string][]float64, len(names))
		for _, name := range names {
			outputs[name] = make([]float64, n)
		}
		if present {
			for i, k := range keys {
				if name, ok := e.outputFor(col, k); ok {
					outputs[name][i] = 1
				}
			}
		} else {
			e.logger.Debug("one-hot source absent, emitting zeros", log.ColumnKey, col)
		}

		for _, name := range names {
			if err := t.SetFloats(name, outputs[name]); err != nil {
				return err
			}
		}
		t.Drop(col)
	}
	return nil
}

func (e *OneHotEncoder) outputFor(col, key string) (string, bool) {
	if key == "" {
		return col + "_nan", e.MissingIndicator
	}
	cats := e.Categories[col]
	i := sort.SearchStrings(cats, key)
	if i < len(cats) && cats[i] == key {
		return col + "_" + NormalizeName(key), true
	}
	return "", false
}

func (e *OneHotEncoder) outputNames(col string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, cat := range e.Categories[col] {
		name := col + "_" + NormalizeName(cat)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if e.MissingIndicator {
		names = append(names, col+"_nan")
	}
	return names
}

// GetFeatureNamesOut は変換後の特徴量名を返す
//
// 例:
//   - 入力列が ["Kharif_Seasons_Type_of_soil_in_2020"] でカテゴリが ["Black", "Red"] の場合
//   - 出力: ["Kharif_Seasons_Type_of_soil_in_2020_Black", "Kharif_Seasons_Type_of_soil_in_2020_Red"]
func (e *OneHotEncoder) GetFeatureNamesOut() []string {
	if !e.IsFitted() {
		return nil
	}
	var out []string
	for _, col := range e.Columns {
		out = append(out, e.outputNames(col)...)
	}
	return out
}

func uniqueSorted(keys []string) []string {
	set := make(map[string]struct{})
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(classes []string) map[string]float64 {
	m := make(map[string]float64, len(classes))
	for i, c := range classes {
		m[c] = float64(i)
	}
	return m
}

func mapCodes(keys []string, codes map[string]float64) []float64 {
	out := make([]float64, len(keys))
	for i, k := range keys {
		if v, ok := codes[k]; ok {
			out[i] = v
		} else {
			out[i] = UnknownCode
		}
	}
	return out
}
