package preprocessing

import (
	"math"
	"slices"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/farmincome/core/model"
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// UnknownCategory は学習データに値が一つもない文字列列の補完値
const UnknownCategory = "Unknown"

// Imputer は学習データの統計量で欠損値を補完する。
// 数値列は中央値、文字列列は最頻値（同数の場合は辞書順で最小）を使う。
// 統計量は Fit で一度だけ計算され、学習データ・テストデータ・推論の全てで共有される。
type Imputer struct {
	model.BaseEstimator

	// Medians は数値列ごとの中央値
	Medians map[string]float64
	// Modes は文字列列ごとの最頻値
	Modes map[string]string

	logger log.Logger
}

// NewImputer は新しいImputerを作成する
func NewImputer() *Imputer {
	return &Imputer{logger: log.GetLoggerWithName("preprocessing.imputer")}
}

// Fit は学習テーブルから補完値を学習する
//
// パラメータ:
//   - t: 学習テーブル
//   - exclude: 統計量を計算しない列（識別子・目的変数など）
func (im *Imputer) Fit(t *dataset.Table, exclude []string) (err error) {
	defer scigoErrors.Recover(&err, "Imputer.Fit")
	if t.NRows() == 0 {
		return scigoErrors.NewModelError("Imputer.Fit", "empty data", scigoErrors.ErrEmptyData)
	}

	im.Medians = make(map[string]float64)
	im.Modes = make(map[string]string)
	for _, name := range t.Names() {
		if slices.Contains(exclude, name) {
			continue
		}
		c, _ := t.Column(name)
		if c.Kind == dataset.Float {
			im.Medians[name] = Median(c.Floats)
		} else {
			im.Modes[name] = mode(c.Strings)
		}
	}
	im.SetFitted()
	im.logger.Debug("imputer fitted",
		log.OperationKey, log.OperationFit,
		"numeric_columns", len(im.Medians),
		"string_columns", len(im.Modes),
	)
	return nil
}

// Transform は学習済みの統計量で欠損値を埋める。学習時に見なかった列はそのまま残す。
func (im *Imputer) Transform(t *dataset.Table) (err error) {
	defer scigoErrors.Recover(&err, "Imputer.Transform")
	if err := im.CheckFitted("Imputer", "Transform"); err != nil {
		return err
	}

	for _, name := range t.Names() {
		c, _ := t.Column(name)
		med, isNum := im.Medians[name]
		md, isStr := im.Modes[name]
		switch {
		case c.Kind == dataset.Float && isNum:
			for i, v := range c.Floats {
				if math.IsNaN(v) {
					c.Floats[i] = med
				}
			}
		case c.Kind == dataset.String && isStr:
			fillStrings(c.Strings, md)
		case c.Kind == dataset.String && isNum:
			fillStrings(c.Strings, strconv.FormatFloat(med, 'g', -1, 64))
		case c.Kind == dataset.Float && isStr:
			if v, ok := dataset.ParseFloat(md); ok {
				for i, x := range c.Floats {
					if math.IsNaN(x) {
						c.Floats[i] = v
					}
				}
			}
		}
	}
	return nil
}

func fillStrings(values []string, fill string) {
	for i, s := range values {
		if s == "" {
			values[i] = fill
		}
	}
}

// Median は NaN を除いた値の中央値を返す。偶数個の場合は中央2値の平均。
// 有効な値がない場合は 0 を返す。
func Median(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0
	}
	sort.Float64s(valid)
	mid := len(valid) / 2
	if len(valid)%2 == 1 {
		return valid[mid]
	}
	return (valid[mid-1] + valid[mid]) / 2
}

// NaNMean は NaN を除いた平均を返す。有効な値がない場合は NaN。
func NaNMean(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func mode(values []string) string {
	counts := make(map[string]int)
	for _, s := range values {
		if s != "" {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return UnknownCategory
	}
	best, bestN := "", -1
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

// TargetCapper は目的変数の上側外れ値を学習データの分位点で切り詰める。
// テストデータには適用しない。
type TargetCapper struct {
	model.BaseEstimator

	Quantile float64
	Cap      float64
}

// NewTargetCapper は q 分位点で切り詰める TargetCapper を作成する
func NewTargetCapper(q float64) *TargetCapper {
	return &TargetCapper{Quantile: q}
}

// Fit は y の分位点を学習する
func (c *TargetCapper) Fit(y []float64) error {
	valid := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return scigoErrors.NewModelError("TargetCapper.Fit", "empty target", scigoErrors.ErrEmptyData)
	}
	sort.Float64s(valid)
	c.Cap = LinearQuantile(c.Quantile, valid)
	c.SetFitted()
	return nil
}

// LinearQuantile は昇順にソート済みの x の q 分位点を、順序統計量の間の
// 線形補間 (位置 (n-1)q) で返す。pandas の既定の quantile と同じ値になる。
// stat.LinInterp は位置 nq で補間するため、q を ((n-1)q+1)/n に読み替えて渡す。
func LinearQuantile(q float64, sorted []float64) float64 {
	n := float64(len(sorted))
	return stat.Quantile(((n-1)*q+1)/n, stat.LinInterp, sorted, nil)
}

// Transform は y をその場で切り詰め、切り詰めた件数を返す
func (c *TargetCapper) Transform(y []float64) (int, error) {
	if err := c.CheckFitted("TargetCapper", "Transform"); err != nil {
		return 0, err
	}
	n := 0
	for i, v := range y {
		if v > c.Cap {
			y[i] = c.Cap
			n++
		}
	}
	return n, nil
}

// Log1p は指定列を log(1+max(x,0)) に置き換える。NaN はそのまま残す。
// 存在しない列や文字列列は無視する。
func Log1p(t *dataset.Table, cols []string) {
	for _, col := range cols {
		values, ok := t.Floats(col)
		if !ok {
			continue
		}
		for i, v := range values {
			if !math.IsNaN(v) {
				values[i] = scigoErrors.SafeLog1p(v)
			}
		}
	}
}
