package preprocessing

import (
	"regexp"
	"strings"

	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	temperatureSep   = regexp.MustCompile(`\s*&\s*|\s*/\s*`)
)

// NormalizeName は列名を正規形に変換する。
// 前後の空白を除去し、[A-Za-z0-9_] 以外の連続した文字を "_" に置換し、
// 先頭と末尾の "_" を取り除く。
//
// 例:
//
//	NormalizeName("K022-Proximity to nearest mandi (Km)") // "K022_Proximity_to_nearest_mandi_Km"
func NormalizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.Trim(name, "_")
}

// NormalizeNames は NormalizeName を各要素に適用した新しいスライスを返す
func NormalizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeName(n)
	}
	return out
}

// NormalizeColumns はテーブルの全列名を正規化する。
// 正規化後に名前が衝突した場合は後の列に "_1", "_2" が付く。
func NormalizeColumns(t *dataset.Table) {
	t.Rename(NormalizeName)
}

// ParseTemperature は "18 & 32" や "18/32" 形式の気温列を
// <col>_min, <col>_max, <col>_range の3列に分解し、元の列を削除する。
// 存在しない列は無視する。
func ParseTemperature(t *dataset.Table, cols []string) {
	logger := log.GetLoggerWithName("preprocessing.temperature")
	for _, col := range cols {
		keys, ok := t.Keys(col)
		if !ok {
			logger.Debug("temperature column absent", log.ColumnKey, col)
			continue
		}

		n := len(keys)
		lo := make([]float64, n)
		hi := make([]float64, n)
		rng := make([]float64, n)
		for i, raw := range keys {
			lo[i], hi[i] = splitTemperature(raw)
			rng[i] = hi[i] - lo[i]
		}

		// 長さは同じなのでエラーにはならない
		_ = t.SetFloats(col+"_min", lo)
		_ = t.SetFloats(col+"_max", hi)
		_ = t.SetFloats(col+"_range", rng)
		t.Drop(col)
	}
}

func splitTemperature(raw string) (lo, hi float64) {
	parts := temperatureSep.Split(strings.TrimSpace(raw), -1)
	lo, _ = dataset.ParseFloat(parts[0])
	hi, _ = dataset.ParseFloat("")
	if len(parts) > 1 {
		hi, _ = dataset.ParseFloat(parts[1])
	}
	return lo, hi
}
