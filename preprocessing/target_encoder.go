package preprocessing

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/farmincome/core/model"
	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

// TargetEncodedSuffix は目的変数エンコーディング列の接尾辞
const TargetEncodedSuffix = "_te"

// KFoldTargetEncoder は高カーディナリティのカテゴリ列を、平滑化した目的変数の平均で置き換える。
//
// 学習データの各行の値は、その行を含まないフォールドの統計量だけから計算する（out-of-fold）。
// テストデータには学習データ全体の統計量を使う。平滑化は
//
//	(count*mean + smoothing*globalMean) / (count + smoothing)
//
// で、学習時に見なかったカテゴリには globalMean を割り当てる。
type KFoldTargetEncoder struct {
	model.BaseEstimator

	// Smoothing は平滑化の強さ
	Smoothing float64

	// GlobalMean は学習データ全体の目的変数の平均
	GlobalMean float64

	// Encodings は列ごとのカテゴリ→エンコード値（学習データ全体から計算）
	Encodings map[string]map[string]float64

	logger log.Logger
}

// NewKFoldTargetEncoder は新しいKFoldTargetEncoderを作成する
func NewKFoldTargetEncoder(smoothing float64) *KFoldTargetEncoder {
	return &KFoldTargetEncoder{
		Smoothing: smoothing,
		logger:    log.GetLoggerWithName("preprocessing.target_encoder"),
	}
}

type categoryStats struct {
	sum   float64
	count float64
}

// FitTransform は学習テーブルに "<列名>_te" 列を out-of-fold で追加し、
// テスト用の統計量を学習する。
//
// パラメータ:
//   - t: 学習テーブル
//   - cols: エンコードする列（存在しない列は無視）
//   - y: 目的変数（t と同じ行順）
//   - folds: 学習全体で共有するフォールド割り当て
func (e *KFoldTargetEncoder) FitTransform(t *dataset.Table, cols []string, y []float64, folds *model_selection.FoldAssignment) (err error) {
	defer scigoErrors.Recover(&err, "KFoldTargetEncoder.FitTransform")
	if len(y) != t.NRows() {
		return scigoErrors.NewDimensionError("KFoldTargetEncoder.FitTransform", t.NRows(), len(y), 0)
	}
	if folds.NSamples() != t.NRows() {
		return scigoErrors.NewDimensionError("KFoldTargetEncoder.FitTransform", t.NRows(), folds.NSamples(), 0)
	}
	if len(y) == 0 {
		return scigoErrors.NewModelError("KFoldTargetEncoder.FitTransform", "empty target", scigoErrors.ErrEmptyData)
	}

	e.GlobalMean = stat.Mean(y, nil)
	e.Encodings = make(map[string]map[string]float64)

	for _, col := range cols {
		keys, ok := t.Keys(col)
		if !ok {
			e.logger.Debug("target encoding source absent", log.ColumnKey, col)
			continue
		}

		encoded := make([]float64, len(keys))
		for _, fold := range folds.Folds {
			enc := e.smooth(aggregate(keys, y, fold.TrainIndices))
			for _, i := range fold.TestIndices {
				encoded[i] = lookup(enc, keys[i], e.GlobalMean)
			}
		}
		if err := t.SetFloats(col+TargetEncodedSuffix, encoded); err != nil {
			return err
		}

		all := make([]int, len(keys))
		for i := range all {
			all[i] = i
		}
		e.Encodings[col] = e.smooth(aggregate(keys, y, all))
	}

	e.SetFitted()
	e.logger.Info("target encoding fitted",
		log.OperationKey, log.OperationFitTransform,
		log.ColumnsKey, len(e.Encodings),
		"global_mean", e.GlobalMean,
		"folds", folds.NSplits(),
	)
	return nil
}

// Transform はテストテーブルに "<列名>_te" 列を追加する
func (e *KFoldTargetEncoder) Transform(t *dataset.Table) (err error) {
	defer scigoErrors.Recover(&err, "KFoldTargetEncoder.Transform")
	if err := e.CheckFitted("KFoldTargetEncoder", "Transform"); err != nil {
		return err
	}
	for _, col := range slices.Sorted(maps.Keys(e.Encodings)) {
		enc := e.Encodings[col]
		encoded := make([]float64, t.NRows())
		if keys, ok := t.Keys(col); ok {
			for i, k := range keys {
				encoded[i] = lookup(enc, k, e.GlobalMean)
			}
		} else {
			for i := range encoded {
				encoded[i] = e.GlobalMean
			}
		}
		if err := t.SetFloats(col+TargetEncodedSuffix, encoded); err != nil {
			return err
		}
	}
	return nil
}

// EncodedColumns は追加される列名を辞書順で返す
func (e *KFoldTargetEncoder) EncodedColumns() []string {
	out := slices.Sorted(maps.Keys(e.Encodings))
	for i, col := range out {
		out[i] = col + TargetEncodedSuffix
	}
	return out
}

func aggregate(keys []string, y []float64, rows []int) map[string]categoryStats {
	stats := make(map[string]categoryStats)
	for _, i := range rows {
		k := keys[i]
		if k == "" {
			continue
		}
		s := stats[k]
		s.sum += y[i]
		s.count++
		stats[k] = s
	}
	return stats
}

func (e *KFoldTargetEncoder) smooth(stats map[string]categoryStats) map[string]float64 {
	out := make(map[string]float64, len(stats))
	for k, s := range stats {
		mean := s.sum / s.count
		out[k] = (s.count*mean + e.Smoothing*e.GlobalMean) / (s.count + e.Smoothing)
	}
	return out
}

func lookup(enc map[string]float64, key string, fallback float64) float64 {
	if v, ok := enc[key]; ok {
		return v
	}
	return fallback
}
