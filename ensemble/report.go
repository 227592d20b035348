package ensemble

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/farmincome/metrics"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
)

// FeatureImportance is the gain importance of one feature averaged over
// the fold models.
type FeatureImportance struct {
	Feature string  `yaml:"feature" json:"feature"`
	Gain    float64 `yaml:"gain" json:"gain"`
}

// TrainReport summarizes a cross-validated training run. MAPE values are
// percentages; "log" metrics are computed on the log1p target and "real"
// metrics after expm1.
type TrainReport struct {
	Folds       []FoldResult    `yaml:"folds" json:"folds"`
	OOFMAPELog  float64         `yaml:"oof_mape_log" json:"oof_mape_log"`
	OOFMAPEReal float64         `yaml:"oof_mape_real" json:"oof_mape_real"`
	MeanValMAPE float64         `yaml:"mean_val_mape" json:"mean_val_mape"`
	StdValMAPE  float64         `yaml:"std_val_mape" json:"std_val_mape"`
	MeanGap     float64         `yaml:"mean_gap" json:"mean_gap"`
	OOF         metrics.Summary `yaml:"oof_real" json:"oof_real"`
	Stable      bool            `yaml:"stable" json:"stable"`
	GapOK       bool            `yaml:"gap_ok" json:"gap_ok"`
	Warnings    []string        `yaml:"warnings,omitempty" json:"warnings,omitempty"`

	FeatureImportance []FeatureImportance `yaml:"-" json:"-"`
	// OOFPredictions are the log-scale out-of-fold predictions in training
	// row order.
	OOFPredictions []float64 `yaml:"-" json:"-"`
	// Targets are the log-scale training targets.
	Targets []float64 `yaml:"-" json:"-"`
}

func (ft *FoldTrainer) summarize(results []FoldResult, models []*lightgbm.Model, y, oof []float64) (*TrainReport, error) {
	r := &TrainReport{
		Folds:          results,
		OOFPredictions: oof,
		Targets:        slices.Clone(y),
	}

	yTrue := mat.NewVecDense(len(y), slices.Clone(y))
	yPred := mat.NewVecDense(len(oof), slices.Clone(oof))
	var err error
	if r.OOFMAPELog, err = metrics.MAPE(yTrue, yPred); err != nil {
		return nil, err
	}
	realTrue, realPred := expm1Slice(y), expm1Slice(oof)
	if r.OOF, err = metrics.Evaluate(realTrue, realPred); err != nil {
		return nil, err
	}
	r.OOFMAPEReal = r.OOF.MAPE

	vals := make([]float64, len(results))
	gaps := make([]float64, len(results))
	for i, res := range results {
		vals[i] = res.ValMAPELog
		gaps[i] = res.GapLog
	}
	r.MeanValMAPE = stat.Mean(vals, nil)
	r.MeanGap = stat.Mean(gaps, nil)
	if len(vals) > 1 {
		r.StdValMAPE = stat.StdDev(vals, nil)
	}

	r.Stable = r.StdValMAPE < ft.stdThreshold
	r.GapOK = math.Abs(r.MeanGap) < ft.gapThreshold
	if !r.Stable {
		w := scigoErrors.NewTrainingInstabilityWarning("std_val_mape", r.StdValMAPE, ft.stdThreshold,
			"validation MAPE varies across folds")
		scigoErrors.Warn(w)
		r.Warnings = append(r.Warnings, w.Error())
	}
	if !r.GapOK {
		w := scigoErrors.NewTrainingInstabilityWarning("mean_gap", r.MeanGap, ft.gapThreshold,
			"validation MAPE departs from training MAPE")
		scigoErrors.Warn(w)
		r.Warnings = append(r.Warnings, w.Error())
	}

	r.FeatureImportance = meanImportance(models, ft.featureNames)

	ft.logger.Info("cross-validation finished",
		"oof_mape_log", r.OOFMAPELog,
		"oof_mape_real", r.OOFMAPEReal,
		"mean_val_mape", r.MeanValMAPE,
		"std_val_mape", r.StdValMAPE,
		"mean_gap", r.MeanGap,
		"stable", r.Stable,
		"gap_ok", r.GapOK)
	return r, nil
}

// meanImportance averages normalized gain importance over models and sorts
// the result by descending gain, ties by feature name.
func meanImportance(models []*lightgbm.Model, names []string) []FeatureImportance {
	sum := make([]float64, len(names))
	for _, m := range models {
		for j, v := range m.GetFeatureImportance("gain") {
			if j < len(sum) {
				sum[j] += v
			}
		}
	}
	out := make([]FeatureImportance, len(names))
	for j, name := range names {
		out[j] = FeatureImportance{Feature: name, Gain: sum[j] / float64(max(1, len(models)))}
	}
	slices.SortStableFunc(out, func(a, b FeatureImportance) int {
		if c := cmp.Compare(b.Gain, a.Gain); c != 0 {
			return c
		}
		return cmp.Compare(a.Feature, b.Feature)
	})
	return out
}

