// Package pipeline turns the raw training and test tables into the aligned
// feature matrices consumed by the fold trainer.
package pipeline

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/features"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/preprocessing"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

// Prepared is the result of Prepare.
type Prepared struct {
	Schema *dataset.FeatureSchema
	XTrain *mat.Dense
	XTest  *mat.Dense
	// YTrain is the capped target on the log1p scale.
	YTrain  []float64
	TestIDs []string
	Folds   *model_selection.FoldAssignment
	// Skipped lists derived features whose sources were absent.
	Skipped []string
}

// Defaults returns the per-feature training medians used to seed inference
// vectors.
func (p *Prepared) Defaults() map[string]float64 {
	out := make(map[string]float64, p.Schema.Len())
	rows, _ := p.XTrain.Dims()
	col := make([]float64, rows)
	for j, name := range p.Schema.Names() {
		mat.Col(col, j, p.XTrain)
		out[name] = preprocessing.Median(col)
	}
	return out
}

// names holds the configured column names after normalization.
type names struct {
	id, target, village, group string
	drop, targetEncode         []string
	binary, ordinal, oneHot    []string
	temperature, logTransform  []string
	aggregate                  []string
}

func normalizedNames(cfg *config.Config) names {
	n := preprocessing.NormalizeName
	ns := preprocessing.NormalizeNames
	return names{
		id:           n(cfg.General.IDCol),
		target:       n(cfg.General.TargetCol),
		village:      n(cfg.General.VillageCol),
		group:        n(cfg.General.GroupCol),
		drop:         ns(cfg.Columns.Drop),
		targetEncode: ns(cfg.Columns.TargetEncode),
		binary:       ns(cfg.Columns.Binary),
		ordinal:      ns(cfg.Columns.Ordinal),
		oneHot:       ns(cfg.Columns.OneHot),
		temperature:  ns(cfg.Columns.Temperature),
		logTransform: ns(cfg.Columns.LogTransform),
		aggregate:    ns(cfg.Features.AggregateCols),
	}
}

// FeatureColumns returns the normalized synthesizer sources of cfg.
func FeatureColumns(f config.FeaturesConfig) features.Columns {
	n := preprocessing.NormalizeName
	return features.Columns{
		Land:          n(f.Land),
		NonAgriIncome: n(f.NonAgriIncome),
		Disbursement:  n(f.Disbursement),
		SocioScore:    n(f.SocioScore),
		MandiDist:     n(f.MandiDist),
		RailwayDist:   n(f.RailwayDist),
		NightLight:    n(f.NightLight),
		RoadDensity:   n(f.RoadDensity),
		KCC:           n(f.KCC),
		Infra:         preprocessing.NormalizeNames(f.Infra),
		AgriKharif22:  n(f.AgriScores.Kharif2022),
		AgriKharif20:  n(f.AgriScores.Kharif2020),
		AgriRabi22:    n(f.AgriScores.Rabi2022),
		AgriRabi20:    n(f.AgriScores.Rabi2020),
		AgriScores:    preprocessing.NormalizeNames(f.AgriScores.All()),
		Rainfall:      preprocessing.NormalizeNames(f.Rainfall),
	}
}

// Prepare runs every preparation stage on train and test. Both tables are
// modified in place. Statistics are fitted on train only and the same fold
// assignment drives target encoding and group aggregation.
func Prepare(cfg *config.Config, train, test *dataset.Table) (p *Prepared, err error) {
	defer scigoErrors.Recover(&err, "pipeline.Prepare")
	logger := log.GetLoggerWithName("pipeline").With(log.PhaseKey, log.PhasePreprocessing)
	if train.NRows() == 0 || test.NRows() == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "pipeline.Prepare")
	}

	preprocessing.NormalizeColumns(train)
	preprocessing.NormalizeColumns(test)
	cols := normalizedNames(cfg)

	if err := train.CheckUnique(cols.id); err != nil {
		return nil, scigoErrors.Wrap(err, "training table")
	}
	if err := test.CheckUnique(cols.id); err != nil {
		return nil, scigoErrors.Wrap(err, "test table")
	}
	testIDs, _ := test.Keys(cols.id)
	testIDs = slices.Clone(testIDs)

	preprocessing.ParseTemperature(train, cols.temperature)
	preprocessing.ParseTemperature(test, cols.temperature)

	y, err := prepareTarget(cfg, train, cols.target)
	if err != nil {
		return nil, err
	}

	imputer := preprocessing.NewImputer()
	if err := imputer.Fit(train, []string{cols.id, cols.target}); err != nil {
		return nil, err
	}
	for _, t := range []*dataset.Table{train, test} {
		if err := imputer.Transform(t); err != nil {
			return nil, err
		}
	}

	if err := encodeCategoricals(cfg, cols, train, test); err != nil {
		return nil, err
	}

	village := features.NewVillagePopulation(cols.village)
	if err := village.Fit(train); err != nil {
		logger.Warn("village population unavailable", log.ErrorKey, err)
	} else {
		for _, t := range []*dataset.Table{train, test} {
			if err := village.Transform(t); err != nil {
				return nil, err
			}
		}
	}

	preprocessing.Log1p(train, cols.logTransform)
	preprocessing.Log1p(test, cols.logTransform)
	for i, v := range y {
		y[i] = scigoErrors.SafeLog1p(v)
	}

	folds, err := model_selection.NewKFold(cfg.General.NFolds, true, cfg.General.Seed).Split(train.NRows())
	if err != nil {
		return nil, err
	}

	te := preprocessing.NewKFoldTargetEncoder(cfg.TargetEncoding.Smoothing)
	if err := te.FitTransform(train, cols.targetEncode, y, folds); err != nil {
		return nil, err
	}
	if err := te.Transform(test); err != nil {
		return nil, err
	}

	synth := features.NewSynthesizer(features.DefaultDerivations(FeatureColumns(cfg.Features)))
	report, err := synth.Apply(train)
	if err != nil {
		return nil, err
	}
	if _, err := synth.Apply(test); err != nil {
		return nil, err
	}

	seasonal, err := features.SeasonalInteractions(train, []*dataset.Table{train, test},
		features.SeasonalPairs(cfg.Features.SeasonalYear))
	if err != nil {
		return nil, err
	}

	groups := features.NewGroupMeanEncoder(cols.group, cols.aggregate)
	if err := groups.FitTransform(train, folds); err != nil {
		return nil, err
	}
	if err := groups.Transform(test); err != nil {
		return nil, err
	}

	exclude := slices.Concat(cols.drop, cols.targetEncode, []string{cols.id, cols.target})
	train.Drop(exclude...)
	test.Drop(exclude...)

	aligned, err := dataset.Align(train, test, exclude)
	if err != nil {
		return nil, err
	}

	logger.Info("datasets prepared",
		log.SamplesKey, train.NRows(),
		log.FeaturesKey, aligned.Schema.Len(),
		"test_rows", test.NRows(),
		"seasonal_interactions", len(seasonal),
		"skipped_features", len(report.Skipped),
	)
	return &Prepared{
		Schema:  aligned.Schema,
		XTrain:  aligned.Train,
		XTest:   aligned.Test,
		YTrain:  y,
		TestIDs: testIDs,
		Folds:   folds,
		Skipped: report.Skipped,
	}, nil
}

// prepareTarget extracts the target, caps it from above and fills missing
// values with the median of the capped target. The column is removed from
// train afterwards so no later stage can read it.
func prepareTarget(cfg *config.Config, train *dataset.Table, target string) ([]float64, error) {
	raw, ok := train.Floats(target)
	if !ok {
		return nil, scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "target column %q", target)
	}
	y := slices.Clone(raw)

	capper := preprocessing.NewTargetCapper(cfg.Outliers.TargetCapQuantile)
	if err := capper.Fit(y); err != nil {
		return nil, err
	}
	capped, err := capper.Transform(y)
	if err != nil {
		return nil, err
	}
	median := preprocessing.Median(y)
	for i, v := range y {
		if math.IsNaN(v) {
			y[i] = median
		}
	}
	train.Drop(target)

	log.GetLoggerWithName("pipeline").Info("target capped",
		"cap", capper.Cap,
		"quantile", capper.Quantile,
		"capped_rows", capped,
	)
	return y, nil
}

func encodeCategoricals(cfg *config.Config, cols names, train, test *dataset.Table) error {
	label := preprocessing.NewLabelEncoder()
	if err := label.Fit(train, cols.binary); err != nil {
		return err
	}
	ordinal := preprocessing.NewOrdinalEncoder(cfg.Columns.OrdinalMap)
	oneHot := preprocessing.NewOneHotEncoder(cfg.Columns.OneHotMissingIndicator)
	if err := oneHot.Fit(train, cols.oneHot); err != nil {
		return err
	}
	for _, t := range []*dataset.Table{train, test} {
		if err := label.Transform(t); err != nil {
			return err
		}
		if err := ordinal.Transform(t, cols.ordinal); err != nil {
			return err
		}
		if err := oneHot.Transform(t); err != nil {
			return err
		}
	}
	return nil
}
