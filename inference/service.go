package inference

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/ensemble"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// UnversionedModel is reported when the artifact directory has no manifest.
const UnversionedModel = "unversioned"

// MaxIncome caps reported incomes so they fit an int on every platform.
const MaxIncome = math.MaxInt32

// Service answers prediction requests from a loaded ensemble. It is built
// once and safe for concurrent use.
type Service struct {
	ensemble *ensemble.Ensemble
	mapper   *FeatureMapper
	version  string
	cfg      config.InferenceConfig
	logger   log.Logger
}

// NewService loads the fold models, feature schema, defaults and manifest
// from dir. Missing models, schema or defaults are errors.
func NewService(dir string, cfg *config.Config) (svc *Service, err error) {
	defer scigoErrors.Recover(&err, "inference.NewService")

	logger := log.GetLoggerWithName("inference.service").With(log.PhaseKey, log.PhaseInference)

	ens, err := ensemble.Load(dir)
	if err != nil {
		return nil, err
	}
	defaults, err := ensemble.LoadDefaults(filepath.Join(dir, ensemble.DefaultsFile))
	if err != nil {
		return nil, err
	}

	version := UnversionedModel
	if m := ens.Manifest(); m != nil {
		version = m.Version
	}

	svc = &Service{
		ensemble: ens,
		mapper:   NewFeatureMapper(ens.Schema(), defaults, cfg),
		version:  version,
		cfg:      cfg.Inference,
		logger:   logger.With(log.ModelVersionKey, version),
	}
	svc.logger.Info("inference service ready",
		"n_folds", ens.NumFolds(),
		log.FeaturesKey, ens.Schema().Len())
	return svc, nil
}

// Predict maps req onto the feature schema and averages the fold models.
func (s *Service) Predict(ctx context.Context, req Request) (resp *Response, err error) {
	defer scigoErrors.Recover(&err, "Service.Predict")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	features, err := s.mapper.Map(req)
	if err != nil {
		return nil, err
	}
	logPreds, err := s.ensemble.FoldPredictions(features)
	if err != nil {
		return nil, err
	}

	sum := 0.0
	folds := make([]int, len(logPreds))
	for i, p := range logPreds {
		sum += p
		folds[i] = wholeIncome(ensemble.ToIncome(p))
	}
	income := wholeIncome(scigoErrors.StabilizeExpm1(sum / float64(len(logPreds))))
	income = max(income, wholeIncome(s.cfg.IncomeFloor))

	resp = &Response{
		PredictedIncome: income,
		LoanEligibility: Eligibility(income, s.cfg),
		FoldPredictions: folds,
		ModelVersion:    s.version,
		FeaturesUsed:    len(features),
	}
	s.logger.Info("prediction served",
		log.OperationKey, log.OperationPredict,
		log.IncomeKey, income,
		"loan_eligibility", resp.LoanEligibility,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return resp, nil
}

// wholeIncome truncates v to an int in [0, MaxIncome]. NaN gives 0.
func wholeIncome(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxIncome:
		return MaxIncome
	}
	return int(v)
}

// Eligibility maps an income to its loan band. The thresholds are inclusive
// lower bounds.
func Eligibility(income int, cfg config.InferenceConfig) string {
	switch v := float64(income); {
	case v >= cfg.HighThreshold:
		return EligibilityHigh
	case v >= cfg.MediumThreshold:
		return EligibilityMedium
	}
	return EligibilityLow
}

// Mapper returns the feature mapper.
func (s *Service) Mapper() *FeatureMapper { return s.mapper }

// Version returns the ensemble version from the manifest.
func (s *Service) Version() string { return s.version }
