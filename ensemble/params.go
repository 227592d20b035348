package ensemble

import (
	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
)

// ParamsFromConfig maps the boosting section onto LightGBM training
// parameters. min_child_samples, reg_alpha and reg_lambda are the
// scikit-learn aliases of min_data_in_leaf, lambda_l1 and lambda_l2.
func ParamsFromConfig(b config.BoostingConfig, seed uint64) lightgbm.TrainingParams {
	p := lightgbm.DefaultParams()
	p.Objective = b.Objective
	p.Metric = b.Metric
	p.LearningRate = b.LearningRate
	p.NumLeaves = b.NumLeaves
	p.MaxDepth = b.MaxDepth
	p.FeatureFraction = b.FeatureFraction
	p.BaggingFraction = b.BaggingFraction
	p.BaggingFreq = b.BaggingFreq
	p.MinDataInLeaf = b.MinChildSamples
	p.Alpha = b.RegAlpha
	p.Lambda = b.RegLambda
	p.MinGainToSplit = b.MinGainToSplit
	p.MaxBin = b.MaxBin
	p.NumIterations = b.NumBoostRound
	p.EarlyStopping = b.EarlyStoppingRounds
	p.Seed = seed
	if p.MaxDepth == 0 {
		p.MaxDepth = -1
	}
	return p
}
