package lightgbm

import (
	"math/rand/v2"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// TrainingParams contains all training hyperparameters. Names follow the
// LightGBM parameter names given in the tags.
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations" msgpack:"num_iterations"`
	LearningRate  float64 `json:"learning_rate" msgpack:"learning_rate"`
	NumLeaves     int     `json:"num_leaves" msgpack:"num_leaves"`
	MaxDepth      int     `json:"max_depth" msgpack:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" msgpack:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2" msgpack:"lambda_l2"`
	Alpha               float64 `json:"lambda_l1" msgpack:"lambda_l1"`
	MinGainToSplit      float64 `json:"min_gain_to_split" msgpack:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf" msgpack:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction" msgpack:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq" msgpack:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction" msgpack:"feature_fraction"`

	// Histogram parameters
	MaxBin int `json:"max_bin" msgpack:"max_bin"`

	// Objective and evaluation
	Objective string `json:"objective" msgpack:"objective"`
	Metric    string `json:"metric" msgpack:"metric"`

	// Other
	Seed          uint64 `json:"seed" msgpack:"seed"`
	EarlyStopping int    `json:"early_stopping_rounds" msgpack:"early_stopping_rounds"`
	NumThreads    int    `json:"num_threads" msgpack:"num_threads"`
	Verbosity     int    `json:"verbosity" msgpack:"verbosity"`
}

// DefaultParams returns LightGBM's defaults for regression.
func DefaultParams() TrainingParams {
	return TrainingParams{
		NumIterations:       100,
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1.0,
		FeatureFraction:     1.0,
		MaxBin:              255,
		Objective:           string(RegressionL2),
		Metric:              "l2",
	}
}

// withDefaults fills zero values from DefaultParams.
func (p TrainingParams) withDefaults() TrainingParams {
	d := DefaultParams()
	if p.NumIterations == 0 {
		p.NumIterations = d.NumIterations
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.NumLeaves == 0 {
		p.NumLeaves = d.NumLeaves
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = d.MinDataInLeaf
	}
	if p.MinSumHessianInLeaf == 0 {
		p.MinSumHessianInLeaf = d.MinSumHessianInLeaf
	}
	if p.BaggingFraction == 0 {
		p.BaggingFraction = d.BaggingFraction
	}
	if p.FeatureFraction == 0 {
		p.FeatureFraction = d.FeatureFraction
	}
	if p.MaxBin == 0 {
		p.MaxBin = d.MaxBin
	}
	if p.Objective == "" {
		p.Objective = d.Objective
	}
	if p.Metric == "" {
		p.Metric = d.Metric
	}
	return p
}

// Validate rejects parameters the trainer cannot use.
func (p TrainingParams) Validate() error {
	switch {
	case p.NumIterations < 1:
		return scigoErrors.NewValidationError("num_iterations", "must be at least 1", p.NumIterations)
	case p.LearningRate <= 0:
		return scigoErrors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return scigoErrors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return scigoErrors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.Lambda < 0 || p.Alpha < 0:
		return scigoErrors.NewValidationError("lambda", "regularization must be non-negative", [2]float64{p.Alpha, p.Lambda})
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return scigoErrors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return scigoErrors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2 || p.MaxBin > 255:
		return scigoErrors.NewValidationError("max_bin", "must be in [2, 255]", p.MaxBin)
	}
	return nil
}

// SamplingStrategy handles row bagging and per-tree feature sampling.
// All draws come from one seeded PCG stream, so a run is reproducible.
type SamplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
	baggingFraction float64
	baggingFreq     int
	bag             []int
}

// NewSamplingStrategy creates a new sampling strategy
func NewSamplingStrategy(params TrainingParams) *SamplingStrategy {
	return &SamplingStrategy{
		rng:             rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
		featureFraction: params.FeatureFraction,
		baggingFraction: params.BaggingFraction,
		baggingFreq:     params.BaggingFreq,
	}
}

// SampleFeatures returns the sorted feature indices a tree may split on.
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	numSample := numFeatures
	if s.featureFraction < 1.0 {
		numSample = max(1, min(numFeatures, int(float64(numFeatures)*s.featureFraction+0.5)))
	}
	return s.sample(numFeatures, numSample)
}

// SampleInstances returns the in-bag rows for iteration. A new bag is drawn
// every baggingFreq iterations and reused in between.
func (s *SamplingStrategy) SampleInstances(numInstances int, iteration int) []int {
	if s.baggingFreq <= 0 || s.baggingFraction >= 1.0 {
		if s.bag == nil {
			s.bag = s.sample(numInstances, numInstances)
		}
		return s.bag
	}
	if s.bag == nil || iteration%s.baggingFreq == 0 {
		numSample := max(1, min(numInstances, int(float64(numInstances)*s.baggingFraction)))
		s.bag = s.sample(numInstances, numSample)
	}
	return s.bag
}

// sample draws k of n indices without replacement, returned in ascending order.
func (s *SamplingStrategy) sample(n, k int) []int {
	if k >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	picked := make([]bool, n)
	perm := s.rng.Perm(n)
	for _, i := range perm[:k] {
		picked[i] = true
	}
	out := make([]int, 0, k)
	for i, ok := range picked {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// RegularizationStrategy applies LightGBM's L1/L2 leaf regularization.
type RegularizationStrategy struct {
	lambdaL1 float64
	lambdaL2 float64
}

// NewRegularizationStrategy creates a new regularization strategy
func NewRegularizationStrategy(params TrainingParams) *RegularizationStrategy {
	return &RegularizationStrategy{
		lambdaL1: params.Alpha,
		lambdaL2: params.Lambda,
	}
}

// thresholdL1 is soft thresholding of the gradient sum.
func (r *RegularizationStrategy) thresholdL1(sumGrad float64) float64 {
	switch {
	case sumGrad > r.lambdaL1:
		return sumGrad - r.lambdaL1
	case sumGrad < -r.lambdaL1:
		return sumGrad + r.lambdaL1
	}
	return 0
}

// LeafOutput is the optimal leaf value -T(G)/(H+lambda_l2).
func (r *RegularizationStrategy) LeafOutput(sumGrad, sumHess float64) float64 {
	return -r.thresholdL1(sumGrad) / (sumHess + r.lambdaL2)
}

// LeafGain is T(G)^2/(H+lambda_l2).
func (r *RegularizationStrategy) LeafGain(sumGrad, sumHess float64) float64 {
	g := r.thresholdL1(sumGrad)
	return g * g / (sumHess + r.lambdaL2)
}

// SplitGain is the gain of splitting a parent into left and right.
func (r *RegularizationStrategy) SplitGain(leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return r.LeafGain(leftGrad, leftHess) + r.LeafGain(rightGrad, rightHess) - r.LeafGain(parentGrad, parentHess)
}
