// Package config holds the YAML configuration of the training pipeline and
// the inference service. Column names are given as they appear in the raw
// CSV headers; they are normalized by the pipeline before use.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	Paths          PathsConfig          `yaml:"paths"`
	General        GeneralConfig        `yaml:"general"`
	Columns        ColumnsConfig        `yaml:"columns"`
	Features       FeaturesConfig       `yaml:"features"`
	TargetEncoding TargetEncodingConfig `yaml:"target_encoding"`
	Outliers       OutliersConfig       `yaml:"outliers"`
	Boosting       BoostingConfig       `yaml:"boosting"`
	Training       TrainingConfig       `yaml:"training"`
	Inference      InferenceConfig      `yaml:"inference"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// PathsConfig represents input and output locations
type PathsConfig struct {
	TrainCSV      string `yaml:"train_csv"`
	TestCSV       string `yaml:"test_csv"`
	ArtifactDir   string `yaml:"artifact_dir"`
	ReportDir     string `yaml:"report_dir"`
	PredictionCSV string `yaml:"prediction_csv"`
}

// GeneralConfig represents run-wide settings
type GeneralConfig struct {
	Seed       uint64 `yaml:"seed"`
	NFolds     int    `yaml:"n_folds"`
	IDCol      string `yaml:"id_col"`
	TargetCol  string `yaml:"target_col"`
	VillageCol string `yaml:"village_col"`
	GroupCol   string `yaml:"group_col"`
}

// ColumnsConfig represents the column groups handled by each encoder
type ColumnsConfig struct {
	Drop                   []string           `yaml:"drop"`
	TargetEncode           []string           `yaml:"target_encode"`
	Binary                 []string           `yaml:"binary"`
	Ordinal                []string           `yaml:"ordinal"`
	OrdinalMap             map[string]float64 `yaml:"ordinal_map"`
	Temperature            []string           `yaml:"temperature"`
	OneHot                 []string           `yaml:"onehot"`
	OneHotMissingIndicator bool               `yaml:"onehot_missing_indicator"`
	LogTransform           []string           `yaml:"log_transform"`
}

// AgriScoreColumns names the seasonal agricultural score columns
type AgriScoreColumns struct {
	Kharif2022 string `yaml:"kharif_2022"`
	Rabi2022   string `yaml:"rabi_2022"`
	Kharif2021 string `yaml:"kharif_2021"`
	Rabi2021   string `yaml:"rabi_2021"`
	Kharif2020 string `yaml:"kharif_2020"`
	Rabi2020   string `yaml:"rabi_2020"`
}

// All returns the score columns in 2022, 2021, 2020 order.
func (a AgriScoreColumns) All() []string {
	return []string{a.Kharif2022, a.Rabi2022, a.Kharif2021, a.Rabi2021, a.Kharif2020, a.Rabi2020}
}

// FeaturesConfig represents the source columns of derived features
type FeaturesConfig struct {
	Land             string           `yaml:"land"`
	NonAgriIncome    string           `yaml:"non_agri_income"`
	Disbursement     string           `yaml:"disbursement"`
	SocioScore       string           `yaml:"socio_score"`
	MandiDist        string           `yaml:"mandi_dist"`
	RailwayDist      string           `yaml:"railway_dist"`
	NightLight       string           `yaml:"night_light"`
	RoadDensity      string           `yaml:"road_density"`
	LandHoldingIndex string           `yaml:"land_holding_index"`
	KCC              string           `yaml:"kcc"`
	Infra            []string         `yaml:"infra"`
	AgriScores       AgriScoreColumns `yaml:"agri_scores"`
	Rainfall         []string         `yaml:"rainfall"`
	AggregateCols    []string         `yaml:"aggregate_cols"`
	SeasonalYear     string           `yaml:"seasonal_year"`
}

// TargetEncodingConfig represents K-fold target encoding settings
type TargetEncodingConfig struct {
	Smoothing float64 `yaml:"smoothing"`
}

// OutliersConfig represents target capping settings
type OutliersConfig struct {
	TargetCapQuantile float64 `yaml:"target_cap_quantile"`
}

// BoostingConfig represents gradient boosting hyperparameters
type BoostingConfig struct {
	Objective           string  `yaml:"objective"`
	Metric              string  `yaml:"metric"`
	LearningRate        float64 `yaml:"learning_rate"`
	NumLeaves           int     `yaml:"num_leaves"`
	MaxDepth            int     `yaml:"max_depth"`
	FeatureFraction     float64 `yaml:"feature_fraction"`
	BaggingFraction     float64 `yaml:"bagging_fraction"`
	BaggingFreq         int     `yaml:"bagging_freq"`
	MinChildSamples     int     `yaml:"min_child_samples"`
	RegAlpha            float64 `yaml:"reg_alpha"`
	RegLambda           float64 `yaml:"reg_lambda"`
	MinGainToSplit      float64 `yaml:"min_gain_to_split"`
	MaxBin              int     `yaml:"max_bin"`
	NumBoostRound       int     `yaml:"num_boost_round"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds"`
}

// TrainingConfig represents fold-loop settings
type TrainingConfig struct {
	ParallelFolds         int     `yaml:"parallel_folds"`
	StabilityStdThreshold float64 `yaml:"stability_std_threshold"`
	GapThreshold          float64 `yaml:"gap_threshold"`
	Plots                 bool    `yaml:"plots"`
	// ModelFormat is "msgpack" (fold_<k>.msgpack) or "lightgbm"
	// (lgb_fold<k>.txt, LightGBM text format).
	ModelFormat string `yaml:"model_format"`
}

// InferenceConfig represents the single-request prediction boundary
type InferenceConfig struct {
	IncomeFloor             float64 `yaml:"income_floor"`
	HighThreshold           float64 `yaml:"high_threshold"`
	MediumThreshold         float64 `yaml:"medium_threshold"`
	MultiplierMin           float64 `yaml:"multiplier_min"`
	MultiplierMax           float64 `yaml:"multiplier_max"`
	SmallFarmLand           float64 `yaml:"small_farm_land"`
	KCCLandThreshold        float64 `yaml:"kcc_land_threshold"`
	SmallFarmDisbursementFx float64 `yaml:"small_farm_disbursement_factor"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads filename and overlays it on Default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "failed to read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, scigoErrors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return scigoErrors.Wrap(err, "failed to encode config")
	}
	return os.WriteFile(filename, data, 0o644)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.General.NFolds < 2:
		return scigoErrors.NewValidationError("general.n_folds", "must be at least 2", c.General.NFolds)
	case c.General.TargetCol == "":
		return scigoErrors.NewValidationError("general.target_col", "must not be empty", c.General.TargetCol)
	case c.General.IDCol == "":
		return scigoErrors.NewValidationError("general.id_col", "must not be empty", c.General.IDCol)
	case c.TargetEncoding.Smoothing < 0:
		return scigoErrors.NewValidationError("target_encoding.smoothing", "must be non-negative", c.TargetEncoding.Smoothing)
	case c.Outliers.TargetCapQuantile <= 0 || c.Outliers.TargetCapQuantile > 1:
		return scigoErrors.NewValidationError("outliers.target_cap_quantile", "must be in (0, 1]", c.Outliers.TargetCapQuantile)
	case c.Boosting.LearningRate <= 0:
		return scigoErrors.NewValidationError("boosting.learning_rate", "must be positive", c.Boosting.LearningRate)
	case c.Boosting.NumLeaves < 2:
		return scigoErrors.NewValidationError("boosting.num_leaves", "must be at least 2", c.Boosting.NumLeaves)
	case c.Boosting.NumBoostRound < 1:
		return scigoErrors.NewValidationError("boosting.num_boost_round", "must be at least 1", c.Boosting.NumBoostRound)
	case c.Boosting.FeatureFraction <= 0 || c.Boosting.FeatureFraction > 1:
		return scigoErrors.NewValidationError("boosting.feature_fraction", "must be in (0, 1]", c.Boosting.FeatureFraction)
	case c.Boosting.BaggingFraction <= 0 || c.Boosting.BaggingFraction > 1:
		return scigoErrors.NewValidationError("boosting.bagging_fraction", "must be in (0, 1]", c.Boosting.BaggingFraction)
	case c.Boosting.MaxBin < 2 || c.Boosting.MaxBin > 255:
		return scigoErrors.NewValidationError("boosting.max_bin", "must be in [2, 255]", c.Boosting.MaxBin)
	case c.Training.ModelFormat != "msgpack" && c.Training.ModelFormat != "lightgbm":
		return scigoErrors.NewValidationError("training.model_format", "must be msgpack or lightgbm", c.Training.ModelFormat)
	case c.Inference.MultiplierMin > c.Inference.MultiplierMax:
		return scigoErrors.NewValidationError("inference.multiplier_min", "must not exceed multiplier_max", c.Inference.MultiplierMin)
	case c.Inference.MediumThreshold > c.Inference.HighThreshold:
		return scigoErrors.NewValidationError("inference.medium_threshold", "must not exceed high_threshold", c.Inference.MediumThreshold)
	}
	return nil
}
