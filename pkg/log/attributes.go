// Package log defines standard attribute keys.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "training.fold") so log lines from the pipeline, the trainer and the
// inference service can be filtered the same way.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or transformer type.
	ModelNameKey = "model.name"

	// ModelVersionKey carries the ensemble version id from the manifest.
	ModelVersionKey = "model.version"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "map"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	ColumnsKey  = "data.columns"
	PathKey     = "data.path"
)

// Training progress and metrics.
const (
	FoldKey          = "training.fold"
	FoldStateKey     = "training.fold_state"
	IterationKey     = "training.iteration"
	BestIterationKey = "training.best_iteration"
	LossKey          = "metrics.loss"
	TrainMAPEKey     = "metrics.train_mape"
	ValMAPEKey       = "metrics.val_mape"
	GapKey           = "metrics.gap"
	DurationMsKey    = "perf.duration_ms"
)

// Prediction context.
const (
	PredsKey      = "preds.count"
	IncomeKey     = "preds.income"
	MultiplierKey = "preds.prosperity_multiplier"
)

// Error context.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
	ErrorTypeKey  = "error.type"
)

// Configuration.
const (
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Standard operation values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationMap          = "map"
)

// Standard phase values.
const (
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
)
