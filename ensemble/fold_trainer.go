// Package ensemble trains one gradient-boosted model per cross-validation
// fold, persists the fold models with their schema and defaults, and
// averages them at prediction time.
package ensemble

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/core/parallel"
	"github.com/YuminosukeSato/farmincome/metrics"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

// FoldState is a step of the per-fold state machine.
type FoldState int

const (
	StateSplit FoldState = iota
	StateTrain
	StateEvaluate
	StatePersist
	StateDone
)

func (s FoldState) String() string {
	switch s {
	case StateSplit:
		return "SPLIT"
	case StateTrain:
		return "TRAIN"
	case StateEvaluate:
		return "EVALUATE"
	case StatePersist:
		return "PERSIST"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// FoldResult holds the metrics of one fold. MAPE values are percentages.
type FoldResult struct {
	Fold          int     `yaml:"fold" json:"fold"`
	TrainMAPELog  float64 `yaml:"train_mape_log" json:"train_mape_log"`
	ValMAPELog    float64 `yaml:"val_mape_log" json:"val_mape_log"`
	GapLog        float64 `yaml:"gap_log" json:"gap_log"`
	TrainMAPEReal float64 `yaml:"train_mape_real" json:"train_mape_real"`
	ValMAPEReal   float64 `yaml:"val_mape_real" json:"val_mape_real"`
	BestIteration int     `yaml:"best_iteration" json:"best_iteration"`
	NumTrees      int     `yaml:"num_trees" json:"num_trees"`
	ModelFile     string  `yaml:"model_file" json:"model_file"`
}

// FoldTrainer drives every fold through SPLIT, TRAIN, EVALUATE and PERSIST.
type FoldTrainer struct {
	params        lightgbm.TrainingParams
	dir           string
	modelFormat   string
	parallelFolds int
	stdThreshold  float64
	gapThreshold  float64
	featureNames  []string
	logger        log.Logger
}

// NewFoldTrainer creates a trainer that writes fold models into dir.
func NewFoldTrainer(cfg *config.Config, dir string, featureNames []string) *FoldTrainer {
	return &FoldTrainer{
		params:        ParamsFromConfig(cfg.Boosting, cfg.General.Seed),
		dir:           dir,
		modelFormat:   cfg.Training.ModelFormat,
		parallelFolds: cfg.Training.ParallelFolds,
		stdThreshold:  cfg.Training.StabilityStdThreshold,
		gapThreshold:  cfg.Training.GapThreshold,
		featureNames:  featureNames,
		logger:        log.GetLoggerWithName("ensemble.fold_trainer").With(log.PhaseKey, log.PhaseTraining),
	}
}

// WithParams replaces the boosting parameters.
func (ft *FoldTrainer) WithParams(p lightgbm.TrainingParams) *FoldTrainer {
	ft.params = p
	return ft
}

// foldRun is the mutable state of one fold while it moves through the
// state machine.
type foldRun struct {
	fold  int // 1-based
	split model_selection.CVFold
	state FoldState

	xTrain, xVal *mat.Dense
	yTrain, yVal []float64

	model  *lightgbm.Model
	result FoldResult
}

// Run trains one model per fold of folds on X and the log-scale target y.
// Folds run concurrently when parallel_folds > 1. A cancelled ctx stops
// before the next fold starts; models already persisted stay on disk.
func (ft *FoldTrainer) Run(ctx context.Context, X *mat.Dense, y []float64, folds *model_selection.FoldAssignment) (report *TrainReport, err error) {
	defer scigoErrors.Recover(&err, "FoldTrainer.Run")

	rows, cols := X.Dims()
	if rows != len(y) {
		return nil, scigoErrors.NewDimensionError("FoldTrainer.Run", rows, len(y), 0)
	}
	if folds.NSamples() != rows {
		return nil, scigoErrors.NewDimensionError("FoldTrainer.Run", rows, folds.NSamples(), 0)
	}
	if len(ft.featureNames) != cols {
		return nil, scigoErrors.NewDimensionError("FoldTrainer.Run", cols, len(ft.featureNames), 1)
	}
	if err := os.MkdirAll(ft.dir, 0o755); err != nil {
		return nil, scigoErrors.NewArtifactError("model", ft.dir, err)
	}

	ft.logger.Info("training folds",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_folds", folds.NSplits(),
		"parallel_folds", ft.parallelFolds)

	oof := NewOOFBuffer(rows)
	runs := make([]*foldRun, folds.NSplits())
	err = parallel.ForEach(len(runs), max(1, ft.parallelFolds), func(i int) error {
		run := &foldRun{fold: i + 1, split: folds.Folds[i], state: StateSplit}
		runs[i] = run
		return ft.runFold(ctx, run, X, y, oof)
	})
	if err != nil {
		return nil, err
	}
	if err := oof.Complete(); err != nil {
		return nil, err
	}

	results := make([]FoldResult, len(runs))
	models := make([]*lightgbm.Model, len(runs))
	for i, run := range runs {
		results[i] = run.result
		models[i] = run.model
	}
	return ft.summarize(results, models, y, oof.Values())
}

// runFold advances one fold until DONE.
func (ft *FoldTrainer) runFold(ctx context.Context, run *foldRun, X *mat.Dense, y []float64, oof *OOFBuffer) error {
	if err := ctx.Err(); err != nil {
		return scigoErrors.Wrapf(err, "fold %d not started", run.fold)
	}
	logger := ft.logger.With(log.FoldKey, run.fold)
	start := time.Now()

	for run.state != StateDone {
		logger.Debug("fold state", log.FoldStateKey, run.state.String())
		var err error
		switch run.state {
		case StateSplit:
			run.xTrain, run.yTrain = subset(X, y, run.split.TrainIndices)
			run.xVal, run.yVal = subset(X, y, run.split.TestIndices)
			run.state = StateTrain
		case StateTrain:
			err = ft.train(run)
			run.state = StateEvaluate
		case StateEvaluate:
			err = ft.evaluate(run, oof)
			run.state = StatePersist
		case StatePersist:
			err = ft.persist(run)
			run.state = StateDone
		}
		if err != nil {
			return scigoErrors.Wrapf(err, "fold %d", run.fold)
		}
	}

	logger.Info("fold finished",
		log.TrainMAPEKey, run.result.TrainMAPELog,
		log.ValMAPEKey, run.result.ValMAPELog,
		log.GapKey, run.result.GapLog,
		"val_mape_real", run.result.ValMAPEReal,
		log.BestIterationKey, run.result.BestIteration,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

func (ft *FoldTrainer) train(run *foldRun) error {
	trainer := lightgbm.NewTrainer(ft.params).WithFeatureNames(ft.featureNames)
	yTrain := mat.NewDense(len(run.yTrain), 1, run.yTrain)
	yVal := mat.NewDense(len(run.yVal), 1, run.yVal)
	if err := trainer.FitWithValidation(run.xTrain, yTrain, &lightgbm.ValidationData{X: run.xVal, Y: yVal}); err != nil {
		return scigoErrors.NewModelError("FoldTrainer.train", "fit failed", err)
	}
	run.model = trainer.GetModel()
	return nil
}

func (ft *FoldTrainer) evaluate(run *foldRun, oof *OOFBuffer) error {
	trainPred, err := run.model.Predict(run.xTrain)
	if err != nil {
		return err
	}
	valPred, err := run.model.Predict(run.xVal)
	if err != nil {
		return err
	}
	for k, row := range run.split.TestIndices {
		if err := oof.Write(row, valPred.AtVec(k)); err != nil {
			return err
		}
	}

	r := &run.result
	r.Fold = run.fold
	r.BestIteration = run.model.BestIteration
	r.NumTrees = run.model.NumIterations()
	trainTrue := mat.NewVecDense(len(run.yTrain), run.yTrain)
	valTrue := mat.NewVecDense(len(run.yVal), run.yVal)
	if r.TrainMAPELog, err = metrics.MAPE(trainTrue, trainPred); err != nil {
		return err
	}
	if r.ValMAPELog, err = metrics.MAPE(valTrue, valPred); err != nil {
		return err
	}
	r.GapLog = r.ValMAPELog - r.TrainMAPELog
	if r.TrainMAPEReal, err = metrics.MAPE(expm1Vec(trainTrue), expm1Vec(trainPred)); err != nil {
		return err
	}
	if r.ValMAPEReal, err = metrics.MAPE(expm1Vec(valTrue), expm1Vec(valPred)); err != nil {
		return err
	}
	return nil
}

func (ft *FoldTrainer) persist(run *foldRun) error {
	name := ModelFileName(ft.modelFormat, run.fold)
	path := filepath.Join(ft.dir, name)
	var err error
	if ft.modelFormat == FormatLightGBM {
		err = run.model.SaveText(path)
	} else {
		err = run.model.SaveToFile(path)
	}
	if err != nil {
		return err
	}
	run.result.ModelFile = name
	return nil
}

// subset copies the rows idx of X and y.
func subset(X *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	target := make([]float64, len(idx))
	for k, i := range idx {
		out.SetRow(k, X.RawRowView(i))
		target[k] = y[i]
	}
	return out, target
}

func expm1Vec(v mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		out.SetVec(i, scigoErrors.StabilizeExpm1(v.AtVec(i)))
	}
	return out
}

// expm1Slice maps log-scale values back to income. Negative incomes are
// kept so that diagnostics match the raw model output.
func expm1Slice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = scigoErrors.StabilizeExpm1(v)
	}
	return out
}
