package ensemble

import (
	"cmp"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
)

// Model file formats.
const (
	FormatMsgpack  = "msgpack"
	FormatLightGBM = "lightgbm"
)

// ModelFileName returns the artifact name of fold (1-based) in format.
func ModelFileName(format string, fold int) string {
	if format == FormatLightGBM {
		return fmt.Sprintf("lgb_fold%d.txt", fold)
	}
	return fmt.Sprintf("fold_%d.msgpack", fold)
}

var modelFilePattern = regexp.MustCompile(`^(?:fold_(\d+)\.msgpack|lgb_fold(\d+)\.txt)$`)

// FoldModel is one trained fold. Predict returns the log-scale prediction.
type FoldModel interface {
	Fold() int
	Predict(features []float64) float64
	NumFeatures() int
}

type nativeFold struct {
	fold  int
	model *lightgbm.Model
}

// NewNativeFold wraps a model trained in this process.
func NewNativeFold(fold int, m *lightgbm.Model) FoldModel {
	return &nativeFold{fold: fold, model: m}
}

func (f *nativeFold) Fold() int                          { return f.fold }
func (f *nativeFold) Predict(features []float64) float64 { return f.model.PredictSingle(features, -1) }
func (f *nativeFold) NumFeatures() int                   { return f.model.NumFeatures }

type leavesFold struct {
	fold  int
	model *lightgbm.LeavesModel
}

func (f *leavesFold) Fold() int                          { return f.fold }
func (f *leavesFold) Predict(features []float64) float64 { return f.model.PredictSingle(features) }
func (f *leavesFold) NumFeatures() int                   { return f.model.NFeatures() }

// Prediction is one row of the batch output.
type Prediction struct {
	ID     string
	Income float64
}

// Ensemble averages fold models. It is immutable after construction and
// safe for concurrent use.
type Ensemble struct {
	folds    []FoldModel
	schema   *dataset.FeatureSchema
	manifest *Manifest
	logger   log.Logger
}

// NewEnsemble orders folds by fold index. Every fold must accept
// schema.Len() features.
func NewEnsemble(folds []FoldModel, schema *dataset.FeatureSchema) (*Ensemble, error) {
	if len(folds) == 0 {
		return nil, scigoErrors.NewModelError("NewEnsemble", "no fold models", scigoErrors.ErrEmptyData)
	}
	sorted := slices.Clone(folds)
	slices.SortFunc(sorted, func(a, b FoldModel) int { return cmp.Compare(a.Fold(), b.Fold()) })
	for i, f := range sorted {
		if i > 0 && sorted[i-1].Fold() == f.Fold() {
			return nil, scigoErrors.NewModelError("NewEnsemble", fmt.Sprintf("fold %d loaded twice", f.Fold()), nil)
		}
		if f.NumFeatures() != schema.Len() {
			return nil, scigoErrors.NewDimensionError(fmt.Sprintf("NewEnsemble(fold %d)", f.Fold()), schema.Len(), f.NumFeatures(), 1)
		}
	}
	return &Ensemble{
		folds:  sorted,
		schema: schema,
		logger: log.GetLoggerWithName("ensemble.predictor"),
	}, nil
}

// Load reads the feature schema and the fold models in dir. With a manifest
// exactly folds 1..NFolds in its model format are loaded and any other fold
// file is ignored; a listed fold that is missing is an error. Without a
// manifest every fold file in dir is loaded.
func Load(dir string) (*Ensemble, error) {
	schema, err := dataset.LoadFeatureSchema(filepath.Join(dir, SchemaFile))
	if err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("ensemble.predictor")

	manifestPath := filepath.Join(dir, ManifestFile)
	manifest, err := LoadManifest(manifestPath)
	var folds []FoldModel
	switch {
	case err == nil:
		folds, err = loadListedFolds(dir, manifest, schema)
	case scigoErrors.Is(err, os.ErrNotExist):
		logger.Warn("manifest not found, loading every fold file", log.PathKey, manifestPath)
		manifest = nil
		folds, err = loadAllFolds(dir)
	}
	if err != nil {
		return nil, err
	}

	ens, err := NewEnsemble(folds, schema)
	if err != nil {
		return nil, err
	}
	ens.manifest = manifest
	ens.logger.Info("ensemble loaded", log.PathKey, dir, "n_folds", len(folds), log.FeaturesKey, schema.Len())
	return ens, nil
}

func loadListedFolds(dir string, m *Manifest, schema *dataset.FeatureSchema) ([]FoldModel, error) {
	path := filepath.Join(dir, ManifestFile)
	switch {
	case m.NFolds < 1:
		return nil, scigoErrors.NewArtifactError("manifest", path, scigoErrors.Newf("n_folds must be positive, got %d", m.NFolds))
	case m.ModelFormat != FormatMsgpack && m.ModelFormat != FormatLightGBM:
		return nil, scigoErrors.NewArtifactError("manifest", path, scigoErrors.Newf("unknown model_format %q", m.ModelFormat))
	case m.NumFeatures != schema.Len():
		return nil, scigoErrors.NewArtifactError("manifest", path, scigoErrors.NewDimensionError("manifest.num_features", schema.Len(), m.NumFeatures, 1))
	}

	folds := make([]FoldModel, 0, m.NFolds)
	listed := make(map[string]bool, m.NFolds)
	for k := 1; k <= m.NFolds; k++ {
		name := ModelFileName(m.ModelFormat, k)
		f, err := loadFold(filepath.Join(dir, name), k)
		if err != nil {
			return nil, err
		}
		folds = append(folds, f)
		listed[name] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("model", dir, err)
	}
	logger := log.GetLoggerWithName("ensemble.predictor")
	for _, e := range entries {
		if !e.IsDir() && modelFilePattern.MatchString(e.Name()) && !listed[e.Name()] {
			logger.Warn("ignoring fold file not listed in manifest", log.PathKey, filepath.Join(dir, e.Name()))
		}
	}
	return folds, nil
}

func loadAllFolds(dir string) ([]FoldModel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("model", dir, err)
	}
	var folds []FoldModel
	for _, e := range entries {
		m := modelFilePattern.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		k, _ := strconv.Atoi(m[1] + m[2])
		f, err := loadFold(filepath.Join(dir, e.Name()), k)
		if err != nil {
			return nil, err
		}
		folds = append(folds, f)
	}
	if len(folds) == 0 {
		return nil, scigoErrors.NewArtifactError("model", dir, scigoErrors.New("no fold models found"))
	}
	return folds, nil
}

// loadFold reads a native msgpack or a LightGBM text model, chosen by the
// file extension.
func loadFold(path string, fold int) (FoldModel, error) {
	if filepath.Ext(path) == ".txt" {
		model, err := lightgbm.LoadLeavesModel(path)
		if err != nil {
			return nil, scigoErrors.NewArtifactError("model", path, err)
		}
		return &leavesFold{fold: fold, model: model}, nil
	}
	model, err := lightgbm.LoadFromFile(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("model", path, err)
	}
	return NewNativeFold(fold, model), nil
}

// Manifest returns the manifest the ensemble was loaded with, nil when the
// directory had none.
func (e *Ensemble) Manifest() *Manifest { return e.manifest }

// Schema returns the feature schema the fold models expect.
func (e *Ensemble) Schema() *dataset.FeatureSchema { return e.schema }

// NumFolds returns the number of fold models.
func (e *Ensemble) NumFolds() int { return len(e.folds) }

// FoldPredictions returns each fold's log-scale prediction in fold order.
func (e *Ensemble) FoldPredictions(features []float64) ([]float64, error) {
	if len(features) != e.schema.Len() {
		return nil, scigoErrors.NewDimensionError("Ensemble.FoldPredictions", e.schema.Len(), len(features), 1)
	}
	out := make([]float64, len(e.folds))
	for i, f := range e.folds {
		out[i] = f.Predict(features)
	}
	return out, nil
}

// PredictLog returns the mean of the fold predictions on the log scale.
func (e *Ensemble) PredictLog(features []float64) (float64, error) {
	preds, err := e.FoldPredictions(features)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, p := range preds {
		sum += p
	}
	return sum / float64(len(preds)), nil
}

// Predict returns the income estimate for one feature vector:
// expm1 of the mean log prediction, clipped at 0.
func (e *Ensemble) Predict(features []float64) (float64, error) {
	logPred, err := e.PredictLog(features)
	if err != nil {
		return 0, err
	}
	return ToIncome(logPred), nil
}

// ToIncome maps a log1p-scale prediction back to income, clipped at 0.
func ToIncome(logPred float64) float64 {
	return math.Max(0, scigoErrors.StabilizeExpm1(logPred))
}

// PredictBatch predicts every row of X. ids labels the rows.
func (e *Ensemble) PredictBatch(X mat.Matrix, ids []string) (out []Prediction, err error) {
	defer scigoErrors.Recover(&err, "Ensemble.PredictBatch")

	rows, cols := X.Dims()
	if cols != e.schema.Len() {
		return nil, scigoErrors.NewDimensionError("Ensemble.PredictBatch", e.schema.Len(), cols, 1)
	}
	if len(ids) != rows {
		return nil, scigoErrors.NewDimensionError("Ensemble.PredictBatch", rows, len(ids), 0)
	}

	out = make([]Prediction, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		income, err := e.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = Prediction{ID: ids[i], Income: income}
	}
	e.logger.Info("batch predicted", log.OperationKey, log.OperationPredict, log.PredsKey, rows)
	return out, nil
}

// WritePredictions writes preds as a FarmerID,Predicted_Income CSV.
func WritePredictions(path string, preds []Prediction) error {
	ids := make([]string, len(preds))
	incomes := make([]float64, len(preds))
	for i, p := range preds {
		ids[i] = p.ID
		incomes[i] = p.Income
	}
	t := dataset.NewTable(len(preds))
	if err := t.SetStrings("FarmerID", ids); err != nil {
		return err
	}
	if err := t.SetFloats("Predicted_Income", incomes); err != nil {
		return err
	}
	return dataset.WriteCSVFile(path, t)
}
