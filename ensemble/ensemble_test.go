package ensemble

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
)

type constFold struct {
	fold  int
	value float64
	n     int
}

func (c constFold) Fold() int                   { return c.fold }
func (c constFold) Predict(_ []float64) float64 { return c.value }
func (c constFold) NumFeatures() int            { return c.n }

func trainSingleModel(t *testing.T) (*lightgbm.Model, *mat.Dense) {
	t.Helper()
	X, y := makeIncomeData(120, 11)
	cfg := testConfig(2)
	params := ParamsFromConfig(cfg.Boosting, cfg.General.Seed)
	params.EarlyStopping = 0
	params.NumIterations = 20
	trainer := lightgbm.NewTrainer(params).WithFeatureNames(testFeatureNames)
	require.NoError(t, trainer.Fit(X, mat.NewDense(len(y), 1, y)))
	return trainer.GetModel(), X
}

func writeArtifacts(t *testing.T, dir, format string) *TrainReport {
	t.Helper()
	X, y := makeIncomeData(150, 9)
	cfg := testConfig(3)
	cfg.Training.ModelFormat = format
	report := runFolds(t, cfg, dir, X, y)
	schema := dataset.NewFeatureSchema(testFeatureNames)
	_, err := SaveArtifacts(dir, cfg, schema, map[string]float64{"land": 5}, report)
	require.NoError(t, err)
	return report
}

func TestEnsembleSingleFoldIsIdentity(t *testing.T) {
	model, X := trainSingleModel(t)
	ens, err := NewEnsemble([]FoldModel{NewNativeFold(1, model)}, dataset.NewFeatureSchema(testFeatureNames))
	require.NoError(t, err)

	row := X.RawRowView(0)
	got, err := ens.Predict(row)
	require.NoError(t, err)
	assert.Equal(t, math.Max(0, math.Expm1(model.PredictSingle(row, -1))), got)
}

func TestEnsembleFoldOrder(t *testing.T) {
	schema := dataset.NewFeatureSchema([]string{"a"})
	a, err := NewEnsemble([]FoldModel{constFold{3, 3, 1}, constFold{1, 1, 1}, constFold{2, 2, 1}}, schema)
	require.NoError(t, err)
	b, err := NewEnsemble([]FoldModel{constFold{2, 2, 1}, constFold{1, 1, 1}, constFold{3, 3, 1}}, schema)
	require.NoError(t, err)

	pa, err := a.FoldPredictions([]float64{0})
	require.NoError(t, err)
	pb, err := b.FoldPredictions([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, pa)
	assert.Equal(t, pa, pb)

	logPred, err := a.PredictLog([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, logPred)
}

func TestEnsembleValidation(t *testing.T) {
	schema := dataset.NewFeatureSchema([]string{"a", "b"})

	_, err := NewEnsemble(nil, schema)
	assert.Error(t, err)

	_, err = NewEnsemble([]FoldModel{constFold{1, 0, 3}}, schema)
	assert.Error(t, err)

	_, err = NewEnsemble([]FoldModel{constFold{1, 0, 2}, constFold{1, 0, 2}}, schema)
	assert.Error(t, err)

	ens, err := NewEnsemble([]FoldModel{constFold{1, 0, 2}}, schema)
	require.NoError(t, err)
	_, err = ens.Predict([]float64{1})
	assert.Error(t, err)
}

func TestToIncomeClipsNegative(t *testing.T) {
	assert.Equal(t, 0.0, ToIncome(-3))
	assert.InDelta(t, 99999.0, ToIncome(math.Log1p(99999)), 1e-6)
}

func TestLoad(t *testing.T) {
	for _, format := range []string{FormatMsgpack, FormatLightGBM} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			writeArtifacts(t, dir, format)

			ens, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, 3, ens.NumFolds())
			assert.Equal(t, testFeatureNames, ens.Schema().Names())

			income, err := ens.Predict([]float64{5, 50, 0})
			require.NoError(t, err)
			assert.InDelta(t, 200000+60000*5+1500*50, income, 100000)
		})
	}

	t.Run("both formats agree", func(t *testing.T) {
		native, text := t.TempDir(), t.TempDir()
		writeArtifacts(t, native, FormatMsgpack)
		writeArtifacts(t, text, FormatLightGBM)

		a, err := Load(native)
		require.NoError(t, err)
		b, err := Load(text)
		require.NoError(t, err)

		X, _ := makeIncomeData(20, 99)
		for i := 0; i < 20; i++ {
			pa, err := a.PredictLog(X.RawRowView(i))
			require.NoError(t, err)
			pb, err := b.PredictLog(X.RawRowView(i))
			require.NoError(t, err)
			assert.InDelta(t, pa, pb, 1e-9)
		}
	})

	t.Run("fold files outside the manifest are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, FormatMsgpack)
		stale, _ := trainSingleModel(t)
		require.NoError(t, stale.SaveToFile(filepath.Join(dir, ModelFileName(FormatMsgpack, 9))))
		require.NoError(t, stale.SaveText(filepath.Join(dir, ModelFileName(FormatLightGBM, 1))))

		ens, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 3, ens.NumFolds())
		require.NotNil(t, ens.Manifest())
		assert.Equal(t, 3, ens.Manifest().NFolds)
	})

	t.Run("switching model format", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, FormatMsgpack)
		writeArtifacts(t, dir, FormatLightGBM)

		ens, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 3, ens.NumFolds())
		assert.Equal(t, FormatLightGBM, ens.Manifest().ModelFormat)
	})

	t.Run("fold listed in manifest is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, FormatMsgpack)
		require.NoError(t, os.Remove(filepath.Join(dir, ModelFileName(FormatMsgpack, 2))))

		_, err := Load(dir)
		require.Error(t, err)
		assert.True(t, scigoErrors.Is(err, os.ErrNotExist))
	})

	t.Run("manifest disagrees with schema", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, FormatMsgpack)
		path := filepath.Join(dir, ManifestFile)
		m, err := LoadManifest(path)
		require.NoError(t, err)
		m.NumFeatures = 7
		require.NoError(t, SaveManifest(path, m))

		_, err = Load(dir)
		assert.Error(t, err)
	})

	t.Run("without manifest every fold file is loaded", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, FormatMsgpack)
		require.NoError(t, os.Remove(filepath.Join(dir, ManifestFile)))

		ens, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 3, ens.NumFolds())
		assert.Nil(t, ens.Manifest())
	})

	t.Run("missing schema", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("no fold models", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, dataset.NewFeatureSchema(testFeatureNames).Save(filepath.Join(dir, SchemaFile)))
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("corrupt model", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, dataset.NewFeatureSchema(testFeatureNames).Save(filepath.Join(dir, SchemaFile)))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fold_1.msgpack"), []byte("junk"), 0o644))
		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func TestPredictBatchAndWrite(t *testing.T) {
	schema := dataset.NewFeatureSchema([]string{"a"})
	ens, err := NewEnsemble([]FoldModel{constFold{1, math.Log1p(1000), 1}, constFold{2, math.Log1p(1000), 1}}, schema)
	require.NoError(t, err)

	X := mat.NewDense(2, 1, []float64{1, 2})
	preds, err := ens.PredictBatch(X, []string{"F1", "F2"})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "F2", preds[1].ID)
	assert.InDelta(t, 1000, preds[1].Income, 1e-6)

	_, err = ens.PredictBatch(X, []string{"F1"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "out", "submission.csv")
	require.NoError(t, WritePredictions(path, preds))
	table, err := dataset.ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FarmerID", "Predicted_Income"}, table.Names())
	incomes, ok := table.Floats("Predicted_Income")
	require.True(t, ok)
	assert.InDelta(t, 1000, incomes[0], 1e-6)
}
