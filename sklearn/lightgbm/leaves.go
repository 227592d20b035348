package lightgbm

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/dmitryikh/leaves"
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// LeavesModel is a LightGBM text model evaluated by github.com/dmitryikh/leaves.
// Predictions are raw scores; the objective transformation is not applied.
type LeavesModel struct {
	ensemble     *leaves.Ensemble
	featureNames []string
}

// LoadLeavesModel loads a LightGBM text model from a file
func LoadLeavesModel(path string) (*LeavesModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("model", path, err)
	}
	defer f.Close()

	m, err := LoadLeavesModelFromReader(f)
	if err != nil {
		return nil, scigoErrors.NewArtifactError("model", path, err)
	}
	return m, nil
}

// LoadLeavesModelFromReader loads a LightGBM text model from a reader
func LoadLeavesModelFromReader(r io.Reader) (*LeavesModel, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "failed to read model")
	}
	ensemble, err := leaves.LGEnsembleFromReader(bufio.NewReader(bytes.NewReader(raw)), false)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "failed to parse LightGBM model")
	}
	return &LeavesModel{
		ensemble:     ensemble,
		featureNames: headerFeatureNames(raw),
	}, nil
}

// headerFeatureNames reads the feature_names line of the model header.
func headerFeatureNames(raw []byte) []string {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if names, ok := strings.CutPrefix(line, "feature_names="); ok {
			return strings.Fields(names)
		}
	}
	return nil
}

// PredictSingle returns the raw score of one sample using all trees
func (m *LeavesModel) PredictSingle(features []float64) float64 {
	return m.ensemble.PredictSingle(features, 0)
}

// Predict makes predictions for a batch of samples
func (m *LeavesModel) Predict(X mat.Matrix) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	if cols != m.NFeatures() {
		return nil, scigoErrors.NewDimensionError("LeavesModel.Predict", m.NFeatures(), cols, 1)
	}
	out := mat.NewVecDense(rows, nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		out.SetVec(i, m.PredictSingle(features))
	}
	return out, nil
}

// NFeatures returns the number of features the model expects
func (m *LeavesModel) NFeatures() int {
	return m.ensemble.NFeatures()
}

// NumTrees returns the number of trees in the ensemble
func (m *LeavesModel) NumTrees() int {
	return m.ensemble.NEstimators()
}

// FeatureNames returns the feature names from the model header
func (m *LeavesModel) FeatureNames() []string {
	return m.featureNames
}
