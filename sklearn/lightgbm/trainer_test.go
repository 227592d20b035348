package lightgbm

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// makeRegressionData returns y = 3*x0 - 2*x1 + noise with a few large outliers.
func makeRegressionData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0, x1, x2 := rng.Float64()*10, rng.Float64()*5, rng.NormFloat64()
		X.SetRow(i, []float64{x0, x1, x2})
		target := 3*x0 - 2*x1 + 0.1*rng.NormFloat64()
		if i%50 == 0 {
			target += 100
		}
		y.Set(i, 0, target)
	}
	return X, y
}

func TestTrainerStepFunction(t *testing.T) {
	X := mat.NewDense(100, 1, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		X.Set(i, 0, float64(i))
		if i >= 50 {
			y.Set(i, 0, 10)
		}
	}

	params := DefaultParams()
	params.NumIterations = 1
	params.NumLeaves = 2
	params.LearningRate = 1
	params.MinDataInLeaf = 1

	trainer := NewTrainer(params)
	require.NoError(t, trainer.Fit(X, y))
	model := trainer.GetModel()

	require.Len(t, model.Trees, 1)
	assert.Equal(t, 2, model.Trees[0].NumLeaves)
	assert.Equal(t, 49.5, model.Trees[0].Nodes[0].Threshold)
	assert.InDelta(t, 0.0, model.PredictSingle([]float64{10}, -1), 1e-9)
	assert.InDelta(t, 10.0, model.PredictSingle([]float64{75}, -1), 1e-9)
	assert.InDelta(t, 5.0, model.PredictSingle([]float64{75}, 0), 1e-9, "zero trees gives the init score")
}

func TestTrainerL1(t *testing.T) {
	X, y := makeRegressionData(500, 1)

	params := DefaultParams()
	params.Objective = "regression_l1"
	params.NumIterations = 200
	params.LearningRate = 0.1
	params.NumLeaves = 15
	params.Seed = 42

	trainer := NewTrainer(params)
	require.NoError(t, trainer.Fit(X, y))
	model := trainer.GetModel()

	assert.Equal(t, RegressionL1, model.Objective)
	assert.Equal(t, []string{"Column_0", "Column_1", "Column_2"}, model.FeatureNames)

	t.Run("init score is the label median", func(t *testing.T) {
		labels := mat.Col(nil, 0, y)
		assert.InDelta(t, median(labels), model.InitScore, 1e-12)
	})

	t.Run("outliers do not pull the fit", func(t *testing.T) {
		pred, err := model.Predict(X)
		require.NoError(t, err)
		var errs []float64
		for i := 0; i < 500; i++ {
			if i%50 != 0 {
				errs = append(errs, math.Abs(pred.AtVec(i)-y.At(i, 0)))
			}
		}
		assert.Less(t, median(errs), 1.5)
	})

	t.Run("incremental scores match model predictions", func(t *testing.T) {
		row := make([]float64, 3)
		for i := 0; i < 500; i += 7 {
			mat.Row(row, i, X)
			assert.InDelta(t, model.PredictSingle(row, -1), trainer.scores[i], 1e-9)
		}
	})

	t.Run("feature importance favours informative features", func(t *testing.T) {
		gain := model.GetFeatureImportance("gain")
		require.Len(t, gain, 3)
		assert.InDelta(t, 1.0, gain[0]+gain[1]+gain[2], 1e-9)
		assert.Greater(t, gain[0], gain[2])
		assert.Greater(t, gain[1], gain[2])
	})
}

func TestTrainerTreeShape(t *testing.T) {
	X, y := makeRegressionData(400, 2)

	params := DefaultParams()
	params.NumIterations = 10
	params.NumLeaves = 8
	params.MaxDepth = 2
	params.MinDataInLeaf = 5

	trainer := NewTrainer(params)
	require.NoError(t, trainer.Fit(X, y))

	for _, tree := range trainer.GetModel().Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 4, "max_depth 2 allows at most 4 leaves")
		leaves := 0
		for _, node := range tree.Nodes {
			assert.LessOrEqual(t, node.Depth, 2)
			if node.IsLeaf() {
				leaves++
				assert.GreaterOrEqual(t, node.Count, 5)
			}
		}
		assert.Equal(t, tree.NumLeaves, leaves)
		assert.Equal(t, 2*leaves-1, len(tree.Nodes))
	}
}

func TestTrainerBaggingDeterminism(t *testing.T) {
	X, y := makeRegressionData(300, 3)

	params := DefaultParams()
	params.Objective = "regression_l1"
	params.NumIterations = 30
	params.BaggingFraction = 0.7
	params.BaggingFreq = 1
	params.FeatureFraction = 0.67
	params.Seed = 42

	fit := func() *mat.VecDense {
		trainer := NewTrainer(params)
		require.NoError(t, trainer.Fit(X, y))
		pred, err := trainer.GetModel().Predict(X)
		require.NoError(t, err)
		return pred
	}

	assert.True(t, mat.Equal(fit(), fit()))
}

func TestTrainerEarlyStopping(t *testing.T) {
	X, y := makeRegressionData(400, 4)
	XVal, yVal := makeRegressionData(100, 5)
	// unrelated validation target makes the model overfit quickly
	rng := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 100; i++ {
		yVal.Set(i, 0, rng.Float64()*20)
	}

	params := DefaultParams()
	params.Objective = "regression_l1"
	params.Metric = "mape"
	params.NumIterations = 300
	params.EarlyStopping = 10

	trainer := NewTrainer(params)
	require.NoError(t, trainer.FitWithValidation(X, y, &ValidationData{X: XVal, Y: yVal}))
	model := trainer.GetModel()
	history := trainer.EvalHistory()

	require.GreaterOrEqual(t, model.BestIteration, 0)
	assert.Len(t, model.Trees, model.BestIteration+1)
	assert.Equal(t, slices.Min(history), history[model.BestIteration])
	assert.Equal(t, history[model.BestIteration], model.BestScore)
	if len(history) < params.NumIterations {
		assert.Len(t, history, model.BestIteration+1+params.EarlyStopping)
	}
}

func TestTrainerErrors(t *testing.T) {
	X, y := makeRegressionData(50, 6)

	t.Run("label rows mismatch", func(t *testing.T) {
		err := NewTrainer(DefaultParams()).Fit(X, mat.NewDense(10, 1, nil))
		assert.Error(t, err)
	})

	t.Run("non finite labels", func(t *testing.T) {
		bad := mat.DenseCopyOf(y)
		bad.Set(3, 0, math.NaN())
		assert.Error(t, NewTrainer(DefaultParams()).Fit(X, bad))
	})

	t.Run("unknown objective", func(t *testing.T) {
		p := DefaultParams()
		p.Objective = "lambdarank"
		assert.Error(t, NewTrainer(p).Fit(X, y))
	})

	t.Run("unknown metric with validation", func(t *testing.T) {
		p := DefaultParams()
		p.Metric = "auc_mu"
		err := NewTrainer(p).FitWithValidation(X, y, &ValidationData{X: X, Y: y})
		assert.Error(t, err)
	})

	t.Run("feature name count", func(t *testing.T) {
		err := NewTrainer(DefaultParams()).WithFeatureNames([]string{"a"}).Fit(X, y)
		assert.Error(t, err)
	})

	t.Run("prediction width", func(t *testing.T) {
		trainer := NewTrainer(TrainingParams{NumIterations: 2})
		require.NoError(t, trainer.Fit(X, y))
		_, err := trainer.GetModel().Predict(mat.NewDense(2, 5, nil))
		assert.Error(t, err)
	})
}
