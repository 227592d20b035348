package lightgbm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteError(t *testing.T) {
	obj, err := CreateObjectiveFunction("regression_l1")
	require.NoError(t, err)

	t.Run("gradient is the sign of score minus label", func(t *testing.T) {
		cases := []struct {
			score, label, want float64
		}{
			{score: 12.9, label: 12.2, want: 1},
			{score: 11.0, label: 13.5, want: -1},
			{score: 12.5, label: 12.5, want: 0},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.want, obj.Gradient(tc.score, tc.label))
			assert.Equal(t, 1.0, obj.Hessian(tc.score, tc.label))
		}
	})

	t.Run("loss", func(t *testing.T) {
		assert.InDelta(t, 0.7, obj.Loss(12.9, 12.2), 1e-12)
		assert.InDelta(t, 0.7, obj.Loss(12.2, 12.9), 1e-12)
	})

	t.Run("init score is the median log income", func(t *testing.T) {
		assert.InDelta(t, 12.5, obj.InitScore([]float64{13.1, 11.8, 12.5, 15.0, 12.0}), 1e-12)
		assert.InDelta(t, 12.25, obj.InitScore([]float64{13.0, 11.0, 12.5, 12.0}), 1e-12)
		assert.Equal(t, 0.0, obj.InitScore(nil))
	})

	t.Run("leaves move to the median residual", func(t *testing.T) {
		renewer, ok := obj.(LeafRenewer)
		require.True(t, ok)
		residuals := []float64{-2, 0.1, 0.3, 4}
		assert.InDelta(t, 0.2, renewer.RenewLeaf(residuals), 1e-12)
		assert.Equal(t, []float64{-2, 0.1, 0.3, 4}, residuals, "input must not be reordered")
	})

	assert.Equal(t, string(RegressionL1), obj.Name())
}

func TestSquaredError(t *testing.T) {
	obj, err := CreateObjectiveFunction("regression")
	require.NoError(t, err)

	assert.InDelta(t, 0.5, obj.Gradient(12.5, 12.0), 1e-12)
	assert.InDelta(t, -1.5, obj.Gradient(11.0, 12.5), 1e-12)
	assert.Equal(t, 1.0, obj.Hessian(11.0, 12.5))
	assert.InDelta(t, 2.0, obj.Loss(14.0, 12.0), 1e-12)
	assert.InDelta(t, 12.0, obj.InitScore([]float64{11, 12, 13}), 1e-12)
	assert.Equal(t, 0.0, obj.InitScore(nil))

	_, renews := obj.(LeafRenewer)
	assert.False(t, renews)
}

func TestCreateObjectiveFunction(t *testing.T) {
	cases := []struct {
		alias string
		want  ObjectiveType
	}{
		{"regression_l1", RegressionL1},
		{"l1", RegressionL1},
		{"mae", RegressionL1},
		{"mean_absolute_error", RegressionL1},
		{"regression", RegressionL2},
		{"regression_l2", RegressionL2},
		{"l2", RegressionL2},
		{"mse", RegressionL2},
	}
	for _, tc := range cases {
		t.Run(tc.alias, func(t *testing.T) {
			obj, err := CreateObjectiveFunction(tc.alias)
			require.NoError(t, err)
			assert.Equal(t, string(tc.want), obj.Name())
		})
	}

	for _, name := range []string{"huber", "quantile", "binary", ""} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := CreateObjectiveFunction(name)
			assert.Error(t, err)
		})
	}
}
