package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarlyStopping(t *testing.T) {
	t.Run("stops after patience rounds without strict improvement", func(t *testing.T) {
		es := NewEarlyStopping(3, "mape")
		require.True(t, es.Enabled)
		assert.True(t, es.Minimize)

		scores := []float64{0.5, 0.4, 0.4, 0.45, 0.41}
		stopped := -1
		for i, s := range scores {
			if es.Update(i, s) {
				stopped = i
				break
			}
		}
		assert.Equal(t, 4, stopped)
		assert.Equal(t, 1, es.GetBestIteration())
		assert.Equal(t, 0.4, es.BestScore)
		assert.True(t, es.ShouldStop())
	})

	t.Run("higher is better metrics", func(t *testing.T) {
		es := NewEarlyStopping(2, "r2")
		assert.False(t, es.Minimize)
		es.Update(0, 0.1)
		es.Update(1, 0.3)
		assert.Equal(t, 1, es.GetBestIteration())
	})

	t.Run("disabled", func(t *testing.T) {
		es := NewEarlyStopping(0, "l2")
		assert.False(t, es.Update(0, 1))
		assert.False(t, es.ShouldStop())
		assert.Equal(t, -1, es.GetBestIteration())
	})
}

func TestEvaluators(t *testing.T) {
	labels := []float64{0.5, 2, 10}
	preds := []float64{1, 1, 12}

	testCases := []struct {
		metric   string
		expected float64
	}{
		// |0.5-1|/1 + |2-1|/2 + |10-12|/10
		{"mape", (0.5 + 0.5 + 0.2) / 3},
		{"l1", (0.5 + 1 + 2) / 3},
		{"mae", (0.5 + 1 + 2) / 3},
		{"l2", (0.25 + 1 + 4) / 3},
		{"rmse", math.Sqrt((0.25 + 1 + 4) / 3)},
	}

	for _, tc := range testCases {
		t.Run(tc.metric, func(t *testing.T) {
			eval, err := newEvaluator(tc.metric)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, eval(labels, preds), 1e-12)
		})
	}

	_, err := newEvaluator("ndcg")
	assert.Error(t, err)
}
