package inference

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/ensemble"
	"github.com/YuminosukeSato/farmincome/sklearn/lightgbm"
)

// writeConstantEnsemble stores one tree-less fold model per income, each
// predicting log1p(income) for every input.
func writeConstantEnsemble(t *testing.T, incomes ...float64) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.General.NFolds = len(incomes)
	schema := dataset.NewFeatureSchema(mapperFeatures)

	for i, income := range incomes {
		m := lightgbm.NewModel()
		m.NumFeatures = schema.Len()
		m.FeatureNames = schema.Names()
		m.InitScore = math.Log1p(income)
		require.NoError(t, m.SaveToFile(filepath.Join(dir, ensemble.ModelFileName(ensemble.FormatMsgpack, i+1))))
	}
	defaults := map[string]float64{"Total_Land_For_Agriculture": 5}
	_, err := ensemble.SaveArtifacts(dir, cfg, schema, defaults, nil)
	require.NoError(t, err)
	return dir
}

func TestServicePredict(t *testing.T) {
	dir := writeConstantEnsemble(t, 400000, 600000)
	svc, err := NewService(dir, config.Default())
	require.NoError(t, err)

	resp, err := svc.Predict(context.Background(), DefaultRequest())
	require.NoError(t, err)

	// geometric mean of the fold incomes
	assert.InDelta(t, math.Sqrt(400001*600001)-1, float64(resp.PredictedIncome), 1)
	assert.Equal(t, EligibilityMedium, resp.LoanEligibility)
	require.Len(t, resp.FoldPredictions, 2)
	assert.InDelta(t, 400000, resp.FoldPredictions[0], 1)
	assert.InDelta(t, 600000, resp.FoldPredictions[1], 1)
	assert.Equal(t, len(mapperFeatures), resp.FeaturesUsed)
	assert.NotEqual(t, UnversionedModel, resp.ModelVersion)
	assert.Equal(t, svc.Version(), resp.ModelVersion)
}

func TestServiceIncomeFloor(t *testing.T) {
	svc, err := NewService(writeConstantEnsemble(t, 500), config.Default())
	require.NoError(t, err)

	resp, err := svc.Predict(context.Background(), DefaultRequest())
	require.NoError(t, err)
	assert.Equal(t, 10000, resp.PredictedIncome)
	assert.Equal(t, EligibilityLow, resp.LoanEligibility)
}

func TestServiceSaturatesExtremeIncomes(t *testing.T) {
	svc, err := NewService(writeConstantEnsemble(t, 1e300, 1e300), config.Default())
	require.NoError(t, err)

	resp, err := svc.Predict(context.Background(), DefaultRequest())
	require.NoError(t, err)
	assert.Equal(t, MaxIncome, resp.PredictedIncome)
	assert.Equal(t, []int{MaxIncome, MaxIncome}, resp.FoldPredictions)
	assert.Equal(t, EligibilityHigh, resp.LoanEligibility)
}

func TestWholeIncome(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int
	}{
		{"truncates", 412345.9, 412345},
		{"negative", -0.4, 0},
		{"nan", math.NaN(), 0},
		{"infinite", math.Inf(1), MaxIncome},
		{"above cap", 1e19, MaxIncome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wholeIncome(tt.in))
		})
	}
}

func TestServiceErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewService(filepath.Join(t.TempDir(), "nope"), config.Default())
		assert.Error(t, err)
	})

	t.Run("missing defaults", func(t *testing.T) {
		dir := writeConstantEnsemble(t, 1000)
		require.NoError(t, os.Remove(filepath.Join(dir, ensemble.DefaultsFile)))
		_, err := NewService(dir, config.Default())
		assert.Error(t, err)
	})

	t.Run("missing manifest is tolerated", func(t *testing.T) {
		dir := writeConstantEnsemble(t, 1000)
		require.NoError(t, os.Remove(filepath.Join(dir, ensemble.ManifestFile)))
		svc, err := NewService(dir, config.Default())
		require.NoError(t, err)
		assert.Equal(t, UnversionedModel, svc.Version())
	})

	t.Run("invalid request", func(t *testing.T) {
		svc, err := NewService(writeConstantEnsemble(t, 1000), config.Default())
		require.NoError(t, err)
		req := DefaultRequest()
		req.Season = "Monsoon"
		_, err = svc.Predict(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc, err := NewService(writeConstantEnsemble(t, 1000), config.Default())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = svc.Predict(ctx, DefaultRequest())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestServiceConcurrentPredict(t *testing.T) {
	svc, err := NewService(writeConstantEnsemble(t, 300000, 900000, 500000), config.Default())
	require.NoError(t, err)

	want, err := svc.Predict(context.Background(), DefaultRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Predict(context.Background(), DefaultRequest())
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestEligibility(t *testing.T) {
	cfg := config.Default().Inference
	tests := []struct {
		income int
		want   string
	}{
		{800000, EligibilityHigh},
		{799999, EligibilityMedium},
		{350000, EligibilityMedium},
		{349999, EligibilityLow},
		{10000, EligibilityLow},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.income), func(t *testing.T) {
			assert.Equal(t, tt.want, Eligibility(tt.income, cfg))
		})
	}
}
