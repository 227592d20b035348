package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/dataset"
)

func TestSeasonalInteractions(t *testing.T) {
	pairs := SeasonalPairs("2020")
	kSoil, rSoil := pairs[0].Kharif, pairs[0].Rabi

	train := dataset.NewTable(3)
	require.NoError(t, train.SetFloats(kSoil+"_Black", []float64{1, 1, 0}))
	require.NoError(t, train.SetFloats(rSoil+"_Black", []float64{1, 0, 0}))
	require.NoError(t, train.SetFloats(kSoil+"_Red", []float64{0, 0, 1}))

	test := dataset.NewTable(1)
	require.NoError(t, test.SetFloats(kSoil+"_Black", []float64{1}))

	added, err := SeasonalInteractions(train, []*dataset.Table{train, test}, pairs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soil_Interaction_Black"}, added)

	got, _ := train.Floats("Soil_Interaction_Black")
	assert.Equal(t, []float64{1, 0, 0}, got)
	got, _ = test.Floats("Soil_Interaction_Black")
	assert.Equal(t, []float64{0}, got)
	assert.False(t, train.Has("Soil_Interaction_Red"))
}
