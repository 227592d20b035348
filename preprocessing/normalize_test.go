package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/dataset"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Target_Variable/Total Income", "Target_Variable_Total_Income"},
		{"K022-Proximity to nearest mandi (Km)", "K022_Proximity_to_nearest_mandi_Km"},
		{" Night light index", "Night_light_index"},
		{"Kharif Seasons  Type of soil in 2022", "Kharif_Seasons_Type_of_soil_in_2022"},
		{" Land Holding Index source (Total Agri Area/ no of people)", "Land_Holding_Index_source_Total_Agri_Area_no_of_people"},
		{"already_clean", "already_clean"},
		{"__x__", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
			assert.Equal(t, tt.want, NormalizeName(NormalizeName(tt.in)), "idempotent")
		})
	}
}

func TestNormalizeColumns(t *testing.T) {
	tbl := dataset.NewTable(1)
	require.NoError(t, tbl.SetFloats(" Road density (Km/ SqKm)", []float64{1}))
	require.NoError(t, tbl.SetFloats("Road density Km SqKm", []float64{2}))
	NormalizeColumns(tbl)
	assert.Equal(t, []string{"Road_density_Km_SqKm", "Road_density_Km_SqKm_1"}, tbl.Names())
}

func TestParseTemperature(t *testing.T) {
	tbl := dataset.NewTable(4)
	require.NoError(t, tbl.SetStrings("temp", []string{"18 & 32", "20/35", "", "bad"}))

	ParseTemperature(tbl, []string{"temp", "absent"})

	assert.False(t, tbl.Has("temp"))
	lo, _ := tbl.Floats("temp_min")
	hi, _ := tbl.Floats("temp_max")
	rng, _ := tbl.Floats("temp_range")

	assert.Equal(t, []float64{18, 20}, lo[:2])
	assert.Equal(t, []float64{32, 35}, hi[:2])
	assert.Equal(t, []float64{14, 15}, rng[:2])
	assert.True(t, math.IsNaN(lo[2]))
	assert.True(t, math.IsNaN(rng[3]))
}
