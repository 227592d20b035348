package preprocessing

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

func TestImputerUsesTrainingStatistics(t *testing.T) {
	nan := math.NaN()
	train := dataset.NewTable(5)
	require.NoError(t, train.SetFloats("land", []float64{1, 2, nan, 10, 4}))
	require.NoError(t, train.SetStrings("sex", []string{"M", "F", "F", "", "M"}))
	require.NoError(t, train.SetStrings("empty", []string{"", "", "", "", ""}))
	require.NoError(t, train.SetFloats("target", []float64{nan, 1, 1, 1, 1}))

	im := NewImputer()
	require.NoError(t, im.Fit(train, []string{"target"}))
	assert.Equal(t, 3.0, im.Medians["land"])
	assert.Equal(t, "F", im.Modes["sex"], "tie broken by smallest category")
	assert.Equal(t, UnknownCategory, im.Modes["empty"])
	_, hasTarget := im.Medians["target"]
	assert.False(t, hasTarget)

	test := dataset.NewTable(2)
	require.NoError(t, test.SetFloats("land", []float64{nan, 100}))
	require.NoError(t, test.SetStrings("sex", []string{"", "M"}))
	require.NoError(t, im.Transform(test))

	land, _ := test.Floats("land")
	assert.Equal(t, []float64{3, 100}, land, "test is filled with the training median")
	sex, _ := test.Keys("sex")
	assert.Equal(t, []string{"F", "M"}, sex)
}

func TestImputerNotFitted(t *testing.T) {
	err := NewImputer().Transform(dataset.NewTable(1))
	var nf *scigoErrors.NotFittedError
	assert.True(t, scigoErrors.As(err, &nf))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 3.0, Median([]float64{3, math.NaN(), 1, 5}))
	assert.Equal(t, 0.0, Median([]float64{math.NaN()}))
}

func TestTargetCapper(t *testing.T) {
	y := make([]float64, 100)
	for i := range y {
		y[i] = float64(i + 1)
	}
	y[99] = 1e9

	c := NewTargetCapper(0.99)
	require.NoError(t, c.Fit(y))
	// position 99*0.99 = 98.01 lies between 99 and 1e9
	want := 99 + 0.01*(1e9-99)
	assert.InDelta(t, want, c.Cap, 1e-3)

	n, err := c.Transform(y)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, want, y[99], 1e-3)
	assert.Equal(t, 50.0, y[49])
}

func TestLinearQuantile(t *testing.T) {
	incomes := []float64{120000, 180000, 240000, 600000}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 120000},
		{0.5, 210000},
		{0.9, 240000 + 0.7*(600000-240000)},
		{1, 600000},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.q), func(t *testing.T) {
			assert.InDelta(t, tt.want, LinearQuantile(tt.q, incomes), 1e-6)
		})
	}

	assert.Equal(t, 42.0, LinearQuantile(0.99, []float64{42}))
}

func TestLog1p(t *testing.T) {
	tbl := dataset.NewTable(3)
	require.NoError(t, tbl.SetFloats("income", []float64{0, math.E - 1, -5}))
	require.NoError(t, tbl.SetStrings("text", []string{"a", "b", "c"}))
	Log1p(tbl, []string{"income", "text", "absent"})

	v, _ := tbl.Floats("income")
	assert.InDelta(t, 0, v[0], 1e-12)
	assert.InDelta(t, 1, v[1], 1e-12)
	assert.Equal(t, 0.0, v[2], "negative values clip at 0")
}
