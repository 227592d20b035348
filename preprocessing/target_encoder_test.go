package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

func targetEncodingFixture(t *testing.T) (*dataset.Table, []float64, *model_selection.FoldAssignment) {
	t.Helper()
	n := 40
	tbl := dataset.NewTable(n)
	states := make([]string, n)
	y := make([]float64, n)
	for i := range states {
		states[i] = []string{"Punjab", "Bihar", "Kerala", "Goa"}[i%4]
		y[i] = float64(10 + i%4*5 + i%3)
	}
	require.NoError(t, tbl.SetStrings("State", states))
	folds, err := model_selection.NewKFold(5, true, 42).Split(n)
	require.NoError(t, err)
	return tbl, y, folds
}

func TestKFoldTargetEncoderSmoothing(t *testing.T) {
	tbl, y, folds := targetEncodingFixture(t)
	enc := NewKFoldTargetEncoder(20)
	require.NoError(t, enc.FitTransform(tbl, []string{"State", "absent"}, y, folds))

	keys, _ := tbl.Keys("State")
	encoded, ok := tbl.Floats("State" + TargetEncodedSuffix)
	require.True(t, ok)

	// direct computation for one validation row
	row := folds.Folds[2].TestIndices[0]
	var sum, count float64
	for _, i := range folds.Folds[2].TrainIndices {
		if keys[i] == keys[row] {
			sum += y[i]
			count++
		}
	}
	want := (sum + 20*enc.GlobalMean) / (count + 20)
	assert.InDelta(t, want, encoded[row], 1e-12)
	assert.Equal(t, []string{"State_te"}, enc.EncodedColumns())
}

func TestKFoldTargetEncoderIsLeakageFree(t *testing.T) {
	tbl, y, folds := targetEncodingFixture(t)

	// With smoothing 0 the global mean drops out, so perturbing the targets
	// of fold 1 must leave fold 1's own encodings unchanged.
	perturbed := append([]float64(nil), y...)
	for _, i := range folds.Folds[1].TestIndices {
		perturbed[i] += 1000
	}

	a := tbl.Clone()
	b := tbl.Clone()
	encA := NewKFoldTargetEncoder(0)
	encB := NewKFoldTargetEncoder(0)
	require.NoError(t, encA.FitTransform(a, []string{"State"}, y, folds))
	require.NoError(t, encB.FitTransform(b, []string{"State"}, perturbed, folds))

	va, _ := a.Floats("State_te")
	vb, _ := b.Floats("State_te")
	for _, i := range folds.Folds[1].TestIndices {
		assert.InDelta(t, va[i], vb[i], 1e-12, "row %d saw its own fold's target", i)
	}
}

func TestKFoldTargetEncoderTransform(t *testing.T) {
	tbl, y, folds := targetEncodingFixture(t)
	enc := NewKFoldTargetEncoder(20)
	require.NoError(t, enc.FitTransform(tbl, []string{"State"}, y, folds))

	test := dataset.NewTable(2)
	require.NoError(t, test.SetStrings("State", []string{"Punjab", "Atlantis"}))
	require.NoError(t, enc.Transform(test))

	v, _ := test.Floats("State_te")
	assert.InDelta(t, enc.Encodings["State"]["Punjab"], v[0], 1e-12)
	assert.Equal(t, enc.GlobalMean, v[1], "unseen category falls back to the global mean")

	// the full-data statistic uses every training row
	keys, _ := tbl.Keys("State")
	var sum, count float64
	for i, k := range keys {
		if k == "Punjab" {
			sum += y[i]
			count++
		}
	}
	assert.InDelta(t, (sum+20*enc.GlobalMean)/(count+20), enc.Encodings["State"]["Punjab"], 1e-12)
}

func TestKFoldTargetEncoderDimensionMismatch(t *testing.T) {
	tbl, y, folds := targetEncodingFixture(t)
	err := NewKFoldTargetEncoder(20).FitTransform(tbl, []string{"State"}, y[:3], folds)
	assert.Error(t, err)
}
