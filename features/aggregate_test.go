package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

func aggregateFixture(t *testing.T) (*dataset.Table, *model_selection.FoldAssignment) {
	t.Helper()
	tbl := dataset.NewTable(6)
	require.NoError(t, tbl.SetStrings("State", []string{"P", "P", "P", "B", "B", "K"}))
	require.NoError(t, tbl.SetFloats("Land", []float64{1, 2, 3, 10, 20, 100}))
	// rows 0,3 | 1,4 | 2,5
	folds, err := model_selection.NewFoldAssignment([]int{0, 1, 2, 0, 1, 2}, 3)
	require.NoError(t, err)
	return tbl, folds
}

func TestGroupMeanEncoderOutOfFold(t *testing.T) {
	tbl, folds := aggregateFixture(t)
	g := NewGroupMeanEncoder("State", []string{"Land", "Absent"})
	require.NoError(t, g.FitTransform(tbl, folds))

	got, ok := tbl.Floats("State_Avg_Land")
	require.True(t, ok)
	global := 136.0 / 6
	want := []float64{
		2.5,    // P from rows 1,2
		2,      // P from rows 0,2
		1.5,    // P from rows 0,1
		20,     // B from row 4
		10,     // B from row 3
		global, // K unseen outside its fold
	}
	assert.InDeltaSlice(t, want, got, 1e-12)
	assert.False(t, tbl.Has("State_Avg_Absent"))
}

func TestGroupMeanEncoderIsLeakageFree(t *testing.T) {
	tbl, folds := aggregateFixture(t)
	perturbed := tbl.Clone()
	land, _ := perturbed.Floats("Land")
	land[0] = 1e6

	a := NewGroupMeanEncoder("State", []string{"Land"})
	b := NewGroupMeanEncoder("State", []string{"Land"})
	require.NoError(t, a.FitTransform(tbl, folds))
	require.NoError(t, b.FitTransform(perturbed, folds))

	va, _ := tbl.Floats("State_Avg_Land")
	vb, _ := perturbed.Floats("State_Avg_Land")
	// Row 0's own value never feeds row 0 or its fold-mate row 3.
	assert.Equal(t, va[0], vb[0])
	assert.Equal(t, va[3], vb[3])
}

func TestGroupMeanEncoderTransform(t *testing.T) {
	tbl, folds := aggregateFixture(t)
	g := NewGroupMeanEncoder("State", []string{"Land"})
	require.NoError(t, g.FitTransform(tbl, folds))

	test := dataset.NewTable(3)
	require.NoError(t, test.SetStrings("State", []string{"B", "Z", ""}))
	require.NoError(t, g.Transform(test))
	got, _ := test.Floats("State_Avg_Land")
	global := 136.0 / 6
	assert.InDeltaSlice(t, []float64{15, global, global}, got, 1e-12)
}
