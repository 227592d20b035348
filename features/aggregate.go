package features

import (
	"math"

	"github.com/YuminosukeSato/farmincome/dataset"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/sklearn/model_selection"
)

// GroupMeanEncoder adds "<group>_Avg_<col>" columns holding the mean of col
// within each group.
//
// Training rows get out-of-fold means computed from the other folds only.
// Test rows get means over the whole training table. Groups without a mean
// fall back to the global training mean of the column.
type GroupMeanEncoder struct {
	Group       string
	Columns     []string
	GlobalMeans map[string]float64
	Means       map[string]map[string]float64

	logger log.Logger
}

// NewGroupMeanEncoder returns an encoder grouping by group.
func NewGroupMeanEncoder(group string, cols []string) *GroupMeanEncoder {
	return &GroupMeanEncoder{
		Group:   group,
		Columns: cols,
		logger:  log.GetLoggerWithName("features.group_mean"),
	}
}

// OutputName is the column written for col.
func (g *GroupMeanEncoder) OutputName(col string) string {
	return g.Group + "_Avg_" + col
}

// FitTransform writes the out-of-fold columns to the training table.
func (g *GroupMeanEncoder) FitTransform(t *dataset.Table, folds *model_selection.FoldAssignment) (err error) {
	defer scigoErrors.Recover(&err, "GroupMeanEncoder.FitTransform")
	if folds.NSamples() != t.NRows() {
		return scigoErrors.NewDimensionError("GroupMeanEncoder.FitTransform", t.NRows(), folds.NSamples(), 0)
	}
	g.GlobalMeans = make(map[string]float64)
	g.Means = make(map[string]map[string]float64)

	groups, ok := t.Keys(g.Group)
	if !ok {
		g.logger.Debug("group column absent", log.ColumnKey, g.Group)
		return nil
	}
	all := make([]int, t.NRows())
	for i := range all {
		all[i] = i
	}

	for _, col := range g.Columns {
		values, ok := t.Floats(col)
		if !ok {
			g.logger.Debug("aggregation source absent", log.ColumnKey, col)
			continue
		}
		global := groupMeans(values, nil, all)[""]
		g.GlobalMeans[col] = global

		out := make([]float64, len(values))
		for _, fold := range folds.Folds {
			means := groupMeans(values, groups, fold.TrainIndices)
			for _, i := range fold.TestIndices {
				out[i] = meanOr(means, groups[i], global)
			}
		}
		if err := t.SetFloats(g.OutputName(col), out); err != nil {
			return err
		}
		g.Means[col] = groupMeans(values, groups, all)
	}
	g.logger.Info("group aggregations fitted",
		log.OperationKey, log.OperationFitTransform,
		"group", g.Group,
		log.ColumnsKey, len(g.Means),
	)
	return nil
}

// Transform writes the full-training means to a test table.
func (g *GroupMeanEncoder) Transform(t *dataset.Table) error {
	groups, _ := t.Keys(g.Group)
	for _, col := range g.Columns {
		means, ok := g.Means[col]
		if !ok {
			continue
		}
		out := make([]float64, t.NRows())
		for i := range out {
			key := ""
			if groups != nil {
				key = groups[i]
			}
			out[i] = meanOr(means, key, g.GlobalMeans[col])
		}
		if err := t.SetFloats(g.OutputName(col), out); err != nil {
			return err
		}
	}
	return nil
}

// groupMeans averages the non-NaN values of rows per group key. With nil
// groups every row falls into the "" group. Rows with a missing key are
// ignored otherwise.
func groupMeans(values []float64, groups []string, rows []int) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]float64)
	for _, i := range rows {
		if math.IsNaN(values[i]) {
			continue
		}
		key := ""
		if groups != nil {
			key = groups[i]
			if key == "" {
				continue
			}
		}
		sums[key] += values[i]
		counts[key]++
	}
	out := make(map[string]float64, len(sums))
	for k, s := range sums {
		out[k] = s / counts[k]
	}
	if groups == nil {
		if _, ok := out[""]; !ok {
			out[""] = math.NaN()
		}
	}
	return out
}

func meanOr(means map[string]float64, key string, fallback float64) float64 {
	if key == "" {
		return fallback
	}
	if v, ok := means[key]; ok {
		return v
	}
	return fallback
}
