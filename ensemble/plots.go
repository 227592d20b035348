package ensemble

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// Report plot file names.
const (
	FoldResultsPlot       = "fold_results.png"
	ResidualAnalysisPlot  = "residual_analysis.png"
	FeatureImportancePlot = "feature_importance.png"

	importanceTopN   = 25
	residualClipPct  = 50.0
	residualHistBins = 50
)

// SavePlots renders the training diagnostics of report into dir.
func SavePlots(dir string, report *TrainReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scigoErrors.NewArtifactError("report", dir, err)
	}
	steps := []struct {
		name string
		fn   func(string, *TrainReport) error
	}{
		{FoldResultsPlot, plotFoldResults},
		{ResidualAnalysisPlot, plotResiduals},
		{FeatureImportancePlot, plotFeatureImportance},
	}
	logger := log.GetLoggerWithName("ensemble.plots")
	for _, s := range steps {
		path := filepath.Join(dir, s.name)
		if err := s.fn(path, report); err != nil {
			return scigoErrors.NewArtifactError("report", path, err)
		}
		logger.Debug("plot saved", log.PathKey, path)
	}
	return nil
}

// plotFoldResults draws train and validation MAPE per fold side by side.
func plotFoldResults(path string, report *TrainReport) error {
	p := plot.New()
	p.Title.Text = "MAPE per fold (log scale)"
	p.Y.Label.Text = "MAPE (%)"

	train := make(plotter.Values, len(report.Folds))
	val := make(plotter.Values, len(report.Folds))
	labels := make([]string, len(report.Folds))
	for i, f := range report.Folds {
		train[i] = f.TrainMAPELog
		val[i] = f.ValMAPELog
		labels[i] = fmt.Sprintf("Fold %d", f.Fold)
	}

	w := vg.Points(14)
	trainBars, err := plotter.NewBarChart(train, w)
	if err != nil {
		return err
	}
	trainBars.Color = plotutil.Color(0)
	trainBars.Offset = -w / 2
	valBars, err := plotter.NewBarChart(val, w)
	if err != nil {
		return err
	}
	valBars.Color = plotutil.Color(1)
	valBars.Offset = w / 2

	p.Add(trainBars, valBars, plotter.NewGrid())
	p.Legend.Add("train", trainBars)
	p.Legend.Add("validation", valBars)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// plotResiduals draws predicted against actual income next to a histogram
// of the percentage error, clipped to ±50%.
func plotResiduals(path string, report *TrainReport) error {
	actual := expm1Slice(report.Targets)
	predicted := expm1Slice(report.OOFPredictions)

	pts := make(plotter.XYs, len(actual))
	pctErr := make(plotter.Values, 0, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X, pts[i].Y = actual[i], predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
		if actual[i] != 0 {
			e := (predicted[i] - actual[i]) / actual[i] * 100
			pctErr = append(pctErr, math.Max(-residualClipPct, math.Min(residualClipPct, e)))
		}
	}

	scatterPlot := plot.New()
	scatterPlot.Title.Text = "Predicted vs actual (OOF)"
	scatterPlot.X.Label.Text = "actual income"
	scatterPlot.Y.Label.Text = "predicted income"
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	diagonal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	diagonal.Color = plotutil.Color(1)
	diagonal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	scatterPlot.Add(scatter, diagonal, plotter.NewGrid())

	histPlot := plot.New()
	histPlot.Title.Text = "Percentage error"
	histPlot.X.Label.Text = "error (%)"
	histPlot.Y.Label.Text = "count"
	if len(pctErr) > 0 {
		hist, err := plotter.NewHist(pctErr, residualHistBins)
		if err != nil {
			return err
		}
		histPlot.Add(hist)
	}

	img := vgimg.New(14*vg.Inch, 5*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter * 4, PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2}
	plots := [][]*plot.Plot{{scatterPlot, histPlot}}
	canvases := plot.Align(plots, tiles, dc)
	plots[0][0].Draw(canvases[0][0])
	plots[0][1].Draw(canvases[0][1])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

// plotFeatureImportance draws the top features by mean gain as horizontal
// bars, the most important at the top.
func plotFeatureImportance(path string, report *TrainReport) error {
	top := report.FeatureImportance
	if len(top) > importanceTopN {
		top = top[:importanceTopN]
	}

	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, fi := range top {
		// NominalY places index 0 at the bottom.
		j := len(top) - 1 - i
		values[j] = fi.Gain
		names[j] = fi.Feature
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d features (mean gain)", len(top))
	p.X.Label.Text = "normalized gain"
	if len(top) > 0 {
		bars, err := plotter.NewBarChart(values, vg.Points(10))
		if err != nil {
			return err
		}
		bars.Horizontal = true
		bars.Color = plotutil.Color(0)
		p.Add(bars)
		p.NominalY(names...)
	}
	return p.Save(10*vg.Inch, vg.Length(max(4, len(top)/3+2))*vg.Inch, path)
}
