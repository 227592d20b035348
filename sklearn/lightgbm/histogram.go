package lightgbm

import (
	"math"
	"runtime"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/core/parallel"
)

// featureParallelThreshold is the feature count below which histograms are
// built on the calling goroutine.
const featureParallelThreshold = 8

// binMapper maps raw feature values to histogram bins. upper holds the
// inclusive upper bound of each bin; the last bound is +Inf.
type binMapper struct {
	upper []float64
}

// newBinMapper derives bin bounds from one feature column. With at most
// maxBin distinct values every value gets its own bin, bounded at the
// midpoint to the next value; otherwise bounds are quantile cuts.
// NaN is binned as zero.
func newBinMapper(values []float64, maxBin int) binMapper {
	sorted := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = 0
		}
		sorted[i] = v
	}
	sort.Float64s(sorted)
	distinct := slices.Compact(slices.Clone(sorted))

	var upper []float64
	if len(distinct) <= maxBin {
		upper = make([]float64, 0, len(distinct))
		for i := 0; i+1 < len(distinct); i++ {
			upper = append(upper, (distinct[i]+distinct[i+1])/2)
		}
	} else {
		upper = make([]float64, 0, maxBin)
		for i := 1; i < maxBin; i++ {
			cut := sorted[len(sorted)*i/maxBin]
			if len(upper) == 0 || cut > upper[len(upper)-1] {
				upper = append(upper, cut)
			}
		}
		// the largest value must not sit alone on the +Inf bin boundary
		if upper[len(upper)-1] >= sorted[len(sorted)-1] {
			upper = upper[:len(upper)-1]
		}
	}
	return binMapper{upper: append(upper, math.Inf(1))}
}

func (b binMapper) numBins() int {
	return len(b.upper)
}

func (b binMapper) bin(v float64) uint8 {
	if math.IsNaN(v) {
		v = 0
	}
	return uint8(sort.SearchFloat64s(b.upper, v))
}

// threshold is the raw split value equivalent to "bin <= i".
func (b binMapper) threshold(i uint8) float64 {
	return b.upper[i]
}

// binnedDataset is the training matrix converted to bins, stored feature
// major so one feature's rows are contiguous.
type binnedDataset struct {
	numRows     int
	numFeatures int
	bins        []uint8
	mappers     []binMapper
	featureMin  []float64
	featureMax  []float64
}

func newBinnedDataset(X *mat.Dense, maxBin, numThreads int) *binnedDataset {
	rows, cols := X.Dims()
	ds := &binnedDataset{
		numRows:     rows,
		numFeatures: cols,
		bins:        make([]uint8, rows*cols),
		mappers:     make([]binMapper, cols),
		featureMin:  make([]float64, cols),
		featureMax:  make([]float64, cols),
	}
	forFeatures(cols, numThreads, func(start, end int) {
		column := make([]float64, rows)
		for j := start; j < end; j++ {
			mat.Col(column, j, X)
			mapper := newBinMapper(column, maxBin)
			ds.mappers[j] = mapper
			lo, hi := math.Inf(1), math.Inf(-1)
			offset := j * rows
			for i, v := range column {
				ds.bins[offset+i] = mapper.bin(v)
				if !math.IsNaN(v) {
					lo = math.Min(lo, v)
					hi = math.Max(hi, v)
				}
			}
			if lo > hi {
				lo, hi = 0, 0
			}
			ds.featureMin[j], ds.featureMax[j] = lo, hi
		}
	})
	return ds
}

func (ds *binnedDataset) featureBins(feature int) []uint8 {
	return ds.bins[feature*ds.numRows : (feature+1)*ds.numRows]
}

// forFeatures spreads feature work over numThreads goroutines, or over all
// CPUs when numThreads is not positive.
func forFeatures(numFeatures, numThreads int, fn func(start, end int)) {
	if numThreads > 0 {
		parallel.ParallelizeWorkers(numFeatures, numThreads, fn)
		return
	}
	if numFeatures <= featureParallelThreshold {
		fn(0, numFeatures)
		return
	}
	parallel.ParallelizeWorkers(numFeatures, runtime.NumCPU(), fn)
}

// HistogramBin accumulates gradient statistics of one bin
type HistogramBin struct {
	Count   int
	SumGrad float64
	SumHess float64
}

// FeatureHistogram represents histogram for a single feature.
// Bins is nil for features not sampled for the current tree.
type FeatureHistogram struct {
	FeatureIndex int
	Bins         []HistogramBin
}

// SplitInfo describes the best split found for a leaf
type SplitInfo struct {
	Feature      int
	ThresholdBin uint8
	Threshold    float64
	Gain         float64
	LeftGrad     float64
	LeftHess     float64
	LeftCount    int
	RightGrad    float64
	RightHess    float64
	RightCount   int
}

// Valid reports whether a usable split was found
func (s SplitInfo) Valid() bool {
	return s.Feature >= 0
}

// HistogramBuilder builds histograms for efficient split finding
type HistogramBuilder struct {
	data          *binnedDataset
	reg           *RegularizationStrategy
	minDataInLeaf int
	minSumHessian float64
	minGain       float64
	numThreads    int
}

// newHistogramBuilder creates a builder over a binned dataset
func newHistogramBuilder(data *binnedDataset, params TrainingParams) *HistogramBuilder {
	return &HistogramBuilder{
		data:          data,
		reg:           NewRegularizationStrategy(params),
		minDataInLeaf: params.MinDataInLeaf,
		minSumHessian: params.MinSumHessianInLeaf,
		minGain:       params.MinGainToSplit,
		numThreads:    params.NumThreads,
	}
}

// Build accumulates histograms of rows for the given features.
func (hb *HistogramBuilder) Build(rows []int, features []int, gradients, hessians []float64) []FeatureHistogram {
	hists := make([]FeatureHistogram, hb.data.numFeatures)
	for j := range hists {
		hists[j].FeatureIndex = j
	}
	forFeatures(len(features), hb.numThreads, func(start, end int) {
		for _, f := range features[start:end] {
			bins := make([]HistogramBin, hb.data.mappers[f].numBins())
			column := hb.data.featureBins(f)
			for _, r := range rows {
				b := &bins[column[r]]
				b.Count++
				b.SumGrad += gradients[r]
				b.SumHess += hessians[r]
			}
			hists[f].Bins = bins
		}
	})
	return hists
}

// Subtract derives a sibling's histograms as parent minus the other child.
func (hb *HistogramBuilder) Subtract(parent, child []FeatureHistogram) []FeatureHistogram {
	out := make([]FeatureHistogram, len(parent))
	for j := range parent {
		out[j].FeatureIndex = j
		if parent[j].Bins == nil || child[j].Bins == nil {
			continue
		}
		bins := make([]HistogramBin, len(parent[j].Bins))
		for i := range bins {
			bins[i] = HistogramBin{
				Count:   parent[j].Bins[i].Count - child[j].Bins[i].Count,
				SumGrad: parent[j].Bins[i].SumGrad - child[j].Bins[i].SumGrad,
				SumHess: parent[j].Bins[i].SumHess - child[j].Bins[i].SumHess,
			}
		}
		out[j].Bins = bins
	}
	return out
}

// FindBestSplit scans every sampled feature histogram of a leaf and returns
// the split with the highest gain. Feature is -1 when no split satisfies
// the leaf constraints or beats min_gain_to_split.
func (hb *HistogramBuilder) FindBestSplit(hists []FeatureHistogram, sumGrad, sumHess float64, count int) SplitInfo {
	best := SplitInfo{Feature: -1, Gain: math.Max(hb.minGain, 0)}
	if count < 2*hb.minDataInLeaf {
		return best
	}
	for f, hist := range hists {
		if len(hist.Bins) < 2 {
			continue
		}
		leftGrad, leftHess, leftCount := 0.0, 0.0, 0
		for i := 0; i < len(hist.Bins)-1; i++ {
			leftGrad += hist.Bins[i].SumGrad
			leftHess += hist.Bins[i].SumHess
			leftCount += hist.Bins[i].Count

			rightCount := count - leftCount
			if leftCount < hb.minDataInLeaf {
				continue
			}
			if rightCount < hb.minDataInLeaf {
				break
			}
			rightGrad := sumGrad - leftGrad
			rightHess := sumHess - leftHess
			if leftHess < hb.minSumHessian || rightHess < hb.minSumHessian {
				continue
			}

			gain := hb.reg.SplitGain(leftGrad, leftHess, rightGrad, rightHess, sumGrad, sumHess)
			if gain > best.Gain {
				best = SplitInfo{
					Feature:      f,
					ThresholdBin: uint8(i),
					Threshold:    hb.data.mappers[f].threshold(uint8(i)),
					Gain:         gain,
					LeftGrad:     leftGrad,
					LeftHess:     leftHess,
					LeftCount:    leftCount,
					RightGrad:    rightGrad,
					RightHess:    rightHess,
					RightCount:   rightCount,
				}
			}
		}
	}
	return best
}
