// Package model_selection provides the K-fold split shared by every
// out-of-fold computation in a training run.
package model_selection

import (
	"fmt"
	"math/rand/v2"
	"slices"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// CVFold represents a single train/validation split.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements a k-fold cross-validation splitter.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// Split partitions row indices [0, nSamples) into NSplits folds. The first
// nSamples%NSplits folds get one extra row. Indices within each fold are
// returned in ascending order.
func (kf *KFold) Split(nSamples int) (*FoldAssignment, error) {
	if kf.NSplits < 2 {
		return nil, scigoErrors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, scigoErrors.NewValidationError("n_samples",
			fmt.Sprintf("cannot split %d rows into %d folds", nSamples, kf.NSplits), nSamples)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	foldOf := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			foldOf[idx] = f
		}
		current += size
	}
	return NewFoldAssignment(foldOf, kf.NSplits)
}

// FoldAssignment maps each training row to exactly one validation fold.
type FoldAssignment struct {
	Folds  []CVFold
	FoldOf []int
}

// NewFoldAssignment builds the fold index lists from a row → fold mapping.
func NewFoldAssignment(foldOf []int, nFolds int) (*FoldAssignment, error) {
	a := &FoldAssignment{
		Folds:  make([]CVFold, nFolds),
		FoldOf: slices.Clone(foldOf),
	}
	for i, f := range foldOf {
		if f < 0 || f >= nFolds {
			return nil, scigoErrors.NewValueError("NewFoldAssignment", fmt.Sprintf("row %d assigned to fold %d of %d", i, f, nFolds))
		}
		for g := range a.Folds {
			if g == f {
				a.Folds[g].TestIndices = append(a.Folds[g].TestIndices, i)
			} else {
				a.Folds[g].TrainIndices = append(a.Folds[g].TrainIndices, i)
			}
		}
	}
	return a, a.Validate()
}

// NSplits returns the number of folds.
func (a *FoldAssignment) NSplits() int { return len(a.Folds) }

// NSamples returns the number of rows covered.
func (a *FoldAssignment) NSamples() int { return len(a.FoldOf) }

// Validate checks that validation sets are disjoint, non-empty and together
// cover every row exactly once, and that each training set is the complement.
func (a *FoldAssignment) Validate() error {
	seen := make([]int, len(a.FoldOf))
	for f, fold := range a.Folds {
		if len(fold.TestIndices) == 0 {
			return scigoErrors.NewValueError("FoldAssignment.Validate", fmt.Sprintf("fold %d has no validation rows", f))
		}
		if len(fold.TrainIndices)+len(fold.TestIndices) != len(a.FoldOf) {
			return scigoErrors.NewValueError("FoldAssignment.Validate", fmt.Sprintf("fold %d does not partition the rows", f))
		}
		for _, i := range fold.TestIndices {
			seen[i]++
		}
		for _, i := range fold.TrainIndices {
			if a.FoldOf[i] == f {
				return scigoErrors.NewValueError("FoldAssignment.Validate", fmt.Sprintf("row %d in both sides of fold %d", i, f))
			}
		}
	}
	for i, n := range seen {
		if n != 1 {
			return scigoErrors.NewValueError("FoldAssignment.Validate", fmt.Sprintf("row %d validated %d times", i, n))
		}
	}
	return nil
}
