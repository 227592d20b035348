package ensemble

import (
	"fmt"
	"slices"
	"sync"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// OOFBuffer collects out-of-fold predictions. It is sized to the training
// set up front and accepts exactly one write per row. Safe for concurrent
// use by parallel folds.
type OOFBuffer struct {
	mu      sync.Mutex
	values  []float64
	written []bool
	count   int
}

// NewOOFBuffer creates a buffer for n training rows.
func NewOOFBuffer(n int) *OOFBuffer {
	return &OOFBuffer{
		values:  make([]float64, n),
		written: make([]bool, n),
	}
}

// Len returns the number of rows the buffer covers.
func (b *OOFBuffer) Len() int {
	return len(b.values)
}

// Write stores the prediction for row i. A second write to the same row
// returns ErrAlreadyWritten and leaves the first value in place.
func (b *OOFBuffer) Write(i int, v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= len(b.values) {
		return scigoErrors.NewValueError("OOFBuffer.Write", fmt.Sprintf("row %d out of range [0, %d)", i, len(b.values)))
	}
	if b.written[i] {
		return scigoErrors.Wrapf(scigoErrors.ErrAlreadyWritten, "row %d", i)
	}
	b.values[i] = v
	b.written[i] = true
	b.count++
	return nil
}

// Complete returns an error naming the first row without a prediction.
func (b *OOFBuffer) Complete() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.values) {
		return nil
	}
	missing := slices.Index(b.written, false)
	return scigoErrors.NewValueError("OOFBuffer.Complete",
		fmt.Sprintf("%d of %d rows have no out-of-fold prediction (first: %d)", len(b.values)-b.count, len(b.values), missing))
}

// Values returns a copy of the buffered predictions.
func (b *OOFBuffer) Values() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.values)
}
