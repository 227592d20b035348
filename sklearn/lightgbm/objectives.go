package lightgbm

import (
	"math"
	"slices"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// ObjectiveFunction supplies the per-row first and second derivatives the
// trainer fits each tree to, and the constant the boosting starts from.
type ObjectiveFunction interface {
	Gradient(score, label float64) float64
	Hessian(score, label float64) float64
	Loss(score, label float64) float64
	InitScore(labels []float64) float64
	Name() string
}

// LeafRenewer is implemented by objectives whose gradient step is only a
// direction. After a tree is grown each leaf output is replaced by
// RenewLeaf of the residuals (label - score) of the in-bag rows in it.
type LeafRenewer interface {
	RenewLeaf(residuals []float64) float64
}

// squaredError is the "regression" objective: half the squared residual,
// started from the label mean.
type squaredError struct{}

func (squaredError) Gradient(score, label float64) float64 { return score - label }
func (squaredError) Hessian(_, _ float64) float64          { return 1 }
func (squaredError) Name() string                          { return string(RegressionL2) }

func (squaredError) Loss(score, label float64) float64 {
	r := score - label
	return r * r / 2
}

func (squaredError) InitScore(labels []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for _, v := range labels {
		sum += v
	}
	return sum / float64(len(labels))
}

// absoluteError is the "regression_l1" objective used for log income. Trees
// are grown on the sign of the residual with a unit hessian, then every
// leaf is moved to the median residual of its rows, as LightGBM does.
type absoluteError struct{}

func (absoluteError) Gradient(score, label float64) float64 {
	switch {
	case score > label:
		return 1
	case score < label:
		return -1
	}
	return 0
}

func (absoluteError) Hessian(_, _ float64) float64          { return 1 }
func (absoluteError) Loss(score, label float64) float64     { return math.Abs(score - label) }
func (absoluteError) InitScore(labels []float64) float64    { return median(labels) }
func (absoluteError) RenewLeaf(residuals []float64) float64 { return median(residuals) }
func (absoluteError) Name() string                          { return string(RegressionL1) }

// median averages the middle pair for even lengths and returns 0 for no
// values. values is not reordered.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := slices.Clone(values)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// CreateObjectiveFunction resolves a LightGBM objective name or one of its
// aliases.
func CreateObjectiveFunction(name string) (ObjectiveFunction, error) {
	switch name {
	case "regression_l1", "l1", "mean_absolute_error", "mae":
		return absoluteError{}, nil
	case "regression", "regression_l2", "l2", "mean_squared_error", "mse":
		return squaredError{}, nil
	}
	return nil, scigoErrors.NewValidationError("objective", "must be regression_l1 or regression", name)
}
