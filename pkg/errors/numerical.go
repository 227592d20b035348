package errors

import (
	"fmt"
	"math"
)

// maxExp keeps math.Exp below the float64 overflow point.
const maxExp = 700.0

// CheckFinite returns a ValueError naming the first NaN or Inf entry in values.
func CheckFinite(op string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValueError(op, fmt.Sprintf("non-finite value %v at index %d", v, i))
		}
	}
	return nil
}

// CheckMatrix checks all values in a matrix for NaN or Inf.
func CheckMatrix(op string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewValueError(op, fmt.Sprintf("non-finite value %v at (%d, %d)", v, i, j))
			}
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// StabilizeExpm1 computes exp(x)-1 with the input clipped to avoid Inf.
func StabilizeExpm1(value float64) float64 {
	if value > maxExp {
		value = maxExp
	}
	return math.Expm1(value)
}

// SafeLog1p computes log(1+x) for x clipped at zero from below.
func SafeLog1p(value float64) float64 {
	if value < 0 {
		value = 0
	}
	return math.Log1p(value)
}
