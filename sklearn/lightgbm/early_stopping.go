package lightgbm

import (
	"math"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// EarlyStopping handles early stopping logic
type EarlyStopping struct {
	Rounds          int     // Number of rounds without improvement to stop
	BestScore       float64 // Best validation score so far
	BestIteration   int     // Iteration with best score
	RoundsNoImprove int     // Current rounds without improvement
	Metric          string  // Metric to use for early stopping
	Minimize        bool    // Whether to minimize the metric
	Enabled         bool    // Whether early stopping is enabled
}

// NewEarlyStopping creates a new early stopping handler
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false, BestIteration: -1}
	}

	minimize := !metricHigherBetter(metric)
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}

	return &EarlyStopping{
		Rounds:        rounds,
		BestScore:     bestScore,
		BestIteration: -1,
		Metric:        metric,
		Minimize:      minimize,
		Enabled:       true,
	}
}

// Update records the score of iteration and reports whether training
// should stop. Only a strict improvement resets the patience counter.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if !es.Enabled {
		return false
	}

	improved := false
	if es.Minimize {
		improved = score < es.BestScore
	} else {
		improved = score > es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}

	return es.RoundsNoImprove >= es.Rounds
}

// ShouldStop returns whether training should stop
func (es *EarlyStopping) ShouldStop() bool {
	if !es.Enabled {
		return false
	}
	return es.RoundsNoImprove >= es.Rounds
}

// GetBestIteration returns the best iteration, or -1 before any update
func (es *EarlyStopping) GetBestIteration() int {
	if !es.Enabled {
		return -1
	}
	return es.BestIteration
}

// evaluator computes a validation metric from labels and raw predictions
type evaluator func(labels, preds []float64) float64

// newEvaluator resolves a LightGBM metric name or alias.
func newEvaluator(metric string) (evaluator, error) {
	switch metric {
	case "mape", "mean_absolute_percentage_error":
		return evalMAPE, nil
	case "l1", "mae", "mean_absolute_error", "regression_l1":
		return evalL1, nil
	case "l2", "mse", "mean_squared_error", "regression", "regression_l2":
		return evalL2, nil
	case "rmse", "root_mean_squared_error", "l2_root":
		return func(labels, preds []float64) float64 {
			return math.Sqrt(evalL2(labels, preds))
		}, nil
	default:
		return nil, scigoErrors.NewValidationError("metric", "unknown metric", metric)
	}
}

func metricHigherBetter(metric string) bool {
	switch metric {
	case "auc", "accuracy", "precision", "recall", "f1", "r2":
		return true
	}
	return false
}

// evalMAPE is LightGBM's mape: mean of |y - p| / max(1, |y|).
func evalMAPE(labels, preds []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	sum := 0.0
	for i, y := range labels {
		sum += math.Abs(y-preds[i]) / math.Max(1, math.Abs(y))
	}
	return sum / float64(len(labels))
}

func evalL1(labels, preds []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	sum := 0.0
	for i, y := range labels {
		sum += math.Abs(y - preds[i])
	}
	return sum / float64(len(labels))
}

func evalL2(labels, preds []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	sum := 0.0
	for i, y := range labels {
		d := y - preds[i]
		sum += d * d
	}
	return sum / float64(len(labels))
}
