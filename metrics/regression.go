// Package metrics は回帰モデルの評価指標を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/pkg/errors"
)

// mapeEpsilon は MAPE の分母の下限（scikit-learn と同じ float64 の機械イプシロン）
const mapeEpsilon = 2.220446049250313e-16

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差をパーセント単位で計算する。
// 分母は max(|yTrue|, eps) なので、正解値 0 でもエラーにはならない。
//
//	MAPE = (100/n) * Σ|yTrue - yPred| / max(|yTrue|, eps)
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	zeros := 0
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		if yTrueVal == 0 {
			zeros++
		}
		sum += math.Abs(yTrueVal-yPred.AtVec(i)) / math.Max(math.Abs(yTrueVal), mapeEpsilon)
	}
	if zeros > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("MAPE", "zero values in yTrue", sum/float64(n)*100))
	}

	return sum / float64(n) * 100, nil
}

// Summary は回帰評価指標の組
type Summary struct {
	MAPE float64 `json:"mape" yaml:"mape"` // パーセント
	MAE  float64 `json:"mae" yaml:"mae"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
	R2   float64 `json:"r2" yaml:"r2"`
}

// Evaluate はスライスで与えられた正解値と予測値から Summary を計算する。
// 正解値に分散がない場合 R2 は NaN になる。
func Evaluate(yTrue, yPred []float64) (Summary, error) {
	if len(yTrue) == 0 {
		return Summary{}, errors.NewValueError("Evaluate", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return Summary{}, errors.NewDimensionError("Evaluate", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	var s Summary
	var err error
	if s.MAPE, err = MAPE(t, p); err != nil {
		return Summary{}, err
	}
	if s.MAE, err = MAE(t, p); err != nil {
		return Summary{}, err
	}
	if s.RMSE, err = RMSE(t, p); err != nil {
		return Summary{}, err
	}
	if s.R2, err = R2Score(t, p); err != nil {
		s.R2 = math.NaN()
	}
	return s, nil
}

// checkPair は入力ベクトルの長さを検証する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}
