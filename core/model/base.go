package model

import (
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// EstimatorState はモデル・変換器の学習状態を表す
type EstimatorState int

const (
	// NotFitted は未学習の状態
	NotFitted EstimatorState = iota
	// Fitted は学習済みの状態
	Fitted
)

// BaseEstimator は学習済み統計量を持つ全ての変換器・モデルに埋め込む構造体。
// 学習データから一度だけ統計量を計算し、以後は読み取り専用として扱う。
type BaseEstimator struct {
	State EstimatorState `msgpack:"state"`
}

// IsFitted は学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted は学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset は初期状態に戻す
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// CheckFitted は未学習の場合に NotFittedError を返す
func (e *BaseEstimator) CheckFitted(name, method string) error {
	if !e.IsFitted() {
		return scigoErrors.NewNotFittedError(name, method)
	}
	return nil
}
