package model

import (
	"sync"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// StateManager はモデルの学習状態をスレッドセーフに管理する。
// 探索の試行や推論サーバーから並行に参照されるため、状態はロックで保護する。
type StateManager struct {
	Fitted bool // gobエンコードのため公開
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager は新しいStateManagerを作成する
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted はモデルが学習済みかどうかを返す
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted は学習時の次元を記録し、学習済み状態にする
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset はモデルを初期状態にリセットする
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// GetDimensions は学習時の特徴量数とサンプル数を返す
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted は未学習の場合にNotFittedErrorを返す
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return lsErrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// RequireFeatures は学習時と入力の特徴量数が一致しない場合にDimensionErrorを返す
func (s *StateManager) RequireFeatures(op string, got int) error {
	nFeatures, _ := s.GetDimensions()
	if got != nFeatures {
		return lsErrors.NewDimensionError(op, nFeatures, got, 1)
	}
	return nil
}
