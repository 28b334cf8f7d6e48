package prediction

import (
	"context"
	"sync"
)

// MockPredictor returns a fixed result and records the features it saw.
type MockPredictor struct {
	Result Result
	Err    error

	mu   sync.Mutex
	seen []Features
}

// Predict implements Predictor.
func (m *MockPredictor) Predict(_ context.Context, f Features) (Result, error) {
	m.mu.Lock()
	m.seen = append(m.seen, f)
	m.mu.Unlock()
	if m.Err != nil {
		return Result{}, m.Err
	}
	return m.Result, nil
}

// Seen returns a copy of the features passed to Predict.
func (m *MockPredictor) Seen() []Features {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Features, len(m.seen))
	copy(out, m.seen)
	return out
}
