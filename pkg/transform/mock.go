package transform

import (
	"context"
	"image"
	"sync"
	"time"
)

// Mock implements Transformer for testing.
type Mock struct {
	// TransformFunc is called when Transform is invoked. When nil the
	// mock echoes the input image.
	TransformFunc func(ctx context.Context, req Request) (image.Image, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Transform invocation.
type MockCall struct {
	Prompt        string
	Strength      float64
	Steps         int
	GuidanceScale float64
	Time          time.Time
}

// NewMock creates a mock that echoes its input.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock that always fails with the given error.
func WithError(err error) *Mock {
	return &Mock{
		TransformFunc: func(ctx context.Context, req Request) (image.Image, error) {
			return nil, err
		},
	}
}

// Transform calls TransformFunc and records the call.
func (m *Mock) Transform(ctx context.Context, req Request) (image.Image, error) {
	m.record(req)
	if m.TransformFunc != nil {
		return m.TransformFunc(ctx, req)
	}
	return req.Image, nil
}

// record adds a call to the tracking list.
func (m *Mock) record(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Prompt:        req.Prompt,
		Strength:      req.Strength,
		Steps:         req.Steps,
		GuidanceScale: req.GuidanceScale,
		Time:          time.Now(),
	})
}

// Calls returns all recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Transform invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent invocation, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Transformer at compile time.
var _ Transformer = (*Mock)(nil)
