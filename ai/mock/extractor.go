package mock

import (
	"context"
	"sync"
)

// MockExtractor is a test double for ai.Extractor.
// It allows custom behavior injection via function fields.
type MockExtractor struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// Response is returned by Complete when CompleteFunc is nil.
	Response string

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewMockExtractor creates a mock extractor that answers "{}".
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{Response: "{}"}
}

// WithCompleteFunc sets the completion behavior and returns the mock.
func (m *MockExtractor) WithCompleteFunc(fn func(ctx context.Context, prompt string) (string, error)) *MockExtractor {
	m.CompleteFunc = fn
	return m
}

// WithResponse sets a fixed response and returns the mock.
func (m *MockExtractor) WithResponse(response string) *MockExtractor {
	m.Response = response
	return m
}

// Identity names the mock.
func (m *MockExtractor) Identity() string {
	return "mock"
}

// Complete records the prompt and returns the configured response.
func (m *MockExtractor) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return m.Response, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockExtractor) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears the call count, recorded prompts and custom functions.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.CompleteFunc = nil
}
