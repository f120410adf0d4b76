package mock

import "context"

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a canned response.
	GenerateFunc func(ctx context.Context, system, user string) (string, error)

	callCount int

	// LastSystem and LastUser record the prompts from the most recent call.
	LastSystem string
	LastUser   string
}

// NewMockGenerator creates a mock generator with default canned behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned response or delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	m.callCount++
	m.LastSystem = system
	m.LastUser = user

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, user)
	}

	return "mock generated response", nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateFunc = nil
	m.LastSystem = ""
	m.LastUser = ""
}
