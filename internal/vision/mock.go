package vision

import (
	"context"
	"sync"
)

// MockResponse is one scripted response for the mock client.
type MockResponse struct {
	Content string
	Err     error
}

// MockClient is a scriptable Client for tests. Responses are consumed in
// order; when the script runs out the last response repeats. All calls are
// recorded.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []*Request
}

// NewMockClient creates a mock client with the given scripted responses.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Name returns the client identifier.
func (m *MockClient) Name() string {
	return "mock"
}

// Analyze records the request and returns the next scripted response.
func (m *MockClient) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.responses) == 0 {
		return &Result{Content: "{}", ModelUsed: "mock"}, nil
	}

	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	resp := m.responses[idx]
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{Content: resp.Content, ModelUsed: "mock"}, nil
}

// Calls returns the recorded requests.
func (m *MockClient) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Analyze invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
