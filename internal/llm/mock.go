package llm

import (
	"context"
	"sync"
)

// MockResponse is one canned answer. A non-nil Err is returned instead of content.
type MockResponse struct {
	Content string
	Err     error
}

// Mock returns canned responses in FIFO order and records every request.
// When the queue is empty it answers with Reply, or fails as unavailable
// when Reply is nil.
type Mock struct {
	Reply func(Request) string

	mu        sync.Mutex
	responses []MockResponse
	calls     []Request
}

func NewMock(responses ...MockResponse) *Mock {
	return &Mock{responses: responses}
}

func (m *Mock) Model() string {
	return "mock"
}

func (m *Mock) Complete(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.responses) == 0 {
		if m.Reply == nil {
			return nil, &ErrProviderUnavailable{}
		}
		return &Response{Content: m.Reply(req), PromptTokens: 1500, OutputTokens: 3000}, nil
	}

	next := m.responses[0]
	m.responses = m.responses[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content}, nil
}

func (m *Mock) Add(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// Calls returns a copy of the requests seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}
