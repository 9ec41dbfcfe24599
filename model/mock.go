package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are keyed by the text of the last content; unknown prompts get
// "Mock response to: <prompt>". Every request is recorded.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	errs      map[string]error
	requests  []Request
}

// NewMockModel constructs an empty MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddError makes the model fail for an input prompt.
func (m *MockModel) AddError(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[prompt] = err
}

// Requests returns a copy of the recorded requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		prompt := req.Contents[len(req.Contents)-1].Text()

		m.mu.Lock()
		full, ok := m.responses[prompt]
		err := m.errs[prompt]
		m.mu.Unlock()

		if err != nil {
			errCh <- err
			return
		}
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", prompt)
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Content:      Content{Role: "assistant", Parts: []Part{TextPart{Text: full}}},
			FinishReason: "stop",
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
