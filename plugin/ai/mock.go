package ai

import (
	"context"
	"sync"
)

// MockLLM is a scriptable LLMService for tests.
// Responses are consumed in order; when the script is exhausted the last
// response repeats. A non-nil Err (or a scripted error) takes precedence.
type MockLLM struct {
	mu        sync.Mutex
	script    []scripted
	fallback  string
	Err       error
	CallCount int
	Calls     [][]Message
}

type scripted struct {
	text string
	err  error
}

// NewMockLLM creates a mock that always answers text.
func NewMockLLM(text string) *MockLLM {
	return &MockLLM{fallback: text}
}

// Queue appends a successful response to the script.
func (m *MockLLM) Queue(text string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{text: text})
	return m
}

// QueueError appends a failing response to the script.
func (m *MockLLM) QueueError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Chat implements LLMService.
func (m *MockLLM) Chat(_ context.Context, messages []Message, _ GenerationParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	msgs := make([]Message, len(messages))
	copy(msgs, messages)
	m.Calls = append(m.Calls, msgs)

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.err != nil {
			return "", next.err
		}
		return next.text, nil
	}
	return m.fallback, nil
}

// LastCall returns the most recent message list, or nil.
func (m *MockLLM) LastCall() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}

var _ LLMService = (*MockLLM)(nil)
