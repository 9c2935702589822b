package store

import (
	"context"
	"database/sql"
	"sync"
)

// MockDriver is an in-memory Driver for tests. It records writes and can be
// told to fail, simulating an unavailable durable backend.
type MockDriver struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailGets and FailSets make the corresponding operation return ErrDown.
	FailGets bool
	FailSets bool

	GetCalls int
	SetCalls int
}

// ErrDown is returned by a MockDriver configured to fail.
var ErrDown = sql.ErrConnDone

// NewMockDriver creates an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{data: make(map[string][]byte)}
}

func (m *MockDriver) GetDB() *sql.DB { return nil }

func (m *MockDriver) Close() error { return nil }

func (m *MockDriver) Get(_ context.Context, conversationID string, namespace Namespace) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.FailGets {
		return nil, ErrDown
	}
	value, ok := m.data[conversationID+":"+string(namespace)]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m *MockDriver) Set(_ context.Context, conversationID string, namespace Namespace, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.FailSets {
		return ErrDown
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[conversationID+":"+string(namespace)] = cp
	return nil
}

var _ Driver = (*MockDriver)(nil)
