package services

import (
	"context"
	"sync"
)

// MockNotifier is an in-memory Notifier for testing
type MockNotifier struct {
	events []OrderEvent
	err    error
	closed bool
	mu     sync.RWMutex
}

// NewMockNotifier creates a mock notifier that accepts every event
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// FailWith makes subsequent Publish calls return err after recording the event
func (m *MockNotifier) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Publish records the event
func (m *MockNotifier) Publish(_ context.Context, event OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

// Close marks the notifier as closed
func (m *MockNotifier) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events
func (m *MockNotifier) Events() []OrderEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]OrderEvent, len(m.events))
	copy(events, m.events)
	return events
}

// Closed reports whether Close was called
func (m *MockNotifier) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Clear forgets all recorded events
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
