package taskqueue

import (
	"context"

	"github.com/google/uuid"
)

// MockEnqueuer is a configurable mock for testing task scheduling.
type MockEnqueuer struct {
	// EnqueueFunc is called when Enqueue is invoked.
	// If nil, records the call and returns a generated task ID.
	EnqueueFunc func(ctx context.Context, queueName, targetPath string, payload any) (string, error)

	// Calls records every Enqueue invocation, in order.
	Calls []MockEnqueueCall
}

// MockEnqueueCall records one call to Enqueue.
type MockEnqueueCall struct {
	QueueName  string
	TargetPath string
	Payload    any
}

// NewMockEnqueuer creates a new mock enqueuer.
func NewMockEnqueuer() *MockEnqueuer {
	return &MockEnqueuer{}
}

// Enqueue implements Enqueuer.
func (m *MockEnqueuer) Enqueue(ctx context.Context, queueName, targetPath string, payload any) (string, error) {
	m.Calls = append(m.Calls, MockEnqueueCall{
		QueueName:  queueName,
		TargetPath: targetPath,
		Payload:    payload,
	})
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, queueName, targetPath, payload)
	}
	return uuid.New().String(), nil
}

// Reset clears call tracking.
func (m *MockEnqueuer) Reset() {
	m.Calls = nil
}

// Ensure MockEnqueuer implements Enqueuer at compile time.
var _ Enqueuer = (*MockEnqueuer)(nil)
