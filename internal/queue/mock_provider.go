package queue

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/atlas-search/search-core/internal/search"
)

// MockProvider is a mock implementation of the Provider interface for testing.
type MockProvider struct {
	mock.Mock
}

// Push is the mock implementation of the Push method.
func (m *MockProvider) Push(ctx context.Context, entry search.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Depth is the mock implementation of the Depth method.
func (m *MockProvider) Depth(ctx context.Context, priority search.JobPriority) (int, error) {
	args := m.Called(ctx, priority)
	return args.Int(0), args.Error(1)
}

// Close is the mock implementation of the Close method.
func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
