package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"icpscout/internal/port"
)

// MockWebSearcher is a mock implementation of port.WebSearcher.
type MockWebSearcher struct {
	mock.Mock
}

func (m *MockWebSearcher) Search(ctx context.Context, query string, count int) ([]port.SearchResult, error) {
	args := m.Called(ctx, query, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.SearchResult), args.Error(1)
}
