package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"icpscout/internal/domain"
)

// MockRunRecorder is a mock implementation of port.RunRecorder.
type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) StartRun(ctx context.Context, run *domain.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRecorder) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRecorder) RecordEvents(ctx context.Context, events []domain.StoreEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockRunRecorder) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RunRecord), args.Error(1)
}
