package mocks

import (
	"context"

	"github.com/absmach/fedguard/aggregator"
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ aggregator.Service = (*MockService)(nil)

// MockService is a mock implementation of the aggregator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) AggregateRound(ctx context.Context, round uint64, envs []fl.UpdateEnvelope) (fl.Report, error) {
	args := m.Called(ctx, round, envs)
	return args.Get(0).(fl.Report), args.Error(1)
}

func (m *MockService) GlobalModel(ctx context.Context) (aggregator.ModelSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(aggregator.ModelSnapshot), args.Error(1)
}

func (m *MockService) GetReport(ctx context.Context, round uint64) (fl.Report, error) {
	args := m.Called(ctx, round)
	return args.Get(0).(fl.Report), args.Error(1)
}

func (m *MockService) ListReports(ctx context.Context) ([]uint64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}
