package mocks

import (
	"context"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockSimulationLogRepository is a mock type for the repository.SimulationLogRepository type
type MockSimulationLogRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, summary
func (_m *MockSimulationLogRepository) Save(ctx context.Context, summary domain.SessionSummary) (int64, error) {
	ret := _m.Called(ctx, summary)

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context, domain.SessionSummary) int64); ok {
		r0 = rf(ctx, summary)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, domain.SessionSummary) error); ok {
		r1 = rf(ctx, summary)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// List provides a mock function with given fields: ctx, filter
func (_m *MockSimulationLogRepository) List(ctx context.Context, filter repository.LogFilter) ([]domain.SimulationLog, error) {
	ret := _m.Called(ctx, filter)

	var r0 []domain.SimulationLog
	if rf, ok := ret.Get(0).(func(context.Context, repository.LogFilter) []domain.SimulationLog); ok {
		r0 = rf(ctx, filter)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.SimulationLog)
	}

	return r0, ret.Error(1)
}

// Count provides a mock function with given fields: ctx, scenarioID
func (_m *MockSimulationLogRepository) Count(ctx context.Context, scenarioID string) (int64, error) {
	ret := _m.Called(ctx, scenarioID)

	var r0 int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}

	return r0, ret.Error(1)
}

// NewMockSimulationLogRepository creates a new instance of MockSimulationLogRepository. It also registers a testing interface on the mock.
func NewMockSimulationLogRepository(t interface {
	mock.TestingT
	Helper()
}) *MockSimulationLogRepository {
	m := &MockSimulationLogRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockSuggestionRepository is a mock type for the repository.SuggestionRepository type
type MockSuggestionRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, suggestion
func (_m *MockSuggestionRepository) Create(ctx context.Context, suggestion string) (*domain.ScenarioSuggestion, error) {
	ret := _m.Called(ctx, suggestion)

	var r0 *domain.ScenarioSuggestion
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.ScenarioSuggestion)
	}

	return r0, ret.Error(1)
}

// List provides a mock function with given fields: ctx, limit
func (_m *MockSuggestionRepository) List(ctx context.Context, limit int) ([]domain.ScenarioSuggestion, error) {
	ret := _m.Called(ctx, limit)

	var r0 []domain.ScenarioSuggestion
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.ScenarioSuggestion)
	}

	return r0, ret.Error(1)
}

// NewMockSuggestionRepository creates a new instance of MockSuggestionRepository. It also registers a testing interface on the mock.
func NewMockSuggestionRepository(t interface {
	mock.TestingT
	Helper()
}) *MockSuggestionRepository {
	m := &MockSuggestionRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var (
	_ repository.SimulationLogRepository = (*MockSimulationLogRepository)(nil)
	_ repository.SuggestionRepository    = (*MockSuggestionRepository)(nil)
)
