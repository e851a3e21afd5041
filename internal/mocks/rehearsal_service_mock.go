package mocks

import (
	"context"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockRehearsalService is a mock type for the session operations the HTTP API calls.
type MockRehearsalService struct {
	mock.Mock
}

// NewMockRehearsalService creates a new instance of MockRehearsalService. It also registers a testing interface on the mock.
func NewMockRehearsalService(t interface {
	mock.TestingT
	Helper()
}) *MockRehearsalService {
	m := &MockRehearsalService{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

func (_m *MockRehearsalService) CreateSession(ctx context.Context, mode domain.Mode, scenarioID, userAgent string) (*service.SessionView, error) {
	ret := _m.Called(ctx, mode, scenarioID, userAgent)
	var r0 *service.SessionView
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.SessionView)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) GetSession(ctx context.Context, id string) (*service.SessionView, error) {
	ret := _m.Called(ctx, id)
	var r0 *service.SessionView
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.SessionView)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) Choose(ctx context.Context, id string, optionIndex int) (*service.ChoiceResult, error) {
	ret := _m.Called(ctx, id, optionIndex)
	var r0 *service.ChoiceResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ChoiceResult)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) Turn(ctx context.Context, id, text string, stance domain.StanceTag) (*service.TurnView, error) {
	ret := _m.Called(ctx, id, text, stance)
	var r0 *service.TurnView
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.TurnView)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) Undo(ctx context.Context, id string) (*service.SessionView, error) {
	ret := _m.Called(ctx, id)
	var r0 *service.SessionView
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.SessionView)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) Scores(ctx context.Context, id string) (*service.ScoresView, error) {
	ret := _m.Called(ctx, id)
	var r0 *service.ScoresView
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ScoresView)
	}
	return r0, ret.Error(1)
}

func (_m *MockRehearsalService) End(ctx context.Context, id string, meta map[string]any) (*domain.Debrief, error) {
	ret := _m.Called(ctx, id, meta)
	var r0 *domain.Debrief
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Debrief)
	}
	return r0, ret.Error(1)
}
