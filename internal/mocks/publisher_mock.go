package mocks

import (
	"context"

	"iep-rehearsal/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockSessionEventPublisher is a mock type for the messaging.SessionEventPublisher type
type MockSessionEventPublisher struct {
	mock.Mock
}

// PublishSessionCompleted provides a mock function with given fields: ctx, event
func (_m *MockSessionEventPublisher) PublishSessionCompleted(ctx context.Context, event messaging.SessionCompletedEvent) error {
	ret := _m.Called(ctx, event)

	if rf, ok := ret.Get(0).(func(context.Context, messaging.SessionCompletedEvent) error); ok {
		return rf(ctx, event)
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockSessionEventPublisher) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockSessionEventPublisher creates a new instance of MockSessionEventPublisher. It also registers a testing interface on the mock.
func NewMockSessionEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockSessionEventPublisher {
	m := &MockSessionEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.SessionEventPublisher = (*MockSessionEventPublisher)(nil)
