package mocks

import (
	"context"

	"iep-rehearsal/pkg/ai"

	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock type for the ai.Generator type
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, systemPrompt, userPrompt, params
func (_m *MockGenerator) Generate(ctx context.Context, systemPrompt string, userPrompt string, params ai.Params) (string, ai.Usage, error) {
	ret := _m.Called(ctx, systemPrompt, userPrompt, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, ai.Params) string); ok {
		r0 = rf(ctx, systemPrompt, userPrompt, params)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 ai.Usage
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(ai.Usage)
	}

	var r2 error
	if rf, ok := ret.Get(2).(func(context.Context, string, string, ai.Params) error); ok {
		r2 = rf(ctx, systemPrompt, userPrompt, params)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// NewMockGenerator creates a new instance of MockGenerator. It also registers a testing interface on the mock.
func NewMockGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ ai.Generator = (*MockGenerator)(nil)
