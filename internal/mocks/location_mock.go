package mocks

import (
	"context"

	"github.com/benmeehan/pin-locator/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockLocator is a mock implementation of the Locator and PositionAcquirer interfaces
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Locate(ctx context.Context) (location.Reading, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Reading), args.Error(1)
}

func (m *MockLocator) Acquire(ctx context.Context) (location.Reading, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Reading), args.Error(1)
}
