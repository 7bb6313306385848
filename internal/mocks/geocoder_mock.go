package mocks

import (
	"context"

	"github.com/benmeehan/pin-locator/pkg/geocode"
	"github.com/stretchr/testify/mock"
)

// MockGeocoder is a mock implementation of the geocode.Geocoder interface
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error) {
	args := m.Called(ctx, lat, lon)
	return args.Get(0).(geocode.Address), args.Error(1)
}

func (m *MockGeocoder) Name() string {
	return "mock"
}
