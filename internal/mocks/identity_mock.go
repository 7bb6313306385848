package mocks

import (
	"github.com/benmeehan/pin-locator/pkg/identity"
	"github.com/stretchr/testify/mock"
)

// MockDeviceInfo is a mock implementation of the DeviceInfoInterface
type MockDeviceInfo struct {
	mock.Mock
}

func (m *MockDeviceInfo) LoadOrCreate(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockDeviceInfo) GetDeviceID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDeviceInfo) GetDeviceIdentity() *identity.Identity {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(*identity.Identity)
	}
	return nil
}
