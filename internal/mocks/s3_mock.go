package mocks

import (
	"context"
	"io"

	"github.com/benmeehan/pin-locator/pkg/s3"
	"github.com/stretchr/testify/mock"
)

// MockObjectStorage is a mock implementation of the s3.ObjectStorageClient interface
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Connect(ctx context.Context, cfg s3.Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockObjectStorage) Upload(ctx context.Context, bucket, objectName string, content io.Reader, size int64, contentType string) (s3.UploadInfo, error) {
	args := m.Called(ctx, bucket, objectName, content, size, contentType)
	return args.Get(0).(s3.UploadInfo), args.Error(1)
}
