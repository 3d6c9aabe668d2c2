package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of the Backend interface for testing.
type MockBackend struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method.
func (m *MockBackend) PutObject(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType, r)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// GetObject is the mock implementation of the GetObject method.
func (m *MockBackend) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}

// ListObjects is the mock implementation of the ListObjects method.
func (m *MockBackend) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	infos, _ := args.Get(0).([]ObjectInfo)
	return infos, args.Error(1) //nolint:wrapcheck
}

// DeleteObject is the mock implementation of the DeleteObject method.
func (m *MockBackend) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0) //nolint:wrapcheck
}
