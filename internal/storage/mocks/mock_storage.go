package mocks

import (
	"context"

	"notary/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Create(ctx context.Context, id string, chunk []byte) (string, error) {
	args := m.Called(ctx, id, chunk)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Append(ctx context.Context, id string, index int, chunk []byte) (string, error) {
	args := m.Called(ctx, id, index, chunk)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Seal(ctx context.Context, man storage.Manifest) (string, error) {
	args := m.Called(ctx, man)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Read(ctx context.Context, objectID string) (storage.Manifest, []byte, error) {
	args := m.Called(ctx, objectID)
	var data []byte
	if b, ok := args.Get(1).([]byte); ok {
		data = b
	}
	return args.Get(0).(storage.Manifest), data, args.Error(2)
}

type MockImmutableStore struct {
	mock.Mock
}

func (m *MockImmutableStore) Publish(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

func (m *MockImmutableStore) Fetch(ctx context.Context, objectID string) ([]byte, error) {
	args := m.Called(ctx, objectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
