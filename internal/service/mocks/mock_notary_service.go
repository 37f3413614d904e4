package mocks

import (
	"context"

	"notary/internal/model"
	"notary/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockNotaryService struct {
	mock.Mock
}

func (m *MockNotaryService) Config(ctx context.Context) (*model.PublicConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublicConfig), args.Error(1)
}

func (m *MockNotaryService) Exists(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotaryService) Notarize(ctx context.Context, in service.NotarizeInput) (*model.NotarizeResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotarizeResult), args.Error(1)
}

func (m *MockNotaryService) Verify(ctx context.Context, file []byte) (*model.VerifyResult, error) {
	args := m.Called(ctx, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerifyResult), args.Error(1)
}
