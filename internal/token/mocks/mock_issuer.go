package mocks

import (
	"context"

	"notary/internal/token"

	"github.com/stretchr/testify/mock"
)

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Mint(ctx context.Context, metadata []byte) (string, error) {
	args := m.Called(ctx, metadata)
	return args.String(0), args.Error(1)
}

func (m *MockIssuer) Lookup(ctx context.Context, tokenID string) (token.Unit, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(token.Unit), args.Error(1)
}
