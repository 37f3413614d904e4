package mocks

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, ref, expectedFrom, expectedTo string, minAmount *big.Int) (bool, error) {
	args := m.Called(ctx, ref, expectedFrom, expectedTo, minAmount)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerifier) OperatorBalance(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if b := args.Get(0); b != nil {
		return b.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}
