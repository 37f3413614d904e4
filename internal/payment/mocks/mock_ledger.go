package mocks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if rc := args.Get(0); rc != nil {
		return rc.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	args := m.Called(ctx, hash)
	if tx := args.Get(0); tx != nil {
		return tx.(*types.Transaction), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockLedger) TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error) {
	args := m.Called(ctx, tx, block, index)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockLedger) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	if b := args.Get(0); b != nil {
		return b.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}
