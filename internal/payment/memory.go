package payment

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type memoryTransfer struct {
	tx      *types.Transaction
	from    common.Address
	receipt *types.Receipt
}

// MemoryLedger is an in-process Ledger holding transfers recorded with
// AddTransfer. It backs the memory deployment and tests.
type MemoryLedger struct {
	mu        sync.Mutex
	nonce     uint64
	transfers map[common.Hash]memoryTransfer
	balances  map[common.Address]*big.Int
}

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		transfers: make(map[common.Hash]memoryTransfer),
		balances:  make(map[common.Address]*big.Int),
	}
}

var _ Ledger = (*MemoryLedger)(nil)

// AddTransfer records a mined value transfer and returns its hash.
func (l *MemoryLedger) AddTransfer(from, to string, value *big.Int, succeeded bool) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonce++
	recipient := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    l.nonce,
		To:       &recipient,
		Value:    new(big.Int).Set(value),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	status := types.ReceiptStatusSuccessful
	if !succeeded {
		status = types.ReceiptStatusFailed
	}
	l.transfers[tx.Hash()] = memoryTransfer{
		tx:   tx,
		from: common.HexToAddress(from),
		receipt: &types.Receipt{
			Status:      status,
			TxHash:      tx.Hash(),
			BlockNumber: new(big.Int).SetUint64(l.nonce),
		},
	}
	return tx.Hash().Hex()
}

// SetBalance sets the balance reported for account.
func (l *MemoryLedger) SetBalance(account string, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[common.HexToAddress(account)] = new(big.Int).Set(wei)
}

func (l *MemoryLedger) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.transfers[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return t.receipt, nil
}

func (l *MemoryLedger) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.transfers[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return t.tx, false, nil
}

func (l *MemoryLedger) TransactionSender(_ context.Context, tx *types.Transaction, _ common.Hash, _ uint) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.transfers[tx.Hash()]
	if !ok {
		return common.Address{}, ethereum.NotFound
	}
	return t.from, nil
}

func (l *MemoryLedger) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}
