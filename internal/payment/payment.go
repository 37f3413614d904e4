package payment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"notary/internal/config"
)

// ErrInvalidAmount is returned by ParseWei for values that are not
// non-negative base-10 integers.
var ErrInvalidAmount = errors.New("invalid wei amount")

// Ledger is the subset of an EVM JSON-RPC client used for payment checks.
// *ethclient.Client satisfies it.
type Ledger interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Verifier checks that a payment transaction transferred at least a minimum
// amount between two exact addresses.
type Verifier struct {
	ledger   Ledger
	attempts int
	interval time.Duration
	operator string
}

// NewVerifier returns a Verifier polling ledger with cfg's attempt budget.
func NewVerifier(ledger Ledger, cfg config.LedgerConfig) *Verifier {
	attempts := cfg.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Verifier{
		ledger:   ledger,
		attempts: attempts,
		interval: cfg.PollInterval,
		operator: cfg.OperatorAddress,
	}
}

// Dial connects to an EVM JSON-RPC endpoint through an instrumented HTTP client.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	hc := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return ethclient.NewClient(rc), nil
}

// ParseWei parses a base-10 wei amount.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseTxHash accepts a 32-byte hex hash with or without the 0x prefix.
func ParseTxHash(ref string) (common.Hash, bool) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(ref), "0x"), "0X")
	if len(s) != 2*common.HashLength {
		return common.Hash{}, false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return common.Hash{}, false
	}
	return common.HexToHash(s), true
}

// Verify polls for the receipt of ref and accepts the payment only when the
// transaction succeeded, was sent from expectedFrom to expectedTo and moved
// at least minAmount. A receipt still missing after the attempt budget is a
// rejection, not an error. Errors are returned only for ledger failures.
func (v *Verifier) Verify(ctx context.Context, ref, expectedFrom, expectedTo string, minAmount *big.Int) (bool, error) {
	hash, ok := ParseTxHash(ref)
	if !ok || !common.IsHexAddress(expectedFrom) || !common.IsHexAddress(expectedTo) {
		return false, nil
	}

	rc, err := v.waitReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		return false, err
	}
	if rc.Status != types.ReceiptStatusSuccessful {
		return false, nil
	}

	tx, _, err := v.ledger.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch transaction: %w", err)
	}
	if tx.To() == nil || *tx.To() != common.HexToAddress(expectedTo) {
		return false, nil
	}

	from, err := v.ledger.TransactionSender(ctx, tx, rc.BlockHash, rc.TransactionIndex)
	if err != nil {
		return false, fmt.Errorf("resolve sender: %w", err)
	}
	if from != common.HexToAddress(expectedFrom) {
		return false, nil
	}

	if minAmount == nil {
		minAmount = new(big.Int)
	}
	return tx.Value() != nil && tx.Value().Cmp(minAmount) >= 0, nil
}

func (v *Verifier) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(v.interval), uint64(v.attempts-1)),
		ctx,
	)
	return backoff.RetryWithData(func() (*types.Receipt, error) {
		rc, err := v.ledger.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if rc == nil {
			return nil, ethereum.NotFound
		}
		return rc, nil
	}, b)
}

// OperatorBalance returns the latest balance of the operator account.
func (v *Verifier) OperatorBalance(ctx context.Context) (*big.Int, error) {
	if !common.IsHexAddress(v.operator) {
		return nil, fmt.Errorf("operator address %q is not a valid account", v.operator)
	}
	bal, err := v.ledger.BalanceAt(ctx, common.HexToAddress(v.operator), nil)
	if err != nil {
		return nil, fmt.Errorf("read operator balance: %w", err)
	}
	return bal, nil
}
