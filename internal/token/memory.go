package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryCollection struct {
	supplyKey string
	unit      *Unit
}

// MemoryIssuer applies the Ledger rules to in-process state.
type MemoryIssuer struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemoryIssuer returns an empty MemoryIssuer.
func NewMemoryIssuer() *MemoryIssuer {
	return &MemoryIssuer{collections: make(map[string]*memoryCollection)}
}

var _ Issuer = (*MemoryIssuer)(nil)

func (m *MemoryIssuer) Mint(_ context.Context, metadata []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenID := uuid.NewString()
	c := &memoryCollection{supplyKey: uuid.NewString()}
	m.collections[tokenID] = c

	if err := m.mintLocked(tokenID, c.supplyKey, metadata); err != nil {
		return "", err
	}
	return tokenID, nil
}

// mintLocked mints serial 1 if supplyKey still controls the collection.
func (m *MemoryIssuer) mintLocked(tokenID, supplyKey string, metadata []byte) error {
	c, ok := m.collections[tokenID]
	if !ok {
		return ErrNotFound
	}
	if c.unit != nil || c.supplyKey == "" || c.supplyKey != supplyKey {
		return ErrSupplyExhausted
	}
	c.supplyKey = ""
	c.unit = &Unit{
		TokenID:  tokenID,
		Serial:   1,
		Metadata: append([]byte(nil), metadata...),
		MintedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryIssuer) Lookup(_ context.Context, tokenID string) (Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[tokenID]
	if !ok || c.unit == nil {
		return Unit{}, ErrNotFound
	}
	return *c.unit, nil
}

// Minted returns the number of minted units.
func (m *MemoryIssuer) Minted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.collections {
		if c.unit != nil {
			n++
		}
	}
	return n
}
