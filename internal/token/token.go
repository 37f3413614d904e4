package token

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a token id is unknown or has no minted unit.
	ErrNotFound = errors.New("token not found")
	// ErrSupplyExhausted is returned when a collection can no longer mint.
	ErrSupplyExhausted = errors.New("token supply exhausted")
)

// Unit is the single minted unit of a proof-token collection.
type Unit struct {
	TokenID  string    `json:"tokenId"`
	Serial   int64     `json:"serial"`
	Metadata []byte    `json:"metadata"`
	MintedAt time.Time `json:"mintedAt"`
}

// Issuer mints non-fungible proof tokens. Every Mint creates a new collection
// whose maximum supply is one and mints that one unit.
type Issuer interface {
	Mint(ctx context.Context, metadata []byte) (string, error)
	Lookup(ctx context.Context, tokenID string) (Unit, error)
}
