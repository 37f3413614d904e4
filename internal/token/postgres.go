package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notary/internal/config"
)

// Ledger is a proof-token ledger on PostgreSQL. Supply rules are schema
// constraints: max_supply is CHECKed to 1 and token_units allows serial 1 only,
// keyed by (collection_id, serial), so a second unit cannot be inserted.
type Ledger struct {
	db       *sql.DB
	name     string
	symbol   string
	treasury string
	now      func() time.Time
}

// NewLedger returns a Ledger. treasury is recorded as the owner of minted units.
func NewLedger(db *sql.DB, cfg config.TokenConfig, treasury string) *Ledger {
	return &Ledger{db: db, name: cfg.Name, symbol: cfg.Symbol, treasury: treasury, now: time.Now}
}

var _ Issuer = (*Ledger)(nil)

// Mint creates a one-unit collection, then mints its unit while revoking the
// supply key in the same transaction.
func (l *Ledger) Mint(ctx context.Context, metadata []byte) (string, error) {
	tokenID := uuid.NewString()
	supplyKey := uuid.NewString()

	const qCreate = `
		INSERT INTO token_collections (id, name, symbol, max_supply, supply_key, treasury, created_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
	`
	if _, err := l.db.ExecContext(ctx, qCreate, tokenID, l.name, l.symbol, supplyKey, l.treasury, l.now().UTC()); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}

	if err := l.mint(ctx, tokenID, supplyKey, metadata); err != nil {
		return "", fmt.Errorf("mint %s: %w", tokenID, err)
	}
	return tokenID, nil
}

func (l *Ledger) mint(ctx context.Context, tokenID, supplyKey string, metadata []byte) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qRevoke = `UPDATE token_collections SET supply_key = NULL WHERE id = $1 AND supply_key = $2`
	res, err := tx.ExecContext(ctx, qRevoke, tokenID, supplyKey)
	if err != nil {
		return err
	}
	if n, rerr := res.RowsAffected(); rerr != nil {
		return rerr
	} else if n != 1 {
		return ErrSupplyExhausted
	}

	const qUnit = `
		INSERT INTO token_units (collection_id, serial, metadata, minted_at)
		VALUES ($1, 1, $2, $3)
	`
	if _, err = tx.ExecContext(ctx, qUnit, tokenID, metadata, l.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// Lookup returns the minted unit of tokenID.
func (l *Ledger) Lookup(ctx context.Context, tokenID string) (Unit, error) {
	const q = `
		SELECT collection_id, serial, metadata, minted_at
		FROM token_units
		WHERE collection_id = $1
	`
	var u Unit
	err := l.db.QueryRowContext(ctx, q, tokenID).Scan(&u.TokenID, &u.Serial, &u.Metadata, &u.MintedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Unit{}, ErrNotFound
		}
		return Unit{}, err
	}
	return u, nil
}
