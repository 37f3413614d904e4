// Package bootstrap opens the storage, token, event log and ledger backends
// selected by configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"notary/internal/config"
	"notary/internal/database"
	"notary/internal/database/migration"
	"notary/internal/eventlog"
	"notary/internal/logging"
	"notary/internal/payment"
	"notary/internal/repository"
	"notary/internal/repository/memory"
	"notary/internal/repository/postgres"
	"notary/internal/storage"
	"notary/internal/token"
)

// LedgerMemory as LEDGER_RPC_URL selects the in-process ledger.
const LedgerMemory = "memory"

// Journal is the repository view needed by the immutable publisher.
type Journal interface {
	repository.NotaryRepository
	storage.Journal
}

// Backend bundles the collaborators shared by the API server and the CLI.
type Backend struct {
	// DB is nil for the memory backend.
	DB        *sql.DB
	Repo      Journal
	Objects   storage.Backend
	Publisher *storage.Publisher
	Tokens    token.Issuer
	Log       eventlog.Log
}

// Open builds the backend named by cfg.Backend. The postgres backend runs
// migrations before returning.
func Open(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger) (*Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		b.Repo = memory.NewNotaryMemory()
		b.Objects = storage.NewMemoryBackend()
		b.Tokens = token.NewMemoryIssuer()
		b.Log = eventlog.NewMemoryLog(cfg.EventLog.TopicID)

	case config.BackendPostgres:
		b.DB, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, b.DB, logger, cfg.Database.Host); err != nil {
			b.DB.Close()
			return nil, err
		}
		b.Repo = postgres.NewNotaryPostgres(b.DB)
		b.Tokens = token.NewLedger(b.DB, cfg.Token, cfg.Ledger.OperatorAddress)
		b.Log = eventlog.NewPostgresLog(b.DB, cfg.EventLog.TopicID, cfg.EventLog.TopicMemo, cfg.EventLog.PollInterval)

		// Objects stay in memory when no object store is configured, for local runs.
		if cfg.MinIO.Endpoint == "" {
			logger.Component("bootstrap").Warn("object_store_in_memory", map[string]any{
				"reason": "MINIO_ENDPOINT not set",
			})
			b.Objects = storage.NewMemoryBackend()
		} else if b.Objects, err = storage.NewMinIO(cfg.MinIO); err != nil {
			b.DB.Close()
			return nil, fmt.Errorf("initialize object storage: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	b.Publisher = storage.NewPublisher(b.Objects, b.Repo, cfg.Store.FirstChunkBytes)
	return &b, nil
}

// Close releases the database handle, if any.
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// OpenLedger returns the ledger client named by cfg.RPCURL. The in-process
// ledger credits the operator with minBalance so the balance guard passes.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig, minBalance *big.Int) (payment.Ledger, error) {
	if cfg.RPCURL == LedgerMemory {
		l := payment.NewMemoryLedger()
		if cfg.OperatorAddress != "" && minBalance != nil {
			l.SetBalance(cfg.OperatorAddress, minBalance)
		}
		return l, nil
	}
	return payment.Dial(ctx, cfg.RPCURL)
}
