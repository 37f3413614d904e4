package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"notary/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is created by the last step; its presence means the schema is complete.
const sentinelTable = "public.topic_messages"

// Every step is idempotent so a partially applied schema can be completed.
var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  hash        CHAR(64)    PRIMARY KEY,
  object_id   TEXT        NOT NULL,
  token_id    TEXT        NOT NULL,
  summary     TEXT        NOT NULL DEFAULT '',
  filename    TEXT        NOT NULL,
  payment_ref TEXT        NOT NULL UNIQUE,
  payer       TEXT        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_pending_hashes",
		SQL: `CREATE TABLE IF NOT EXISTS pending_hashes (
  hash       CHAR(64)    PRIMARY KEY,
  started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_used_payments",
		SQL: `CREATE TABLE IF NOT EXISTS used_payments (
  payment_ref TEXT        PRIMARY KEY,
  payer       TEXT        NOT NULL,
  used_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_attestations",
		SQL: `CREATE TABLE IF NOT EXISTS attestations (
  id                BIGSERIAL   PRIMARY KEY,
  document_hash     CHAR(64)    NOT NULL,
  object_id         TEXT        NOT NULL,
  source_object_id  TEXT        NOT NULL,
  token_id          TEXT        NOT NULL,
  signer_public_key TEXT        NOT NULL,
  signature         TEXT        NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_attestations_unique_signer",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS idx_attestations_source_signer
  ON attestations (document_hash, source_object_id, signer_public_key);`,
	},
	{
		Name: "create_table_uploads",
		SQL: `CREATE TABLE IF NOT EXISTS uploads (
  id             TEXT        PRIMARY KEY,
  phase          TEXT        NOT NULL CHECK (phase IN ('created', 'appended', 'sealed')),
  payload        BYTEA       NOT NULL DEFAULT ''::bytea,
  chunk_versions TEXT        NOT NULL DEFAULT '[]',
  object_id      TEXT        NOT NULL DEFAULT '',
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_uploads_phase",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_phase ON uploads (phase, updated_at);`,
	},
	{
		Name: "create_table_token_collections",
		SQL: `CREATE TABLE IF NOT EXISTS token_collections (
  id         TEXT        PRIMARY KEY,
  name       TEXT        NOT NULL,
  symbol     TEXT        NOT NULL,
  max_supply INTEGER     NOT NULL CHECK (max_supply = 1),
  supply_key TEXT,
  treasury   TEXT        NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_token_units",
		SQL: `CREATE TABLE IF NOT EXISTS token_units (
  collection_id TEXT        NOT NULL REFERENCES token_collections (id),
  serial        INTEGER     NOT NULL CHECK (serial = 1),
  metadata      BYTEA       NOT NULL,
  minted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection_id, serial)
);`,
	},
	{
		Name: "create_table_topics",
		SQL: `CREATE TABLE IF NOT EXISTS topics (
  id         TEXT        PRIMARY KEY,
  memo       TEXT        NOT NULL DEFAULT '',
  next_seq   BIGINT      NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_topic_messages",
		SQL: `CREATE TABLE IF NOT EXISTS topic_messages (
  topic_id     TEXT        NOT NULL REFERENCES topics (id),
  seq          BIGINT      NOT NULL,
  payload      BYTEA       NOT NULL,
  published_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (topic_id, seq)
);`,
	},
}

// EnsureMigrated checks for the sentinel table and runs the migration steps if it is missing.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *logging.Logger, dbHost string) error {
	start := time.Now()
	log := logger.Component("database")

	log.Log(map[string]any{
		"event":   "db_migration_check",
		"status":  "starting",
		"db_host": dbHost,
	})

	var exists bool
	query := "SELECT to_regclass($1) IS NOT NULL"
	if err := db.QueryRowContext(ctx, query, sentinelTable).Scan(&exists); err != nil {
		log.Log(map[string]any{
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Log(map[string]any{
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Log(map[string]any{
		"event":   "db_migration_start",
		"status":  "in_progress",
		"db_host": dbHost,
		"steps":   len(steps),
	})

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Log(map[string]any{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Log(map[string]any{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	log.Log(map[string]any{
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}
